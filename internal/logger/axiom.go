package logger

import (
    "context"
    "encoding/json"
    "sync"
    "sync/atomic"
    "time"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
)

const (
    shipBatch  = 200
    shipBuffer = 1000
)

// ingester is the part of the Axiom client the shipper needs.
type ingester interface {
    IngestEvents(ctx context.Context, dataset string, events []axiom.Event, options ...ingest.Option) (*ingest.Status, error)
}

// axiomShipper batches log events for Axiom. Debug events are never shipped
// and events beyond the buffer are dropped rather than blocking the caller.
type axiomShipper struct {
    api     ingester
    dataset string
    every   time.Duration
    ch      chan axiom.Event
    dropped atomic.Int64
    done    chan struct{}
    once    sync.Once
    wg      sync.WaitGroup
}

func newAxiomShipper(opts AxiomOptions) (*axiomShipper, error) {
    copts := []axiom.Option{axiom.SetToken(opts.Token)}
    if opts.OrgID != "" { copts = append(copts, axiom.SetOrganizationID(opts.OrgID)) }
    c, err := axiom.NewClient(copts...)
    if err != nil { return nil, err }
    return startShipper(c, opts.Dataset, opts.FlushEvery), nil
}

func startShipper(api ingester, dataset string, every time.Duration) *axiomShipper {
    if dataset == "" { dataset = "dev_" + serviceName }
    if every <= 0 { every = 10 * time.Second }
    s := &axiomShipper{api: api, dataset: dataset, every: every, ch: make(chan axiom.Event, shipBuffer), done: make(chan struct{})}
    s.wg.Add(1)
    go s.loop()
    return s
}

func (s *axiomShipper) Write(p []byte) (int, error) {
    return s.WriteLevel(zerolog.InfoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (s *axiomShipper) WriteLevel(l zerolog.Level, p []byte) (int, error) {
    if l < zerolog.InfoLevel { return len(p), nil }
    ev := axiom.Event{}
    if err := json.Unmarshal(p, &ev); err != nil {
        ev = axiom.Event{"message": string(p), "level": l.String()}
    }
    ev["service"] = serviceName
    if _, ok := ev[ingest.TimestampField]; !ok { ev[ingest.TimestampField] = time.Now() }
    select {
    case s.ch <- ev:
    default:
        s.dropped.Add(1)
    }
    return len(p), nil
}

func (s *axiomShipper) loop() {
    defer s.wg.Done()
    ticker := time.NewTicker(s.every)
    defer ticker.Stop()
    batch := make([]axiom.Event, 0, shipBatch)
    flush := func() {
        if len(batch) == 0 { return }
        ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
        _, _ = s.api.IngestEvents(ctx, s.dataset, batch)
        cancel()
        batch = batch[:0]
    }
    for {
        select {
        case ev := <-s.ch:
            batch = append(batch, ev)
            if len(batch) >= shipBatch { flush() }
        case <-ticker.C:
            flush()
        case <-s.done:
            for {
                select {
                case ev := <-s.ch:
                    batch = append(batch, ev)
                default:
                    flush()
                    return
                }
            }
        }
    }
}

// Close drains the buffer, sends the last batch and stops the loop.
func (s *axiomShipper) Close() {
    s.once.Do(func() { close(s.done) })
    s.wg.Wait()
}

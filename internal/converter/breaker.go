package converter

import (
	"context"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrCircuitOpen is returned while conversions are paused after repeated
// converter failures.
var ErrCircuitOpen = errors.New("document conversion is temporarily unavailable")

// Converter turns an office document into PDF bytes.
type Converter interface {
	Convert(ctx context.Context, name string, data []byte) ([]byte, error)
}

// Breaker stops sending documents to a converter that keeps failing. State
// lives in a Redis hash so every replica backs off together. Each consecutive
// failure doubles the cooldown, capped at max. Once the cooldown passes a
// single trial call is let through (claimed with HSETNX so replicas agree); success
// closes the breaker and failure reopens it.
type Breaker struct {
	next Converter
	rdb  *redis.Client
	key  string
	base time.Duration
	max  time.Duration
	ttl  time.Duration
	now  func() time.Time
}

func NewBreaker(next Converter, rdb *redis.Client, base, maxBackoff time.Duration) *Breaker {
	if base <= 0 {
		base = 30 * time.Second
	}
	if maxBackoff < base {
		maxBackoff = base
	}
	return &Breaker{next: next, rdb: rdb, key: "cb:converter", base: base, max: maxBackoff, ttl: 10 * time.Minute, now: time.Now}
}

func (b *Breaker) Convert(ctx context.Context, name string, data []byte) ([]byte, error) {
	open, trial := b.admit(ctx)
	if open {
		return nil, ErrCircuitOpen
	}
	out, err := b.next.Convert(ctx, name, data)
	switch {
	case err == nil:
		b.close(ctx)
	case errors.Is(err, ErrEmptyInput), ctx.Err() != nil:
		// not the converter's fault; hand the trial to the next caller
		if trial {
			b.rdb.HDel(context.WithoutCancel(ctx), b.key, "trial")
		}
	default:
		b.trip(ctx)
	}
	return out, err
}

// admit reports whether the call must be refused, and whether this caller
// holds the half-open trial call.
func (b *Breaker) admit(ctx context.Context) (open, trial bool) {
	h, err := b.rdb.HGetAll(ctx, b.key).Result()
	if err != nil {
		log.Warn().Err(err).Msg("converter breaker state unreadable")
		return false, false
	}
	switch h["state"] {
	case "open":
		retryAt, _ := strconv.ParseInt(h["retry_at"], 10, 64)
		if b.now().UnixMilli() < retryAt {
			return true, false
		}
	case "half_open":
	default:
		return false, false
	}
	claimed, err := b.rdb.HSetNX(ctx, b.key, "trial", b.now().UnixMilli()).Result()
	if err != nil {
		log.Warn().Err(err).Msg("converter breaker trial not claimed")
		return false, false
	}
	if !claimed {
		return true, false
	}
	b.rdb.HSet(ctx, b.key, "state", "half_open")
	log.Info().Msg("converter breaker half-open")
	return false, true
}

func (b *Breaker) trip(ctx context.Context) {
	failures, err := b.rdb.HIncrBy(ctx, b.key, "failures", 1).Result()
	if err != nil {
		log.Warn().Err(err).Msg("converter breaker not updated")
		return
	}
	backoff := b.base
	for i := int64(1); i < failures && backoff < b.max; i++ {
		backoff *= 2
	}
	if backoff > b.max {
		backoff = b.max
	}
	retryAt := b.now().Add(backoff)
	pipe := b.rdb.TxPipeline()
	pipe.HSet(ctx, b.key, map[string]any{
		"state":    "open",
		"retry_at": retryAt.UnixMilli(),
	})
	pipe.HDel(ctx, b.key, "trial")
	pipe.Expire(ctx, b.key, b.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Msg("converter breaker not updated")
		return
	}

	log.Warn().
		Int64("failures", failures).
		Dur("cooldown", backoff).
		Time("retry_at", retryAt).
		Msg("converter breaker opened")
}

func (b *Breaker) close(ctx context.Context) {
	n, err := b.rdb.Del(ctx, b.key).Result()
	if err == nil && n > 0 {
		log.Info().Msg("converter breaker closed")
	}
}

// State reports whether conversions are currently paused and until when.
func (b *Breaker) State(ctx context.Context) (paused bool, retryAt time.Time, err error) {
	h, err := b.rdb.HGetAll(ctx, b.key).Result()
	if err != nil {
		return false, time.Time{}, err
	}
	if h["state"] != "open" {
		return false, time.Time{}, nil
	}
	ms, _ := strconv.ParseInt(h["retry_at"], 10, 64)
	retryAt = time.UnixMilli(ms)
	return b.now().Before(retryAt), retryAt, nil
}

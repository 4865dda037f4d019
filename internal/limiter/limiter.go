package limiter

import (
    "context"
    "fmt"
    "net/http"
    "strings"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Limiter bounds concurrent rasterizations in this process and, when a
// Redis client is set, the number of uploads per client per minute across
// all instances.
type Limiter struct {
    rdb       *redis.Client
    perMinute int
    sem       chan struct{}
    now       func() time.Time
}

type Options struct {
    Redis            *redis.Client
    MaxRenders       int
    UploadsPerMinute int
}

func New(opts Options) *Limiter {
    if opts.MaxRenders <= 0 { opts.MaxRenders = 4 }
    return &Limiter{
        rdb:       opts.Redis,
        perMinute: opts.UploadsPerMinute,
        sem:       make(chan struct{}, opts.MaxRenders),
        now:       time.Now,
    }
}

// AcquireRender waits for a render slot. The returned func frees it.
func (l *Limiter) AcquireRender(ctx context.Context) (func(), error) {
    select {
    case l.sem <- struct{}{}:
        return func() { <-l.sem }, nil
    case <-ctx.Done():
        return nil, ctx.Err()
    }
}

func (l *Limiter) key(client string, window int64) string {
    return fmt.Sprintf("rl:upload:%s:%d", strings.ToLower(client), window)
}

// AllowUpload counts one upload for client in the current minute window.
// Without Redis or with a non-positive limit every upload is allowed.
func (l *Limiter) AllowUpload(ctx context.Context, client string) (bool, error) {
    if l.rdb == nil || l.perMinute <= 0 { return true, nil }
    k := l.key(client, l.now().Unix()/60)
    pipe := l.rdb.TxPipeline()
    incr := pipe.Incr(ctx, k)
    pipe.Expire(ctx, k, time.Minute)
    if _, err := pipe.Exec(ctx); err != nil {
        return true, err
    }
    return incr.Val() <= int64(l.perMinute), nil
}

// ClientKey identifies the caller of r for rate limiting: the first
// X-Forwarded-For hop when present, otherwise the remote host.
func ClientKey(r *http.Request) string {
    if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
        first, _, _ := strings.Cut(fwd, ",")
        return strings.TrimSpace(first)
    }
    host := r.RemoteAddr
    if i := strings.LastIndex(host, ":"); i > 0 { host = host[:i] }
    return strings.Trim(host, "[]")
}

// Package statuscheck probes the service's dependencies for GET /status.
package statuscheck

import (
    "context"
    "errors"
    "os"
    "path/filepath"
    "time"

    "github.com/aws/aws-sdk-go-v2/service/s3"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
    Ping(ctx context.Context) error
}

// PingFunc adapts a function to RedisPinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// BucketHeader is the part of the S3 client used to probe the bucket.
type BucketHeader interface {
    HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Versioner reports the version of an external converter.
type Versioner interface {
    Version(ctx context.Context) (string, error)
}

// BreakerState reports whether conversions are paused after failures.
type BreakerState interface {
    State(ctx context.Context) (paused bool, retryAt time.Time, err error)
}

// Options configures the Checker. Nil fields are reported as not configured.
type Options struct {
    Redis     RedisPinger
    S3        BucketHeader
    S3Bucket  string
    LocalDir  string
    Converter Versioner
    Breaker   BreakerState
}

type Checker struct{ o Options }

func New(opts Options) *Checker { return &Checker{o: opts} }

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

func ok(msg string) Status { return Status{OK: true, Message: msg} }
func failed(msg string) Status { return Status{Message: msg} }
func failedErr(err error) Status { return failed(trimError(err)) }

// Summary bundles all subsystem statuses.
type Summary struct {
    Redis       Status `json:"redis"`
    Storage     Status `json:"storage"`
    LibreOffice Status `json:"libreoffice"`
    Rasterizer  Status `json:"rasterizer"`
}

// Healthy reports whether uploads and merges can be served. LibreOffice only
// affects DOCX, so it does not count.
func (s Summary) Healthy() bool {
    return s.Redis.OK && s.Storage.OK && s.Rasterizer.OK
}

func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        Redis:       c.redis(ctx),
        Storage:     c.storage(ctx),
        LibreOffice: c.libreOffice(ctx),
        Rasterizer:  ok("Embedded (go-fitz)"),
    }
}

func (c *Checker) redis(ctx context.Context) Status {
    if c.o.Redis == nil { return ok("Not configured, using memory store") }
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := c.o.Redis.Ping(ctx); err != nil { return failedErr(err) }
    return ok("Connected")
}

func (c *Checker) storage(ctx context.Context) Status {
    switch {
    case c.o.S3 != nil && c.o.S3Bucket == "":
        return failed("Bucket not configured")
    case c.o.S3 != nil:
        ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
        defer cancel()
        if _, err := c.o.S3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &c.o.S3Bucket}); err != nil {
            return failedErr(err)
        }
        return ok("S3 bucket reachable")
    case c.o.LocalDir == "":
        return failed("Storage not configured")
    }
    // a throwaway file proves the upload directory is writable
    f, err := os.CreateTemp(c.o.LocalDir, ".probe-*")
    if err != nil { return failedErr(err) }
    _ = f.Close()
    _ = os.Remove(f.Name())
    return ok("Writable: " + filepath.Clean(c.o.LocalDir))
}

func (c *Checker) libreOffice(ctx context.Context) Status {
    if c.o.Converter == nil { return failed("Disabled, DOCX uploads rejected") }
    ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
    defer cancel()
    v, err := c.o.Converter.Version(ctx)
    if err != nil { return failed("Binary not found") }
    if c.o.Breaker != nil {
        if paused, at, err := c.o.Breaker.State(ctx); err == nil && paused {
            return failed("Paused after repeated failures until " + at.UTC().Format(time.TimeOnly))
        }
    }
    return ok(v)
}

func trimError(err error) string {
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() { return "timeout" }
    msg := err.Error()
    if len(msg) > 120 { return msg[:120] }
    return msg
}

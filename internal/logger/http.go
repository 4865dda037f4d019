package logger

import (
    "net/http"
    "time"

    "github.com/rs/zerolog"
)

type statusRecorder struct {
    http.ResponseWriter
    status int
    bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
    if r.status == 0 { r.status = code }
    r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
    if r.status == 0 { r.status = http.StatusOK }
    n, err := r.ResponseWriter.Write(p)
    r.bytes += n
    return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Requests logs one line per request: 5xx at error, 4xx at warn, the rest
// at debug so health checks and thumbnail fetches stay quiet.
func Requests(next http.Handler) http.Handler {
    l := Component("http")
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w}
        next.ServeHTTP(rec, r)
        if rec.status == 0 { rec.status = http.StatusOK }

        var ev *zerolog.Event
        switch {
        case rec.status >= 500:
            ev = l.Error()
        case rec.status >= 400:
            ev = l.Warn()
        default:
            ev = l.Debug()
        }
        ev.Str("method", r.Method).
            Str("path", r.URL.Path).
            Int("status", rec.status).
            Int("bytes", rec.bytes).
            Dur("took", time.Since(start)).
            Msg("request")
    })
}

package metrics

import (
    "net/http"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    uploads = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "foliocraft",
            Name:      "uploads_total",
            Help:      "Upload requests by kind (pdf, docx) and result",
        },
        []string{"kind", "result"},
    )

    renderLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "foliocraft",
            Name:      "render_duration_seconds",
            Help:      "Time spent converting and rasterizing one upload, by stage",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"stage"},
    )

    pagesRendered = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "foliocraft",
            Name:      "pages_rendered_total",
            Help:      "Total thumbnails rasterized",
        },
    )

    merges = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "foliocraft",
            Name:      "merges_total",
            Help:      "Merge requests by result",
        },
        []string{"result"},
    )

    pagesMerged = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "foliocraft",
            Name:      "merge_pages_total",
            Help:      "Requested merge pages by outcome (merged, skipped)",
        },
        []string{"outcome"},
    )

    filesExpired = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "foliocraft",
            Name:      "files_expired_total",
            Help:      "Stored objects removed by the janitor",
        },
    )

    rendersInFlight = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "foliocraft",
            Name:      "renders_in_flight",
            Help:      "Uploads currently being converted or rasterized",
        },
    )

    uiActions = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "foliocraft",
            Name:      "ui_actions_total",
            Help:      "Workspace events applied by the web UI, by event and result",
        },
        []string{"event", "result"},
    )
)

var once sync.Once

// Init registers collectors. Safe to call more than once.
func Init() {
    once.Do(func() {
        prometheus.MustRegister(uploads, renderLatency, pagesRendered, merges, pagesMerged, filesExpired, rendersInFlight, uiActions)
    })
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncUpload(kind, result string) { uploads.WithLabelValues(kind, result).Inc() }

func ObserveRender(stage string, dur time.Duration) {
    renderLatency.WithLabelValues(stage).Observe(dur.Seconds())
}

func AddPagesRendered(n int) { pagesRendered.Add(float64(n)) }

func ObserveMerge(result string, merged, skipped int) {
    merges.WithLabelValues(result).Inc()
    pagesMerged.WithLabelValues("merged").Add(float64(merged))
    pagesMerged.WithLabelValues("skipped").Add(float64(skipped))
}

func AddExpired(n int) { filesExpired.Add(float64(n)) }

// RenderStarted marks an upload as being processed; call the returned func when done.
func RenderStarted() func() {
    rendersInFlight.Inc()
    return rendersInFlight.Dec
}

func IncUIAction(event string, ok bool) { uiActions.WithLabelValues(event, boolToResult(ok)).Inc() }

func boolToResult(ok bool) string { if ok { return "ok" }; return "error" }

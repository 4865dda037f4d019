package main

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    redis "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/foliocraft/internal/config"
    "github.com/local/foliocraft/internal/converter"
    "github.com/local/foliocraft/internal/limiter"
    logpkg "github.com/local/foliocraft/internal/logger"
    "github.com/local/foliocraft/internal/metrics"
    "github.com/local/foliocraft/internal/pdf"
    "github.com/local/foliocraft/internal/server"
    "github.com/local/foliocraft/internal/statuscheck"
    "github.com/local/foliocraft/internal/storage"
    "github.com/local/foliocraft/internal/store"
    "github.com/local/foliocraft/internal/view"
    web "github.com/local/foliocraft/internal/web"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(cfg.Logging)
    defer logpkg.Close()
    metrics.Init()

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    // Blob storage
    var (
        blob     storage.Blob
        s3client *storage.S3Client
    )
    switch cfg.Storage.Backend {
    case "s3":
        c, err := storage.NewS3Client(ctx, storage.S3Options{
            Bucket: cfg.Storage.Bucket, Prefix: cfg.Storage.Prefix, Region: cfg.Storage.Region,
            Endpoint: cfg.Storage.Endpoint, AccessKey: cfg.Storage.AccessKey, SecretKey: cfg.Storage.SecretKey,
        })
        if err != nil { log.Fatal().Err(err).Msg("failed to init s3 storage") }
        blob, s3client = c, c
    default:
        l, err := storage.NewLocal(cfg.Storage.Dir)
        if err != nil { log.Fatal().Err(err).Msg("failed to init local storage") }
        blob = l
    }
    if cfg.Storage.Secret != "" {
        sealed, err := storage.NewSealed(blob, cfg.Storage.Secret)
        if err != nil { log.Fatal().Err(err).Msg("failed to init storage sealing") }
        blob = sealed
    }

    // Session store and file registry
    var (
        st  store.Store
        mem *store.Memory
        rdb *redis.Client
    )
    if cfg.Redis.URL != "" {
        c, err := store.Connect(cfg.Redis.URL)
        if err != nil { log.Fatal().Err(err).Msg("failed to connect to redis") }
        rdb = c
        st = store.NewRedis(c, cfg.Redis.SessionTTL, cfg.Server.FileMaxAge)
    } else {
        log.Warn().Msg("REDIS_URL not set; sessions and file registry kept in memory")
        mem = store.NewMemory(cfg.Redis.SessionTTL, cfg.Server.FileMaxAge)
        st = mem
    }
    defer st.Close()

    janitor := &storage.Janitor{
        Blob: blob, MaxAge: cfg.Server.FileMaxAge, Interval: cfg.Server.CleanupInterval,
        OnSweep: func(removed int) {
            metrics.AddExpired(removed)
            if mem != nil { mem.Sweep(time.Now()) }
        },
    }
    go janitor.Run(ctx)

    lim := limiter.New(limiter.Options{
        Redis: rdb, MaxRenders: cfg.Limits.MaxConcurrentRenders, UploadsPerMinute: cfg.Limits.UploadsPerMinute,
    })

    var conv server.Converter
    statusOpts := statuscheck.Options{LocalDir: cfg.Storage.Dir}
    if cfg.Converter.Enabled {
        lo := converter.NewLibreOffice(converter.Options{MaxWorkers: cfg.Converter.MaxWorkers, Timeout: cfg.Converter.Timeout})
        conv = lo
        statusOpts.Converter = lo
        if rdb != nil {
            br := converter.NewBreaker(lo, rdb, cfg.Converter.BreakerBackoff, cfg.Converter.BreakerMax)
            conv = br
            statusOpts.Breaker = br
        }
    }
    if rdb != nil {
        statusOpts.Redis = statuscheck.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
    }
    if s3client != nil {
        statusOpts.S3, statusOpts.S3Bucket = s3client.Client(), s3client.Bucket()
    }

    srv := server.New(server.Dependencies{
        Blob:           blob,
        Files:          st,
        Renderer:       pdf.NewRenderer(cfg.Server.ThumbnailScale),
        Merger:         &pdf.Merger{},
        Converter:      conv,
        Limiter:        lim,
        Janitor:        janitor,
        Status:         statuscheck.New(statusOpts),
        MaxUploadBytes: cfg.Server.MaxUploadBytes(),
        BaseURL:        cfg.Server.PublicBaseURL,
    })
    mux := http.NewServeMux()
    srv.RegisterRoutes(mux)

    // Organizer UI
    renderer, err := view.NewRenderer(cfg.Server.TemplatesDir)
    if err != nil { log.Fatal().Err(err).Msg("failed to load templates") }
    ui := web.New(web.Options{
        Renderer:       renderer,
        Sessions:       st,
        Backend:        srv.Backend,
        AutoEnqueue:    cfg.Client.AutoEnqueue,
        MaxUploadBytes: cfg.Server.MaxUploadBytes(),
        SecureCookie:   cfg.Server.SecureCookies,
    })
    ui.RegisterRoutes(mux)

    httpSrv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: logpkg.Requests(mux), ReadHeaderTimeout: 10 * time.Second}
    go func(){
        log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
        if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
    defer cancel()
    _ = httpSrv.Shutdown(shutdownCtx)
    fmt.Println("shutdown complete")
}

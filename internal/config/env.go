package config

import (
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/local/foliocraft/internal/logger"
)

// ServerConfig holds HTTP server and upload pipeline settings.
type ServerConfig struct {
    Port            string
    PublicBaseURL   string
    MaxUploadMB     int
    ThumbnailScale  float64
    FileMaxAge      time.Duration
    CleanupInterval time.Duration
    ShutdownTimeout time.Duration
    TemplatesDir    string
    SecureCookies   bool
}

// StorageConfig selects and configures the blob store for uploaded PDFs.
type StorageConfig struct {
    Backend  string // "local"|"s3"
    Dir      string
    Bucket   string
    Prefix   string
    Region   string
    Endpoint string
    AccessKey string
    SecretKey string
    Secret   string // enables at-rest sealing when set
}

// RedisConfig holds Redis connectivity. Empty URL means in-memory stores.
type RedisConfig struct {
    URL        string
    SessionTTL time.Duration
}

// ConverterConfig defines LibreOffice conversion behavior.
type ConverterConfig struct {
    Enabled        bool
    MaxWorkers     int
    Timeout        time.Duration
    BreakerBackoff time.Duration
    BreakerMax     time.Duration
}

// LimitsConfig bounds rendering and per-client upload rate.
type LimitsConfig struct {
    MaxConcurrentRenders int
    UploadsPerMinute     int
}

// ClientConfig is used by the command-line client.
type ClientConfig struct {
    ServerURL   string
    AutoEnqueue bool
    PrefsFile   string
    Timeout     time.Duration
}

// Config is the top-level configuration.
type Config struct {
    Logging   logger.Options
    Server    ServerConfig
    Storage   StorageConfig
    Redis     RedisConfig
    Converter ConverterConfig
    Limits    LimitsConfig
    Client    ClientConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging: file rotation always, Axiom only when shipping is switched on
    cfg.Logging = logger.Options{
        Level:  getEnv("LOG_LEVEL", "info"),
        Pretty: parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File: logger.FileOptions{
            Path:       getEnv("LOG_FILE", "logs/foliocraft.log"),
            MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
            MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
            MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
            Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
        },
        Axiom: logger.AxiomOptions{
            OrgID:      getEnv("AXIOM_ORG_ID", ""),
            Dataset:    getEnv("AXIOM_DATASET", "dev") + "_foliocraft",
            FlushEvery: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
        },
    }
    if parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")) {
        cfg.Logging.Axiom.Token = getEnv("AXIOM_API_KEY", "")
    }

    cfg.Server = ServerConfig{
        Port:            getEnv("PORT", "8080"),
        PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
        MaxUploadMB:     parseInt(getEnv("MAX_UPLOAD_MB", "100"), 100),
        ThumbnailScale:  parseFloat(getEnv("THUMBNAIL_SCALE", "0.8"), 0.8),
        FileMaxAge:      parseDuration(getEnv("FILE_MAX_AGE", "30m"), 30*time.Minute),
        CleanupInterval: parseDuration(getEnv("CLEANUP_INTERVAL", "5m"), 5*time.Minute),
        ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
        TemplatesDir:    getEnv("TEMPLATES_DIR", ""),
        SecureCookies:   parseBool(getEnv("SECURE_COOKIES", "false")),
    }
    if cfg.Server.MaxUploadMB <= 0 { cfg.Server.MaxUploadMB = 100 }
    if cfg.Server.ThumbnailScale <= 0 { cfg.Server.ThumbnailScale = 0.8 }

    cfg.Storage = StorageConfig{
        Backend:   strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
        Dir:       getEnv("UPLOAD_DIR", "uploads"),
        Bucket:    getEnv("AWS_S3_BUCKET", ""),
        Prefix:    getEnv("AWS_S3_PREFIX", "foliocraft/"),
        Region:    getEnv("AWS_REGION", ""),
        Endpoint:  getEnv("AWS_S3_ENDPOINT", ""),
        AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
        SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
        Secret:    getEnv("STORAGE_SECRET", ""),
    }

    cfg.Redis = RedisConfig{
        URL:        getEnv("REDIS_URL", ""),
        SessionTTL: parseDuration(getEnv("SESSION_TTL", "2h"), 2*time.Hour),
    }

    cfg.Converter = ConverterConfig{
        Enabled:    parseBool(getEnv("LIBREOFFICE_ENABLED", "true")),
        MaxWorkers: parseInt(getEnv("LIBREOFFICE_MAX_WORKERS", "2"), 2),
        Timeout:    parseDuration(getEnv("LIBREOFFICE_TIMEOUT", "180s"), 180*time.Second),
        BreakerBackoff: parseDuration(getEnv("LIBREOFFICE_BREAKER_BACKOFF", "30s"), 30*time.Second),
        BreakerMax:     parseDuration(getEnv("LIBREOFFICE_BREAKER_MAX", "5m"), 5*time.Minute),
    }

    cfg.Limits = LimitsConfig{
        MaxConcurrentRenders: parseInt(getEnv("MAX_CONCURRENT_RENDERS", "4"), 4),
        UploadsPerMinute:     parseInt(getEnv("UPLOADS_PER_MINUTE", "60"), 60),
    }

    cfg.Client = ClientConfig{
        ServerURL:   strings.TrimRight(getEnv("FOLIOCRAFT_SERVER", "http://localhost:8080"), "/"),
        AutoEnqueue: parseBool(getEnv("FOLIOCRAFT_AUTO_SELECT", "true")),
        PrefsFile:   getEnv("FOLIOCRAFT_PREFS", ""),
        Timeout:     parseDuration(getEnv("FOLIOCRAFT_TIMEOUT", ""), 0),
    }

    return cfg
}

// MaxUploadBytes is the request body limit for /upload.
func (s ServerConfig) MaxUploadBytes() int64 { return int64(s.MaxUploadMB) << 20 }

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}

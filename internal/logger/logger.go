// Package logger configures the process-wide zerolog logger: console output,
// an optional rotated log file and optional shipping to Axiom.
package logger

import (
    "fmt"
    "io"
    "os"
    "path/filepath"
    "time"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "foliocraft"

// FileOptions enable a rotated log file when Path is set.
type FileOptions struct {
    Path       string
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool
}

// AxiomOptions enable shipping when Token is set.
type AxiomOptions struct {
    Token      string
    OrgID      string
    Dataset    string
    FlushEvery time.Duration
}

type Options struct {
    Level  string
    Pretty bool
    File   FileOptions
    Axiom  AxiomOptions
}

var (
    global  zerolog.Logger
    shipper *axiomShipper
)

// Init replaces the global logger. A failing Axiom setup is reported on
// stderr and logging continues without it.
func Init(opts Options) error {
    writers := []io.Writer{stdout(opts.Pretty)}

    if opts.File.Path != "" {
        if err := os.MkdirAll(filepath.Dir(opts.File.Path), 0o755); err != nil {
            return fmt.Errorf("create logs dir: %w", err)
        }
        writers = append(writers, &lumberjack.Logger{
            Filename:   opts.File.Path,
            MaxSize:    opts.File.MaxSizeMB,
            MaxBackups: opts.File.MaxBackups,
            MaxAge:     opts.File.MaxAgeDays,
            Compress:   opts.File.Compress,
        })
    }

    if opts.Axiom.Token != "" {
        s, err := newAxiomShipper(opts.Axiom)
        if err != nil {
            fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
        } else {
            shipper = s
            writers = append(writers, s)
        }
    }

    zerolog.TimeFieldFormat = time.RFC3339
    install(zerolog.MultiLevelWriter(writers...), parseLevel(opts.Level, zerolog.InfoLevel))
    return nil
}

// Console sets up a quiet stderr logger for the command-line client.
func Console(level string, pretty bool) {
    var out io.Writer = os.Stderr
    if pretty { out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen} }
    install(out, parseLevel(level, zerolog.WarnLevel))
}

// Close flushes events still queued for Axiom.
func Close() {
    if shipper != nil {
        shipper.Close()
        shipper = nil
    }
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }

// Component returns a child of the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
    return log.Logger.With().Str("component", name).Logger()
}

func install(out io.Writer, lvl zerolog.Level) {
    global = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
    log.Logger = global
}

func stdout(pretty bool) io.Writer {
    if pretty { return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339} }
    return os.Stdout
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
    lvl, err := zerolog.ParseLevel(s)
    if err != nil || s == "" { return def }
    return lvl
}

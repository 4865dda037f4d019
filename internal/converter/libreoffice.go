package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrEmptyInput is returned for zero-length documents.
var ErrEmptyInput = errors.New("file is empty")

// LibreOffice converts office documents to PDF with a headless soffice run
// per document. Concurrent conversions are bounded by maxWorkers.
type LibreOffice struct {
	binary    string
	timeout   time.Duration
	workDir   string
	semaphore chan struct{}
}

// Options configure the converter. Zero values pick defaults.
type Options struct {
	Binary     string
	MaxWorkers int
	Timeout    time.Duration
	WorkDir    string
}

// NewLibreOffice creates a converter instance.
func NewLibreOffice(opts Options) *LibreOffice {
	if opts.Binary == "" {
		opts.Binary = "libreoffice"
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 180 * time.Second // Default 3 minutes
	}
	return &LibreOffice{
		binary:    opts.Binary,
		timeout:   opts.Timeout,
		workDir:   opts.WorkDir,
		semaphore: make(chan struct{}, opts.MaxWorkers),
	}
}

// Version verifies LibreOffice is available and returns its version line.
func (l *LibreOffice) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, l.binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("LibreOffice not found in PATH: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Convert turns the document named name into PDF bytes.
func (l *LibreOffice) Convert(ctx context.Context, name string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	startTime := time.Now()

	select {
	case l.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.semaphore }()

	// unique directory per conversion holds input, output and the soffice profile
	dir, err := os.MkdirTemp(l.workDir, "convert-"+uuid.NewString()[:8]+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".docx"
	}
	input := filepath.Join(dir, "input"+ext)
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return nil, err
	}
	profileDir := filepath.Join(dir, "profile")
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	cmd := exec.CommandContext(runCtx, l.binary,
		fmt.Sprintf("-env:UserInstallation=file://%s", profileDir),
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outDir,
		input,
	)
	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("LibreOffice command")

	if out, err := cmd.CombinedOutput(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("conversion timeout after %v", l.timeout)
		}
		return nil, fmt.Errorf("conversion failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	pdf, err := os.ReadFile(filepath.Join(outDir, "input.pdf"))
	if err != nil {
		return nil, fmt.Errorf("output file not created: %w", err)
	}
	log.Info().Str("file", name).Int("bytes", len(pdf)).Dur("duration", time.Since(startTime)).Msg("conversion successful")
	return pdf, nil
}

// Package storage keeps uploaded PDFs and their thumbnails for a limited time,
// on the local disk or in S3, optionally sealed with AES-GCM.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned for keys that do not exist (or already expired).
var ErrNotFound = errors.New("object not found")

// Blob is a flat key/value object store.
type Blob interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Sweep removes every object last written before cutoff and returns how
	// many were removed.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// PDFKey is the object key of an uploaded document.
func PDFKey(fileID string) string { return fileID + ".pdf" }

// ThumbKey is the object key of the thumbnail of page n (0-based).
func ThumbKey(fileID string, n int) string { return fmt.Sprintf("%s/%d.png", fileID, n) }

// Janitor deletes objects older than MaxAge, on demand and every Interval.
type Janitor struct {
	Blob     Blob
	MaxAge   time.Duration
	Interval time.Duration
	// OnSweep observes the number of objects removed by each pass.
	OnSweep func(removed int)
	now     func() time.Time
}

// Sweep runs one pass.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	now := time.Now
	if j.now != nil {
		now = j.now
	}
	n, err := j.Blob.Sweep(ctx, now().Add(-j.MaxAge))
	if n > 0 {
		log.Info().Int("removed", n).Dur("max_age", j.MaxAge).Msg("expired files removed")
	}
	if j.OnSweep != nil {
		j.OnSweep(n)
	}
	return n, err
}

// Run sweeps every Interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := j.Sweep(ctx); err != nil {
				log.Warn().Err(err).Msg("cleanup pass failed")
			}
		}
	}
}

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "abc.pdf", PDFKey("abc"))
	assert.Equal(t, "abc/3.png", ThumbKey("abc", 3))
}

func TestLocalPutGet(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)

	require.NoError(t, l.Put(ctx, ThumbKey("f1", 0), []byte("png")))
	got, err := l.Get(ctx, ThumbKey("f1", 0))
	require.NoError(t, err)
	assert.Equal(t, "png", string(got))

	_, err = l.Get(ctx, "missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, l.Put(ctx, "../escape.pdf", []byte("x")))
	_, err = l.Get(ctx, "/etc/passwd")
	assert.Error(t, err)
}

func TestLocalPutSurvivesConcurrentSweep(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	calls := 0
	writeFile = func(name string, data []byte, perm os.FileMode) error {
		calls++
		if calls == 1 {
			// the janitor collapses the freshly created, still empty dir
			_, err := l.Sweep(ctx, time.Now().Add(time.Hour))
			require.NoError(t, err)
			_, statErr := os.Stat(filepath.Join(l.Dir(), "f1"))
			require.ErrorIs(t, statErr, os.ErrNotExist)
		}
		return os.WriteFile(name, data, perm)
	}
	t.Cleanup(func() { writeFile = os.WriteFile })

	require.NoError(t, l.Put(ctx, ThumbKey("f1", 0), []byte("png")))
	assert.Equal(t, 2, calls)
	got, err := l.Get(ctx, ThumbKey("f1", 0))
	require.NoError(t, err)
	assert.Equal(t, "png", string(got))
}

func TestLocalSweepRemovesOnlyOldFiles(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, l.Put(ctx, PDFKey("old"), []byte("a")))
	require.NoError(t, l.Put(ctx, ThumbKey("old", 0), []byte("b")))
	require.NoError(t, l.Put(ctx, PDFKey("new"), []byte("c")))

	past := time.Now().Add(-time.Hour)
	for _, k := range []string{PDFKey("old"), ThumbKey("old", 0)} {
		require.NoError(t, os.Chtimes(filepath.Join(l.Dir(), k), past, past))
	}

	n, err := l.Sweep(ctx, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = l.Get(ctx, PDFKey("old"))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.Get(ctx, PDFKey("new"))
	assert.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(l.Dir(), "old"))
}

func TestSealedRoundTrip(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	s, err := NewSealed(l, "s3cret")
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "a.pdf", []byte("%PDF-1.7")))
	raw, err := l.Get(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, sealMagic, string(raw[:8]))
	assert.NotContains(t, string(raw), "%PDF")

	plain, err := s.Get(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(plain))

	// an object copied to another key does not open
	require.NoError(t, l.Put(ctx, "b.pdf", raw))
	_, err = s.Get(ctx, "b.pdf")
	assert.ErrorIs(t, err, ErrSealed)

	other, err := NewSealed(l, "different")
	require.NoError(t, err)
	_, err = other.Get(ctx, "a.pdf")
	assert.ErrorIs(t, err, ErrSealed)

	require.NoError(t, l.Put(ctx, "plain.pdf", []byte("%PDF-plain")))
	_, err = s.Get(ctx, "plain.pdf")
	assert.ErrorIs(t, err, ErrSealed)

	_, err = s.Get(ctx, "none.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewSealed(l, "")
	assert.Error(t, err)
}

type countingBlob struct {
	Blob
	cutoffs []time.Time
}

func (c *countingBlob) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	c.cutoffs = append(c.cutoffs, cutoff)
	return 3, nil
}

func TestJanitorSweepUsesMaxAge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := &countingBlob{}
	var seen []int
	j := &Janitor{Blob: b, MaxAge: 30 * time.Minute, OnSweep: func(n int) { seen = append(seen, n) }, now: func() time.Time { return now }}

	n, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []time.Time{now.Add(-30 * time.Minute)}, b.cutoffs)
	assert.Equal(t, []int{3}, seen)
}

func TestJanitorRunStopsWithContext(t *testing.T) {
	b := &countingBlob{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		(&Janitor{Blob: b, MaxAge: time.Minute, Interval: 5 * time.Millisecond}).Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

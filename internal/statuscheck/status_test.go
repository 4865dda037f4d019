package statuscheck

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
)

type fakeHead struct{ err error }

func (f fakeHead) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.err
}

type fakeVersion struct {
	v   string
	err error
}

func (f fakeVersion) Version(context.Context) (string, error) { return f.v, f.err }

func TestSummaryLocalDefaults(t *testing.T) {
	c := New(Options{LocalDir: t.TempDir()})
	s := c.Summary(context.Background())
	assert.True(t, s.Redis.OK)
	assert.True(t, s.Storage.OK)
	assert.False(t, s.LibreOffice.OK)
	assert.True(t, s.Rasterizer.OK)
	assert.True(t, s.Healthy())
}

func TestSummaryFailures(t *testing.T) {
	c := New(Options{
		Redis:     PingFunc(func(context.Context) error { return errors.New("connection refused") }),
		S3:        fakeHead{err: errors.New(strings.Repeat("x", 200))},
		S3Bucket:  "docs",
		Converter: fakeVersion{err: errors.New("exec: not found")},
	})
	s := c.Summary(context.Background())
	assert.Equal(t, Status{OK: false, Message: "connection refused"}, s.Redis)
	assert.Len(t, s.Storage.Message, 120)
	assert.False(t, s.LibreOffice.OK)
	assert.False(t, s.Healthy())
}

func TestSummaryAllGood(t *testing.T) {
	c := New(Options{
		Redis:     PingFunc(func(context.Context) error { return nil }),
		S3:        fakeHead{},
		S3Bucket:  "docs",
		Converter: fakeVersion{v: "LibreOffice 24.2"},
	})
	s := c.Summary(context.Background())
	assert.True(t, s.Healthy())
	assert.Equal(t, "LibreOffice 24.2", s.LibreOffice.Message)
}

type fakeBreaker struct {
	paused bool
	at     time.Time
}

func (f fakeBreaker) State(context.Context) (bool, time.Time, error) { return f.paused, f.at, nil }

func TestPausedConverter(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	c := New(Options{
		LocalDir:  t.TempDir(),
		Converter: fakeVersion{v: "LibreOffice 24.2"},
		Breaker:   fakeBreaker{paused: true, at: at},
	})
	s := c.Summary(context.Background())
	assert.Equal(t, Status{Message: "Paused after repeated failures until 15:04:05"}, s.LibreOffice)
	assert.True(t, s.Healthy())

	c = New(Options{LocalDir: t.TempDir(), Converter: fakeVersion{v: "LibreOffice 24.2"}, Breaker: fakeBreaker{}})
	assert.Equal(t, "LibreOffice 24.2", c.Summary(context.Background()).LibreOffice.Message)
}

func TestUnwritableLocalDir(t *testing.T) {
	c := New(Options{LocalDir: filepath.Join(t.TempDir(), "missing")})
	assert.False(t, c.Summary(context.Background()).Storage.OK)
}

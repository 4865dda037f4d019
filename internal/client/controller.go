package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/local/foliocraft/internal/workspace"
)

// ErrMergeInFlight is returned while a previous merge has not finished.
var ErrMergeInFlight = errors.New("merge already in progress")

// Backend is the service the controller uploads to and merges through.
type Backend interface {
	Upload(ctx context.Context, name string, r io.Reader) (workspace.Upload, error)
	Merge(ctx context.Context, mr workspace.MergeRequest) ([]byte, error)
}

// Source is one file of an upload batch. Open is called only when the file's
// turn comes.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileSource reads a local file.
func FileSource(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// Download is a finished merge.
type Download struct {
	Name string
	Data []byte
}

// Options configure a Controller.
type Options struct {
	AutoEnqueue bool
	Notifier    Notifier
	Session     *workspace.Session
}

// Controller owns one workspace session. Every mutation is serialized.
type Controller struct {
	mu      sync.Mutex
	s       *workspace.Session
	backend Backend
	notify  Notifier
	auto    bool
	merging atomic.Bool
}

func NewController(b Backend, opts Options) *Controller {
	s := opts.Session
	if s == nil {
		s = workspace.New()
	}
	n := opts.Notifier
	if n == nil {
		n = NotifierFunc(func(string, string) {})
	}
	return &Controller{s: s, backend: b, notify: n, auto: opts.AutoEnqueue}
}

// Session returns a snapshot of the current state.
func (c *Controller) Session() *workspace.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.Clone()
}

// Apply runs one event through the reducer. On error the state is unchanged.
func (c *Controller) Apply(ev workspace.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := workspace.Reduce(c.s, ev)
	if err != nil {
		return err
	}
	c.s = next
	return nil
}

// Merging reports whether a merge is in flight.
func (c *Controller) Merging() bool { return c.merging.Load() }

// UploadFiles uploads the sources one at a time in order. A failing file is
// reported and skipped; the rest of the batch continues. It returns the
// uploads that were added to the session.
func (c *Controller) UploadFiles(ctx context.Context, srcs []Source) []workspace.Upload {
	var added []workspace.Upload
	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			c.notify.Notify(LevelError, err.Error())
			break
		}
		u, err := c.uploadOne(ctx, src)
		if err != nil {
			log.Warn().Err(err).Str("file", src.Name).Msg("upload failed")
			c.notify.Notify(LevelError, fmt.Sprintf("%s: %s", src.Name, err.Error()))
			continue
		}
		added = append(added, u)
	}
	return added
}

func (c *Controller) uploadOne(ctx context.Context, src Source) (workspace.Upload, error) {
	rc, err := src.Open()
	if err != nil {
		return workspace.Upload{}, err
	}
	defer rc.Close()
	u, err := c.backend.Upload(ctx, src.Name, rc)
	if err != nil {
		return workspace.Upload{}, err
	}
	if err := c.Apply(workspace.FileUploaded{Upload: u, AutoEnqueue: c.auto}); err != nil {
		return workspace.Upload{}, err
	}
	log.Info().Str("file_id", u.FileID).Int("pages", u.PageCount).Msg("file added")
	return u, nil
}

// Merge sends the queue to the service. An empty queue is refused without a
// network call. The queue is left intact whatever the outcome.
func (c *Controller) Merge(ctx context.Context) (Download, error) {
	c.mu.Lock()
	mr, err := c.s.MergeRequest()
	c.mu.Unlock()
	if err != nil {
		c.notify.Notify(LevelError, "No pages selected!")
		return Download{}, err
	}
	if !c.merging.CompareAndSwap(false, true) {
		return Download{}, ErrMergeInFlight
	}
	defer c.merging.Store(false)

	data, err := c.backend.Merge(ctx, mr)
	if err != nil {
		log.Error().Err(err).Int("pages", len(mr.Pages)).Msg("merge failed")
		c.notify.Notify(LevelError, "Merge failed: "+err.Error())
		return Download{}, err
	}
	c.notify.Notify(LevelSuccess, "Download started!")
	return Download{Name: workspace.MergeName, Data: data}, nil
}

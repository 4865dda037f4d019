package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/foliocraft/internal/workspace"
)

// fakeService mimics the upload/merge endpoints.
type fakeService struct {
	mu      sync.Mutex
	uploads []string
	merges  []workspace.MergeRequest
	status  int
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		file, hdr, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "No file"})
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		f.mu.Lock()
		f.uploads = append(f.uploads, hdr.Filename)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(string(body), "huge"):
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		case strings.HasSuffix(hdr.Filename, ".txt"):
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid file type"})
		default:
			n := len(strings.Fields(string(body)))
			thumbs := make([]string, n)
			for i := range thumbs {
				thumbs[i] = fmt.Sprintf("/thumbnails/%s/%d.png", hdr.Filename, i)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"file_id": hdr.Filename, "original_name": hdr.Filename, "page_count": n, "thumbnails": thumbs,
			})
		}
	})
	mux.HandleFunc("POST /merge", func(w http.ResponseWriter, r *http.Request) {
		var mr workspace.MergeRequest
		_ = json.NewDecoder(r.Body).Decode(&mr)
		f.mu.Lock()
		f.merges = append(f.merges, mr)
		status := f.status
		f.mu.Unlock()
		if status != 0 {
			http.Error(w, `{"error":"No valid pages to merge"}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-merged"))
	})
	return mux
}

func (f *fakeService) uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploads...)
}

func (f *fakeService) merged() []workspace.MergeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]workspace.MergeRequest(nil), f.merges...)
}

func src(name, content string) Source {
	return Source{Name: name, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(content)), nil
	}}
}

func newHarness(t *testing.T, auto bool) (*fakeService, *Controller, *[]string) {
	t.Helper()
	svc := &fakeService{}
	ts := httptest.NewServer(svc.handler())
	t.Cleanup(ts.Close)
	var msgs []string
	c := NewController(New(ts.URL+"/", ts.Client()), Options{
		AutoEnqueue: auto,
		Notifier:    NotifierFunc(func(level, m string) { msgs = append(msgs, level+": "+m) }),
	})
	return svc, c, &msgs
}

func TestUploadBatchContinuesAfterFailure(t *testing.T) {
	svc, c, msgs := newHarness(t, false)
	added := c.UploadFiles(context.Background(), []Source{
		src("a.pdf", "p1 p2 p3"),
		src("notes.txt", "x"),
		src("big.pdf", "huge"),
		src("b.pdf", "p1 p2"),
	})

	require.Len(t, added, 2)
	assert.Equal(t, []string{"a.pdf", "notes.txt", "big.pdf", "b.pdf"}, svc.uploaded())
	assert.Equal(t, []string{
		"error: notes.txt: Invalid file type",
		"error: big.pdf: " + TooLargeMessage,
	}, *msgs)

	s := c.Session()
	require.Len(t, s.Files, 2)
	assert.Equal(t, "b.pdf", s.ActiveID)
	assert.Equal(t, []workspace.PageState{{}, {}, {}}, s.Files[0].Pages)
	assert.Empty(t, s.Queue)
}

func TestUploadAutoEnqueue(t *testing.T) {
	_, c, _ := newHarness(t, true)
	c.UploadFiles(context.Background(), []Source{src("a.pdf", "p1 p2")})
	assert.Len(t, c.Session().Queue, 2)
}

func TestUploadSourceOpenFailure(t *testing.T) {
	svc, c, msgs := newHarness(t, false)
	bad := Source{Name: "gone.pdf", Open: func() (io.ReadCloser, error) { return nil, errors.New("no such file") }}
	c.UploadFiles(context.Background(), []Source{bad})
	assert.Empty(t, svc.uploaded())
	assert.Equal(t, []string{"error: gone.pdf: no such file"}, *msgs)
}

func TestMergeEmptyQueueMakesNoRequest(t *testing.T) {
	svc, c, msgs := newHarness(t, false)
	_, err := c.Merge(context.Background())
	assert.ErrorIs(t, err, workspace.ErrEmptyQueue)
	assert.Empty(t, svc.merged())
	assert.Equal(t, []string{"error: No pages selected!"}, *msgs)
}

func TestMergeSendsQueueWithRotations(t *testing.T) {
	svc, c, msgs := newHarness(t, false)
	c.UploadFiles(context.Background(), []Source{src("a.pdf", "p1 p2 p3")})
	require.NoError(t, c.Apply(workspace.PageToggled{FileID: "a.pdf", PageIndex: 2}))
	require.NoError(t, c.Apply(workspace.PageToggled{FileID: "a.pdf", PageIndex: 0}))
	require.NoError(t, c.Apply(workspace.PageRotated{FileID: "a.pdf", PageIndex: 2, Degrees: -90}))

	dl, err := c.Merge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, workspace.MergeName, dl.Name)
	assert.Equal(t, "%PDF-merged", string(dl.Data))
	merges := svc.merged()
	require.Len(t, merges, 1)
	assert.Equal(t, []workspace.MergePage{
		{FileID: "a.pdf", PageIndex: 0, Rotation: 0},
		{FileID: "a.pdf", PageIndex: 2, Rotation: 270},
	}, merges[0].Pages)
	assert.Equal(t, []string{"success: Download started!"}, *msgs)
	assert.False(t, c.Merging())
}

func TestMergeFailureKeepsQueue(t *testing.T) {
	svc, c, msgs := newHarness(t, true)
	c.UploadFiles(context.Background(), []Source{src("a.pdf", "p1")})
	svc.mu.Lock()
	svc.status = http.StatusBadRequest
	svc.mu.Unlock()

	_, err := c.Merge(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, []string{`error: Merge failed: {"error":"No valid pages to merge"}`}, *msgs)
	assert.Len(t, c.Session().Queue, 1)
	assert.False(t, c.Merging())
}

type blockingBackend struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) Upload(context.Context, string, io.Reader) (workspace.Upload, error) {
	return workspace.Upload{FileID: "x", OriginalName: "x.pdf", PageCount: 1, Thumbnails: []string{""}}, nil
}

func (b *blockingBackend) Merge(context.Context, workspace.MergeRequest) ([]byte, error) {
	close(b.entered)
	<-b.release
	return []byte("ok"), nil
}

func TestOnlyOneMergeInFlight(t *testing.T) {
	b := &blockingBackend{entered: make(chan struct{}), release: make(chan struct{})}
	c := NewController(b, Options{AutoEnqueue: true})
	c.UploadFiles(context.Background(), []Source{src("x.pdf", "")})

	done := make(chan error, 1)
	go func() {
		_, err := c.Merge(context.Background())
		done <- err
	}()
	<-b.entered
	assert.True(t, c.Merging())
	_, err := c.Merge(context.Background())
	assert.ErrorIs(t, err, ErrMergeInFlight)

	close(b.release)
	require.NoError(t, <-done)
	assert.False(t, c.Merging())
}

func TestToastsExpire(t *testing.T) {
	now := time.Unix(0, 0)
	ts := NewToasts()
	ts.now = func() time.Time { return now }
	assert.Nil(t, ts.Current())

	ts.Notify(LevelError, "first")
	ts.Notify(LevelSuccess, "second")
	cur := ts.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "second", cur.Message)
	assert.Equal(t, int64(3000), cur.TTLms)

	now = now.Add(ToastTTL)
	assert.Nil(t, ts.Current())
}

func TestAPIErrorFallbackMessage(t *testing.T) {
	assert.Equal(t, "request failed with status 502", (&APIError{Status: 502}).Error())
}

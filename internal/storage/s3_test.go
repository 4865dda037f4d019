package storage

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	data     []byte
	modified time.Time
}

// fakeS3 serves the handful of path-style S3 calls the client makes.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]fakeObject
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.bucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	switch {
	case r.Method == http.MethodPut && key != "":
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = fakeObject{data: body, modified: time.Now().UTC()}
		w.Header().Set("ETag", `"etag"`)
	case r.Method == http.MethodGet && key != "":
		obj, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		_, _ = w.Write(obj.data)
	case r.Method == http.MethodGet && q.Get("list-type") == "2":
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, q.Get("prefix")) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><Name>%s</Name><KeyCount>%d</KeyCount><IsTruncated>false</IsTruncated>`, f.bucket, len(keys))
		for _, k := range keys {
			fmt.Fprintf(w, `<Contents><Key>%s</Key><LastModified>%s</LastModified><Size>%d</Size></Contents>`,
				k, f.objects[k].modified.Format("2006-01-02T15:04:05.000Z"), len(f.objects[k].data))
		}
		fmt.Fprint(w, `</ListBucketResult>`)
	case r.Method == http.MethodPost && q.Has("delete"):
		var req struct {
			Objects []struct {
				Key string `xml:"Key"`
			} `xml:"Object"`
		}
		_ = xml.NewDecoder(r.Body).Decode(&req)
		for _, o := range req.Objects {
			delete(f.objects, o.Key)
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><DeleteResult></DeleteResult>`)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) age(key string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.objects[key]
	o.modified = o.modified.Add(-d)
	f.objects[key] = o
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func newFakeS3Client(t *testing.T) (*fakeS3, *S3Client) {
	t.Helper()
	fake := &fakeS3{bucket: "docs", objects: map[string]fakeObject{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewS3Client(context.Background(), S3Options{
		Bucket:    "docs",
		Prefix:    "foliocraft/",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)
	return fake, c
}

func TestS3PutGetSweep(t *testing.T) {
	ctx := context.Background()
	fake, c := newFakeS3Client(t)
	assert.Equal(t, "docs", c.Bucket())

	require.NoError(t, c.Put(ctx, PDFKey("a"), []byte("%PDF-a")))
	require.NoError(t, c.Put(ctx, ThumbKey("a", 0), []byte("png")))
	require.NoError(t, c.Put(ctx, PDFKey("b"), []byte("%PDF-b")))
	assert.Equal(t, []string{"foliocraft/a.pdf", "foliocraft/a/0.png", "foliocraft/b.pdf"}, fake.keys())

	got, err := c.Get(ctx, PDFKey("a"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-a", string(got))

	_, err = c.Get(ctx, PDFKey("zzz"))
	assert.ErrorIs(t, err, ErrNotFound)

	fake.age("foliocraft/a.pdf", time.Hour)
	fake.age("foliocraft/a/0.png", time.Hour)
	n, err := c.Sweep(ctx, time.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"foliocraft/b.pdf"}, fake.keys())
}

func TestS3RequiresBucket(t *testing.T) {
	_, err := NewS3Client(context.Background(), S3Options{})
	assert.Error(t, err)
}

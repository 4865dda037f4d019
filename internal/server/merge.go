package server

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "io"
    "math"
    "net/http"
    "os"
    "path/filepath"
    "strconv"
    "strings"

    "github.com/google/uuid"

    "github.com/local/foliocraft/internal/metrics"
    "github.com/local/foliocraft/internal/pdf"
    "github.com/local/foliocraft/internal/storage"
    "github.com/local/foliocraft/internal/workspace"
)

// maxMergeBody bounds the JSON body of /merge.
const maxMergeBody = 4 << 20

// ParsePages reads a merge body. Items that are not objects, lack file_id or
// page_index, or carry values that are not integers are skipped; the second
// result counts them. A body without a non-empty pages list is
// ErrNoPagesSelected.
func ParsePages(body []byte) ([]workspace.MergePage, int, error) {
    var doc map[string]any
    dec := json.NewDecoder(bytes.NewReader(body))
    dec.UseNumber()
    if err := dec.Decode(&doc); err != nil { return nil, 0, ErrNoPagesSelected }
    items, ok := doc["pages"].([]any)
    if !ok || len(items) == 0 { return nil, 0, ErrNoPagesSelected }

    pages := make([]workspace.MergePage, 0, len(items))
    skipped := 0
    for _, it := range items {
        obj, ok := it.(map[string]any)
        if !ok { skipped++; continue }
        id, hasID := obj["file_id"]
        idx, hasIdx := obj["page_index"]
        if !hasID || id == nil || !hasIdx || idx == nil { skipped++; continue }
        pageIndex, ok := toInt(idx)
        if !ok { skipped++; continue }
        rotation := 0
        if rv, has := obj["rotation"]; has {
            if rotation, ok = toInt(rv); !ok { skipped++; continue }
        }
        fileID, ok := id.(string)
        if !ok { fileID = "" }
        pages = append(pages, workspace.MergePage{FileID: fileID, PageIndex: pageIndex, Rotation: rotation})
    }
    return pages, skipped, nil
}

// toInt converts a JSON value to an int the way a lenient integer cast would:
// numbers are truncated toward zero, strings must hold a decimal integer.
func toInt(v any) (int, bool) {
    switch x := v.(type) {
    case json.Number:
        if n, err := x.Int64(); err == nil { return int(n), true }
        f, err := x.Float64()
        if err != nil || math.IsInf(f, 0) || math.IsNaN(f) { return 0, false }
        return int(math.Trunc(f)), true
    case string:
        n, err := strconv.Atoi(strings.TrimSpace(x))
        if err != nil { return 0, false }
        return n, true
    case bool:
        if x { return 1, true }
        return 0, true
    }
    return 0, false
}

// Merge writes the requested pages, in order, as one PDF to w. Pages of
// unknown or expired files and out-of-range indexes are skipped. It returns
// the number of pages written; none at all is pdf.ErrNoPages.
func (s *Server) Merge(ctx context.Context, pages []workspace.MergePage, w io.Writer) (int, error) {
    if len(pages) == 0 { return 0, ErrNoPagesSelected }
    work, err := os.MkdirTemp(s.deps.TempDir, "merge-src-*")
    if err != nil { return 0, err }
    defer os.RemoveAll(work)

    staged := map[string]string{}
    counts := map[string]int{}
    parts := make([]pdf.Part, 0, len(pages))
    for _, p := range pages {
        path, ok := staged[p.FileID]
        if !ok {
            path, counts[p.FileID] = s.stage(ctx, work, p.FileID)
            staged[p.FileID] = path
        }
        if path == "" { continue }
        if p.PageIndex < 0 || p.PageIndex >= counts[p.FileID] {
            s.log.Debug().Str("file_id", p.FileID).Int("page_index", p.PageIndex).Msg("page index out of range")
            continue
        }
        parts = append(parts, pdf.Part{Path: path, PageIndex: p.PageIndex, Rotation: p.Rotation})
    }
    if len(parts) == 0 {
        metrics.ObserveMerge("empty", 0, len(pages))
        return 0, pdf.ErrNoPages
    }

    n, err := s.deps.Merger.Merge(ctx, parts, w)
    if err != nil {
        result := "error"
        if errors.Is(err, pdf.ErrNoPages) { result = "empty" }
        metrics.ObserveMerge(result, 0, len(pages))
        return 0, err
    }
    metrics.ObserveMerge("ok", n, len(pages)-n)
    s.log.Info().Int("requested", len(pages)).Int("merged", n).Msg("merge completed")
    return n, nil
}

// stage copies a stored document into dir and returns its path and page
// count. An empty path means the file is unknown or gone.
func (s *Server) stage(ctx context.Context, dir, fileID string) (string, int) {
    if _, err := uuid.Parse(fileID); err != nil { return "", 0 }
    rec, ok, err := s.deps.Files.GetFile(ctx, fileID)
    if err != nil {
        s.log.Warn().Err(err).Str("file_id", fileID).Msg("file registry lookup failed")
        return "", 0
    }
    if !ok { return "", 0 }
    data, err := s.deps.Blob.Get(ctx, storage.PDFKey(fileID))
    if err != nil {
        if !errors.Is(err, storage.ErrNotFound) {
            s.log.Warn().Err(err).Str("file_id", fileID).Msg("document read failed")
        }
        return "", 0
    }
    path := filepath.Join(dir, fileID+".pdf")
    if err := os.WriteFile(path, data, 0o600); err != nil {
        s.log.Warn().Err(err).Str("file_id", fileID).Msg("staging document failed")
        return "", 0
    }
    return path, rec.PageCount
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
    body, err := io.ReadAll(io.LimitReader(r.Body, maxMergeBody))
    if err != nil { writeError(w, ErrNoPagesSelected); return }
    pages, skipped, err := ParsePages(body)
    if err != nil { writeError(w, err); return }
    if skipped > 0 {
        s.log.Debug().Int("skipped", skipped).Msg("malformed merge items ignored")
    }

    var out bytes.Buffer
    if _, err := s.Merge(r.Context(), pages, &out); err != nil {
        status, _ := StatusFor(err)
        if status >= 500 {
            s.log.Error().Err(err).Msg("merge failed")
        }
        writeError(w, err)
        return
    }
    w.Header().Set("Content-Type", "application/pdf")
    w.Header().Set("Content-Disposition", `attachment; filename="`+workspace.MergeName+`"`)
    w.Header().Set("Content-Length", strconv.Itoa(out.Len()))
    w.WriteHeader(http.StatusOK)
    _, _ = out.WriteTo(w)
}

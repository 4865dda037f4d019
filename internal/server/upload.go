package server

import (
    "context"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/local/foliocraft/internal/filetype"
    "github.com/local/foliocraft/internal/limiter"
    "github.com/local/foliocraft/internal/metrics"
    "github.com/local/foliocraft/internal/pdf"
    "github.com/local/foliocraft/internal/storage"
    "github.com/local/foliocraft/internal/store"
    "github.com/local/foliocraft/internal/workspace"
)

// Upload stores one document for client and returns its description. DOCX is
// converted to PDF first; every page is rasterized to a PNG thumbnail.
func (s *Server) Upload(ctx context.Context, client, name string, data []byte) (workspace.Upload, error) {
    kind := filetype.FromName(name)
    if kind == filetype.Unknown {
        metrics.IncUpload("unknown", "rejected")
        return workspace.Upload{}, ErrInvalidType
    }
    if s.deps.Limiter != nil {
        ok, err := s.deps.Limiter.AllowUpload(ctx, client)
        if err != nil {
            s.log.Warn().Err(err).Msg("rate limit check failed; allowing upload")
        } else if !ok {
            metrics.IncUpload(string(kind), "rate_limited")
            return workspace.Upload{}, ErrRateLimited
        }
    }

    original := filetype.DisplayName(name, kind)
    pdfBytes := data
    if filetype.Detect(name, data).NeedsConversion() {
        if s.deps.Converter == nil {
            metrics.IncUpload(string(kind), "rejected")
            return workspace.Upload{}, ErrConversionDisabled
        }
        start := time.Now()
        out, err := s.deps.Converter.Convert(ctx, original, data)
        metrics.ObserveRender("convert", time.Since(start))
        if err != nil {
            metrics.IncUpload(string(kind), "error")
            return workspace.Upload{}, fmt.Errorf("convert %s: %w", original, err)
        }
        pdfBytes = out
    }

    rendered, err := s.render(ctx, pdfBytes)
    if err != nil {
        metrics.IncUpload(string(kind), "error")
        return workspace.Upload{}, err
    }

    if s.deps.Janitor != nil {
        if _, err := s.deps.Janitor.Sweep(ctx); err != nil {
            s.log.Warn().Err(err).Msg("cleanup before store failed")
        }
    }

    id := uuid.NewString()
    if err := s.deps.Blob.Put(ctx, storage.PDFKey(id), pdfBytes); err != nil {
        metrics.IncUpload(string(kind), "error")
        return workspace.Upload{}, fmt.Errorf("store document: %w", err)
    }
    thumbs := make([]string, rendered.PageCount)
    for i, png := range rendered.Thumbnails {
        if err := s.deps.Blob.Put(ctx, storage.ThumbKey(id, i), png); err != nil {
            metrics.IncUpload(string(kind), "error")
            return workspace.Upload{}, fmt.Errorf("store thumbnail %d: %w", i+1, err)
        }
        thumbs[i] = s.thumbnailURL(id, i)
    }
    rec := store.FileRecord{FileID: id, OriginalName: original, PageCount: rendered.PageCount, Created: time.Now()}
    if err := s.deps.Files.PutFile(ctx, rec); err != nil {
        metrics.IncUpload(string(kind), "error")
        return workspace.Upload{}, fmt.Errorf("register file: %w", err)
    }

    metrics.IncUpload(string(kind), "ok")
    s.log.Info().Str("file_id", id).Str("name", original).Str("kind", string(kind)).Int("pages", rendered.PageCount).Msg("file uploaded")
    return workspace.Upload{FileID: id, OriginalName: original, PageCount: rendered.PageCount, Thumbnails: thumbs}, nil
}

// render rasterizes under the render slot limit.
func (s *Server) render(ctx context.Context, data []byte) (pdf.Rendered, error) {
    if s.deps.Limiter != nil {
        release, err := s.deps.Limiter.AcquireRender(ctx)
        if err != nil { return pdf.Rendered{}, err }
        defer release()
    }
    done := metrics.RenderStarted()
    defer done()
    start := time.Now()
    out, err := s.deps.Renderer.Render(ctx, data)
    metrics.ObserveRender("rasterize", time.Since(start))
    if err != nil { return pdf.Rendered{}, err }
    metrics.AddPagesRendered(out.PageCount)
    return out, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
    if r.ContentLength > s.deps.MaxUploadBytes { writeError(w, ErrTooLarge); return }
    r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
    if err := r.ParseMultipartForm(32 << 20); err != nil {
        if isTooLarge(err) { writeError(w, ErrTooLarge); return }
        writeError(w, ErrNoFile)
        return
    }
    defer r.MultipartForm.RemoveAll()
    file, hdr, err := r.FormFile("file")
    if err != nil { writeError(w, ErrNoFile); return }
    defer file.Close()
    if hdr.Filename == "" { writeError(w, ErrInvalidType); return }

    data, err := io.ReadAll(file)
    if err != nil {
        if isTooLarge(err) { writeError(w, ErrTooLarge); return }
        writeError(w, err)
        return
    }
    up, err := s.Upload(r.Context(), limiter.ClientKey(r), hdr.Filename, data)
    if err != nil {
        status, _ := StatusFor(err)
        if status >= 500 {
            s.log.Error().Err(err).Str("name", hdr.Filename).Msg("upload failed")
        }
        writeError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, up)
}

func isTooLarge(err error) bool {
    var tooLarge *http.MaxBytesError
    return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

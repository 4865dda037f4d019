// Package server is the upload and merge service: it accepts PDF and DOCX
// uploads, rasterizes page thumbnails, keeps the files for a limited time and
// assembles merged documents from page selections.
package server

import (
    "context"
    "encoding/json"
    "errors"
    "io"
    "net/http"
    "strconv"
    "strings"

    "github.com/google/uuid"
    "github.com/rs/zerolog"

    "github.com/local/foliocraft/internal/converter"
    "github.com/local/foliocraft/internal/logger"
    "github.com/local/foliocraft/internal/metrics"
    "github.com/local/foliocraft/internal/pdf"
    "github.com/local/foliocraft/internal/statuscheck"
    "github.com/local/foliocraft/internal/storage"
    "github.com/local/foliocraft/internal/store"
)

var (
    ErrNoFile             = errors.New("no file")
    ErrInvalidType        = errors.New("invalid file type")
    ErrConversionDisabled = errors.New("docx conversion is disabled")
    ErrRateLimited        = errors.New("upload rate limit exceeded")
    ErrNoPagesSelected    = errors.New("no pages selected")
    ErrTooLarge           = errors.New("upload too large")
)

type Renderer interface {
    Render(ctx context.Context, data []byte) (pdf.Rendered, error)
}

type Merger interface {
    Merge(ctx context.Context, parts []pdf.Part, w io.Writer) (int, error)
}

type Converter interface {
    Convert(ctx context.Context, name string, data []byte) ([]byte, error)
}

type Limiter interface {
    AcquireRender(ctx context.Context) (func(), error)
    AllowUpload(ctx context.Context, client string) (bool, error)
}

type Sweeper interface {
    Sweep(ctx context.Context) (int, error)
}

// FileRegistry remembers which file ids exist and how many pages they have.
type FileRegistry interface {
    PutFile(ctx context.Context, rec store.FileRecord) error
    GetFile(ctx context.Context, fileID string) (store.FileRecord, bool, error)
}

type Dependencies struct {
    Blob     storage.Blob
    Files    FileRegistry
    Renderer Renderer
    Merger   Merger
    // Converter may be nil; DOCX uploads are then rejected.
    Converter Converter
    Limiter   Limiter
    Janitor   Sweeper
    Status    *statuscheck.Checker

    MaxUploadBytes int64
    // BaseURL prefixes thumbnail URLs. Empty yields relative URLs.
    BaseURL string
    TempDir string
}

type Server struct {
    deps Dependencies
    log  zerolog.Logger
}

func New(deps Dependencies) *Server {
    if deps.MaxUploadBytes <= 0 { deps.MaxUploadBytes = 100 << 20 }
    deps.BaseURL = strings.TrimRight(deps.BaseURL, "/")
    return &Server{deps: deps, log: logger.Component("server")}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request){ w.WriteHeader(http.StatusOK); _,_ = w.Write([]byte("ok")) })
    mux.HandleFunc("GET /status", s.handleStatus)
    mux.Handle("GET /metrics", metrics.Handler())
    mux.HandleFunc("POST /upload", s.handleUpload)
    mux.HandleFunc("POST /merge", s.handleMerge)
    mux.HandleFunc("GET /thumbnails/{id}/{name}", s.handleThumbnail)
}

// StatusFor maps a service error to the HTTP status and the message shown to
// the user.
func StatusFor(err error) (int, string) {
    switch {
    case errors.Is(err, ErrTooLarge):
        return http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 100 MB."
    case errors.Is(err, ErrNoFile):
        return http.StatusBadRequest, "No file"
    case errors.Is(err, ErrInvalidType):
        return http.StatusBadRequest, "Invalid file type"
    case errors.Is(err, ErrConversionDisabled):
        return http.StatusBadRequest, "DOCX conversion is not available on this server"
    case errors.Is(err, converter.ErrCircuitOpen):
        return http.StatusServiceUnavailable, "DOCX conversion is temporarily unavailable, try again shortly"
    case errors.Is(err, ErrRateLimited):
        return http.StatusTooManyRequests, "Too many uploads, try again in a minute"
    case errors.Is(err, ErrNoPagesSelected):
        return http.StatusBadRequest, "No pages selected"
    case errors.Is(err, pdf.ErrNoPages):
        return http.StatusBadRequest, "No valid pages to merge"
    }
    return http.StatusInternalServerError, err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
    status, msg := StatusFor(err)
    writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) thumbnailURL(id string, n int) string {
    return s.deps.BaseURL + "/thumbnails/" + id + "/" + strconv.Itoa(n) + ".png"
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
    id := r.PathValue("id")
    name := r.PathValue("name")
    if _, err := uuid.Parse(id); err != nil { http.NotFound(w, r); return }
    if !strings.HasSuffix(name, ".png") { http.NotFound(w, r); return }
    n, err := strconv.Atoi(strings.TrimSuffix(name, ".png"))
    if err != nil || n < 0 { http.NotFound(w, r); return }

    data, err := s.deps.Blob.Get(r.Context(), storage.ThumbKey(id, n))
    if errors.Is(err, storage.ErrNotFound) { http.NotFound(w, r); return }
    if err != nil {
        s.log.Error().Err(err).Str("file_id", id).Int("page", n).Msg("thumbnail read failed")
        http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
        return
    }
    w.Header().Set("Content-Type", "image/png")
    w.Header().Set("Cache-Control", "private, max-age=1800")
    _, _ = w.Write(data)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
    if s.deps.Status == nil { http.NotFound(w, r); return }
    sum := s.deps.Status.Summary(r.Context())
    status := http.StatusOK
    if !sum.Healthy() { status = http.StatusServiceUnavailable }
    writeJSON(w, status, sum)
}

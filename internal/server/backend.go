package server

import (
    "bytes"
    "context"
    "io"

    "github.com/local/foliocraft/internal/client"
    "github.com/local/foliocraft/internal/workspace"
)

// Backend returns a client.Backend that calls the service in process on
// behalf of clientKey. Failures come back as *client.APIError carrying the
// same status and message the HTTP endpoints would answer with.
func (s *Server) Backend(clientKey string) client.Backend {
    return &localBackend{s: s, key: clientKey}
}

type localBackend struct {
    s   *Server
    key string
}

func (b *localBackend) Upload(ctx context.Context, name string, r io.Reader) (workspace.Upload, error) {
    data, err := io.ReadAll(io.LimitReader(r, b.s.deps.MaxUploadBytes+1))
    if err != nil { return workspace.Upload{}, apiError(err) }
    if int64(len(data)) > b.s.deps.MaxUploadBytes { return workspace.Upload{}, apiError(ErrTooLarge) }
    up, err := b.s.Upload(ctx, b.key, name, data)
    if err != nil {
        return workspace.Upload{}, apiError(err)
    }
    return up, nil
}

func (b *localBackend) Merge(ctx context.Context, mr workspace.MergeRequest) ([]byte, error) {
    var out bytes.Buffer
    if _, err := b.s.Merge(ctx, mr.Pages, &out); err != nil {
        return nil, apiError(err)
    }
    return out.Bytes(), nil
}

func apiError(err error) error {
    status, msg := StatusFor(err)
    return &client.APIError{Status: status, Message: msg}
}

// Package store keeps per-browser workspace sessions, the registry of
// uploaded files and short advisory locks, in Redis or in process memory.
package store

import (
    "context"
    "errors"
    "fmt"
    "time"

    redis "github.com/redis/go-redis/v9"

    "github.com/local/foliocraft/internal/workspace"
)

// ErrLocked is returned by Lock when ctx ends before the lock is free.
var ErrLocked = errors.New("resource is locked")

// FileRecord describes one stored upload.
type FileRecord struct {
    FileID       string    `json:"file_id"`
    OriginalName string    `json:"original_name"`
    PageCount    int       `json:"page_count"`
    Created      time.Time `json:"created"`
}

// Store is implemented by Redis and Memory.
type Store interface {
    LoadSession(ctx context.Context, id string) (*workspace.Session, bool, error)
    SaveSession(ctx context.Context, id string, s *workspace.Session) error
    PutFile(ctx context.Context, rec FileRecord) error
    GetFile(ctx context.Context, fileID string) (FileRecord, bool, error)
    // TryLock takes the named lock for at most ttl. ok is false when it is held.
    TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
    Close() error
}

// Lock waits for the named lock until ctx is done.
func Lock(ctx context.Context, s Store, name string, ttl time.Duration) (func(), error) {
    t := time.NewTicker(20 * time.Millisecond)
    defer t.Stop()
    for {
        release, ok, err := s.TryLock(ctx, name, ttl)
        if err != nil { return nil, err }
        if ok { return release, nil }
        select {
        case <-ctx.Done():
            return nil, fmt.Errorf("%w: %s", ErrLocked, name)
        case <-t.C:
        }
    }
}

// Connect parses redisURL and pings the server.
func Connect(redisURL string) (*redis.Client, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil {
        return nil, fmt.Errorf("parse redis url: %w", err)
    }
    c := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    if err := c.Ping(ctx).Err(); err != nil {
        _ = c.Close()
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    return c, nil
}

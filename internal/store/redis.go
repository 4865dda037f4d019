package store

import (
    "context"
    "encoding/json"
    "fmt"
    "strconv"
    "time"

    "github.com/google/uuid"
    redis "github.com/redis/go-redis/v9"

    "github.com/local/foliocraft/internal/workspace"
)

// releaseScript deletes a lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis keeps sessions as JSON strings and file records as hashes, both
// with an expiry.
type Redis struct {
    client     *redis.Client
    sessionTTL time.Duration
    fileTTL    time.Duration
}

func NewRedis(client *redis.Client, sessionTTL, fileTTL time.Duration) *Redis {
    return &Redis{client: client, sessionTTL: sessionTTL, fileTTL: fileTTL}
}

func (s *Redis) Client() *redis.Client { return s.client }

func (s *Redis) Close() error { return s.client.Close() }

func (s *Redis) sessionKey(id string) string { return fmt.Sprintf("session:%s", id) }
func (s *Redis) fileKey(id string) string    { return fmt.Sprintf("file:%s", id) }

func (s *Redis) LoadSession(ctx context.Context, id string) (*workspace.Session, bool, error) {
    b, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
    if err == redis.Nil { return nil, false, nil }
    if err != nil { return nil, false, err }
    var ws workspace.Session
    if err := json.Unmarshal(b, &ws); err != nil {
        return nil, false, fmt.Errorf("decode session %s: %w", id, err)
    }
    return &ws, true, nil
}

// SaveSession writes the session and restarts its TTL.
func (s *Redis) SaveSession(ctx context.Context, id string, ws *workspace.Session) error {
    b, err := json.Marshal(ws)
    if err != nil { return err }
    return s.client.Set(ctx, s.sessionKey(id), b, s.sessionTTL).Err()
}

func (s *Redis) PutFile(ctx context.Context, rec FileRecord) error {
    key := s.fileKey(rec.FileID)
    if rec.Created.IsZero() { rec.Created = time.Now() }
    m := map[string]interface{}{
        "original_name": rec.OriginalName,
        "page_count":    rec.PageCount,
        "created":       rec.Created.Format(time.RFC3339Nano),
    }
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, key, m)
    if s.fileTTL > 0 { pipe.Expire(ctx, key, s.fileTTL) }
    _, err := pipe.Exec(ctx)
    return err
}

func (s *Redis) GetFile(ctx context.Context, fileID string) (FileRecord, bool, error) {
    res, err := s.client.HGetAll(ctx, s.fileKey(fileID)).Result()
    if err != nil { return FileRecord{}, false, err }
    if len(res) == 0 { return FileRecord{}, false, nil }
    rec := FileRecord{FileID: fileID, OriginalName: res["original_name"]}
    rec.PageCount, _ = strconv.Atoi(res["page_count"])
    if v := res["created"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { rec.Created = t }
    }
    return rec, true, nil
}

func (s *Redis) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
    key := "lock:" + name
    token := uuid.NewString()
    ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
    if err != nil || !ok { return nil, false, err }
    release := func() {
        _ = releaseScript.Run(context.Background(), s.client, []string{key}, token).Err()
    }
    return release, true, nil
}

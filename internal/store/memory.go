package store

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    "github.com/local/foliocraft/internal/workspace"
)

type entry struct {
    data    []byte
    expires time.Time
}

// Memory is the single-process Store used when no Redis URL is configured.
// Sessions are kept serialized so callers never share state. Expired entries
// are dropped on read and by Sweep, which writes also trigger at most once per
// sweepEvery.
type Memory struct {
    mu         sync.Mutex
    sessions   map[string]entry
    files      map[string]FileRecord
    locks      map[string]time.Time
    sessionTTL time.Duration
    fileTTL    time.Duration
    now        func() time.Time
    lastSweep  time.Time
}

const sweepEvery = time.Minute

func NewMemory(sessionTTL, fileTTL time.Duration) *Memory {
    return &Memory{
        sessions:   map[string]entry{},
        files:      map[string]FileRecord{},
        locks:      map[string]time.Time{},
        sessionTTL: sessionTTL,
        fileTTL:    fileTTL,
        now:        time.Now,
    }
}

func (m *Memory) Close() error { return nil }

func (m *Memory) LoadSession(_ context.Context, id string) (*workspace.Session, bool, error) {
    m.mu.Lock()
    e, ok := m.sessions[id]
    if ok && m.sessionExpired(e, m.now()) {
        delete(m.sessions, id)
        ok = false
    }
    m.mu.Unlock()
    if !ok { return nil, false, nil }
    var ws workspace.Session
    if err := json.Unmarshal(e.data, &ws); err != nil { return nil, false, err }
    return &ws, true, nil
}

func (m *Memory) SaveSession(_ context.Context, id string, ws *workspace.Session) error {
    b, err := json.Marshal(ws)
    if err != nil { return err }
    m.mu.Lock()
    defer m.mu.Unlock()
    m.sessions[id] = entry{data: b, expires: m.now().Add(m.sessionTTL)}
    m.maybeSweep()
    return nil
}

func (m *Memory) PutFile(_ context.Context, rec FileRecord) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if rec.Created.IsZero() { rec.Created = m.now() }
    m.files[rec.FileID] = rec
    m.maybeSweep()
    return nil
}

func (m *Memory) GetFile(_ context.Context, fileID string) (FileRecord, bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    rec, ok := m.files[fileID]
    if ok && m.fileExpired(rec, m.now()) {
        delete(m.files, fileID)
        return FileRecord{}, false, nil
    }
    return rec, ok, nil
}

func (m *Memory) TryLock(_ context.Context, name string, ttl time.Duration) (func(), bool, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    now := m.now()
    if until, held := m.locks[name]; held && now.Before(until) {
        return nil, false, nil
    }
    until := now.Add(ttl)
    m.locks[name] = until
    return func() {
        m.mu.Lock()
        defer m.mu.Unlock()
        if m.locks[name] == until { delete(m.locks, name) }
    }, true, nil
}

// Sweep drops every expired session, file record and lock and returns how
// many entries were removed.
func (m *Memory) Sweep(now time.Time) int {
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.sweep(now)
}

// maybeSweep runs with m.mu held.
func (m *Memory) maybeSweep() {
    now := m.now()
    if now.Sub(m.lastSweep) < sweepEvery { return }
    m.sweep(now)
}

func (m *Memory) sweep(now time.Time) int {
    m.lastSweep = now
    n := 0
    for id, e := range m.sessions {
        if m.sessionExpired(e, now) {
            delete(m.sessions, id)
            n++
        }
    }
    for id, rec := range m.files {
        if m.fileExpired(rec, now) {
            delete(m.files, id)
            n++
        }
    }
    for name, until := range m.locks {
        if !now.Before(until) {
            delete(m.locks, name)
            n++
        }
    }
    return n
}

func (m *Memory) sessionExpired(e entry, now time.Time) bool {
    return m.sessionTTL > 0 && !now.Before(e.expires)
}

func (m *Memory) fileExpired(rec FileRecord, now time.Time) bool {
    return m.fileTTL > 0 && !now.Before(rec.Created.Add(m.fileTTL))
}

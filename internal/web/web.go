// Package web serves the browser organizer. Each browser gets a session held
// in the session store; every action loads it under a lock, applies one event
// and answers with re-rendered fragments or a small patch plus the current
// notification.
package web

import (
    "context"
    "embed"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "io/fs"
    "mime/multipart"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog"

    "github.com/local/foliocraft/internal/client"
    "github.com/local/foliocraft/internal/limiter"
    "github.com/local/foliocraft/internal/logger"
    "github.com/local/foliocraft/internal/metrics"
    "github.com/local/foliocraft/internal/prefs"
    "github.com/local/foliocraft/internal/store"
    "github.com/local/foliocraft/internal/view"
    "github.com/local/foliocraft/internal/workspace"
)

const (
    SessionCookie = "foliocraft_session"
    ThemeCookie   = "foliocraft_theme"
)

//go:embed static
var staticFiles embed.FS

// BackendFunc returns the upload/merge backend acting for one client.
type BackendFunc func(clientKey string) client.Backend

type Options struct {
    Renderer    *view.Renderer
    Sessions    store.Store
    Backend     BackendFunc
    AutoEnqueue bool
    // MaxUploadBytes bounds one /ui/upload request.
    MaxUploadBytes int64
    // LockTTL bounds how long one action may hold a session.
    LockTTL      time.Duration
    SecureCookie bool
}

type Web struct {
    view     *view.Renderer
    sessions store.Store
    backend  BackendFunc
    auto     bool
    maxBytes int64
    lockTTL  time.Duration
    secure   bool
    log      zerolog.Logger
}

func New(opts Options) *Web {
    if opts.MaxUploadBytes <= 0 { opts.MaxUploadBytes = 100 << 20 }
    if opts.LockTTL <= 0 { opts.LockTTL = 5 * time.Minute }
    return &Web{
        view:     opts.Renderer,
        sessions: opts.Sessions,
        backend:  opts.Backend,
        auto:     opts.AutoEnqueue,
        maxBytes: opts.MaxUploadBytes,
        lockTTL:  opts.LockTTL,
        secure:   opts.SecureCookie,
        log:      logger.Component("web"),
    }
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
    sub, _ := fs.Sub(staticFiles, "static")
    mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(sub)))
    mux.HandleFunc("GET /{$}", w.handleIndex)
    mux.HandleFunc("GET /ui/state", w.handleState)
    mux.HandleFunc("POST /ui/upload", w.handleUpload)
    mux.HandleFunc("POST /ui/merge", w.handleMerge)
    mux.HandleFunc("POST /ui/theme", w.handleTheme)

    mux.HandleFunc("POST /ui/files/move", w.fragmentAction(func(r *http.Request) (workspace.Event, error) {
        from, err := formInt(r, "from")
        if err != nil { return nil, err }
        to, err := formInt(r, "to")
        return workspace.FileMoved{From: from, To: to}, err
    }))
    mux.HandleFunc("POST /ui/files/{id}/activate", w.fragmentAction(func(r *http.Request) (workspace.Event, error) {
        return workspace.FileActivated{FileID: r.PathValue("id")}, nil
    }))
    mux.HandleFunc("POST /ui/files/{id}/remove", w.fragmentAction(func(r *http.Request) (workspace.Event, error) {
        return workspace.FileRemoved{FileID: r.PathValue("id")}, nil
    }))
    mux.HandleFunc("POST /ui/files/{id}/step", w.fragmentAction(func(r *http.Request) (workspace.Event, error) {
        d, err := formInt(r, "delta")
        return workspace.FileStepped{FileID: r.PathValue("id"), Delta: d}, err
    }))
    mux.HandleFunc("POST /ui/pages/{id}/{page}/rotate", w.handleRotate)
    mux.HandleFunc("POST /ui/pages/{id}/{page}/toggle", w.handleToggle)
    mux.HandleFunc("POST /ui/queue/move", w.fragmentAction(func(r *http.Request) (workspace.Event, error) {
        from, err := formInt(r, "from")
        if err != nil { return nil, err }
        to, err := formInt(r, "to")
        return workspace.QueueMoved{From: from, To: to}, err
    }))
    mux.HandleFunc("POST /ui/queue/drop", w.fragmentAction(func(r *http.Request) (workspace.Event, error) {
        sp, err := formInt(r, "src_page")
        if err != nil { return nil, err }
        dp, err := formInt(r, "dst_page")
        if err != nil { return nil, err }
        return workspace.QueueDropped{
            Source: workspace.Entry{FileID: r.FormValue("src_file"), PageIndex: sp},
            Target: workspace.Entry{FileID: r.FormValue("dst_file"), PageIndex: dp},
        }, nil
    }))
    mux.HandleFunc("POST /ui/queue/{index}/step", w.fragmentAction(func(r *http.Request) (workspace.Event, error) {
        i, err := strconv.Atoi(r.PathValue("index"))
        if err != nil { return nil, errBadForm("index") }
        d, err := formInt(r, "delta")
        return workspace.QueueStepped{Index: i, Delta: d}, err
    }))
    mux.HandleFunc("POST /ui/queue/select-all", w.fragmentAction(func(*http.Request) (workspace.Event, error) {
        return workspace.AllSelected{}, nil
    }))
    mux.HandleFunc("POST /ui/queue/clear", w.fragmentAction(func(*http.Request) (workspace.Event, error) {
        return workspace.QueueCleared{}, nil
    }))
    mux.HandleFunc("POST /ui/view", w.fragmentAction(func(r *http.Request) (workspace.Event, error) {
        return workspace.ViewChanged{Mode: workspace.ViewMode(r.FormValue("mode"))}, nil
    }))
}

// reply is the JSON answer to a /ui action.
type reply struct {
    Fragments *view.Fragments      `json:"fragments,omitempty"`
    Rotation  *view.RotationPatch  `json:"rotation,omitempty"`
    Selection *view.SelectionPatch `json:"selection,omitempty"`
    QueueHTML string               `json:"queue_html,omitempty"`
    Toast     *view.Toast          `json:"toast,omitempty"`
}

type formError string

func errBadForm(field string) error { return formError(field) }

func (e formError) Error() string { return "invalid value for " + string(e) }

func formInt(r *http.Request, key string) (int, error) {
    n, err := strconv.Atoi(strings.TrimSpace(r.FormValue(key)))
    if err != nil { return 0, errBadForm(key) }
    return n, nil
}

func toast(level, msg string) *view.Toast {
    return &view.Toast{Level: level, Message: msg, TTLms: client.ToastTTL.Milliseconds()}
}

func writeJSON(wr http.ResponseWriter, status int, v any) {
    wr.Header().Set("Content-Type", "application/json")
    wr.WriteHeader(status)
    _ = json.NewEncoder(wr).Encode(v)
}

// sessionID returns the browser's session id, issuing a new one if needed.
func (w *Web) sessionID(wr http.ResponseWriter, r *http.Request) string {
    if c, err := r.Cookie(SessionCookie); err == nil {
        if _, err := uuid.Parse(c.Value); err == nil { return c.Value }
    }
    id := uuid.NewString()
    http.SetCookie(wr, &http.Cookie{Name: SessionCookie, Value: id, Path: "/", HttpOnly: true, Secure: w.secure, SameSite: http.SameSiteLaxMode})
    return id
}

func (w *Web) load(ctx context.Context, id string) (*workspace.Session, error) {
    s, ok, err := w.sessions.LoadSession(ctx, id)
    if err != nil { return nil, err }
    if !ok { return workspace.New(), nil }
    return s, nil
}

// update runs fn on the session under its lock and saves the result when fn
// succeeds.
func (w *Web) update(ctx context.Context, id string, fn func(s *workspace.Session) (*workspace.Session, error)) (*workspace.Session, error) {
    release, err := store.Lock(ctx, w.sessions, "session:"+id, w.lockTTL)
    if err != nil { return nil, err }
    defer release()
    s, err := w.load(ctx, id)
    if err != nil { return nil, err }
    next, err := fn(s)
    if err != nil { return s, err }
    if err := w.sessions.SaveSession(ctx, id, next); err != nil { return nil, err }
    return next, nil
}

func (w *Web) theme(wr http.ResponseWriter, r *http.Request) prefs.Theme {
    return prefs.Load(&cookieStore{w: wr, r: r, secure: w.secure})
}

func (w *Web) handleIndex(wr http.ResponseWriter, r *http.Request) {
    id := w.sessionID(wr, r)
    s, err := w.load(r.Context(), id)
    if err != nil {
        w.log.Error().Err(err).Msg("session load failed")
        http.Error(wr, "session store unavailable", http.StatusServiceUnavailable)
        return
    }
    wr.Header().Set("Content-Type", "text/html; charset=utf-8")
    if err := w.view.Render(wr, view.PageData(s, string(w.theme(wr, r)), nil)); err != nil {
        w.log.Error().Err(err).Msg("page render failed")
    }
}

func (w *Web) handleState(wr http.ResponseWriter, r *http.Request) {
    s, err := w.load(r.Context(), w.sessionID(wr, r))
    if err != nil { w.fail(wr, http.StatusServiceUnavailable, err); return }
    w.sendFragments(wr, http.StatusOK, s, nil)
}

func (w *Web) sendFragments(wr http.ResponseWriter, status int, s *workspace.Session, t *view.Toast) {
    fr, err := w.view.Fragments(s, t)
    if err != nil {
        w.log.Error().Err(err).Msg("fragment render failed")
        writeJSON(wr, http.StatusInternalServerError, reply{Toast: toast(client.LevelError, "Render failed")})
        return
    }
    writeJSON(wr, status, reply{Fragments: &fr, Toast: t})
}

func (w *Web) fail(wr http.ResponseWriter, status int, err error) {
    if status >= 500 { w.log.Error().Err(err).Msg("ui action failed") }
    writeJSON(wr, status, reply{Toast: toast(client.LevelError, err.Error())})
}

// statusOf maps reducer and store errors to HTTP statuses.
func statusOf(err error) int {
    var fe formError
    switch {
    case errors.As(err, &fe),
        errors.Is(err, workspace.ErrUnknownFile),
        errors.Is(err, workspace.ErrPageOutOfRange),
        errors.Is(err, workspace.ErrIndexOutOfRange),
        errors.Is(err, workspace.ErrBadRotation),
        errors.Is(err, workspace.ErrBadViewMode),
        errors.Is(err, workspace.ErrNoActiveFile):
        return http.StatusBadRequest
    case errors.Is(err, store.ErrLocked), errors.Is(err, client.ErrMergeInFlight):
        return http.StatusConflict
    }
    return http.StatusInternalServerError
}

// apply runs one event on the session of r.
func (w *Web) apply(wr http.ResponseWriter, r *http.Request, ev workspace.Event) (*workspace.Session, error) {
    id := w.sessionID(wr, r)
    s, err := w.update(r.Context(), id, func(s *workspace.Session) (*workspace.Session, error) {
        return workspace.Reduce(s, ev)
    })
    metrics.IncUIAction(ev.Name(), err == nil)
    if err != nil {
        w.log.Debug().Err(err).Str("event", ev.Name()).Msg("event rejected")
    }
    return s, err
}

// fragmentAction answers an event with the re-rendered file list, workspace
// and queue.
func (w *Web) fragmentAction(parse func(r *http.Request) (workspace.Event, error)) http.HandlerFunc {
    return func(wr http.ResponseWriter, r *http.Request) {
        ev, err := parse(r)
        if err != nil { w.fail(wr, http.StatusBadRequest, err); return }
        s, err := w.apply(wr, r, ev)
        if err != nil {
            if s == nil { w.fail(wr, statusOf(err), err); return }
            w.sendFragments(wr, statusOf(err), s, toast(client.LevelError, err.Error()))
            return
        }
        w.sendFragments(wr, http.StatusOK, s, nil)
    }
}

func pageRef(r *http.Request) (string, int, error) {
    page, err := strconv.Atoi(r.PathValue("page"))
    if err != nil { return "", 0, errBadForm("page") }
    return r.PathValue("id"), page, nil
}

func (w *Web) queueHTML(s *workspace.Session) string {
    fr, err := w.view.Fragments(s, nil)
    if err != nil {
        w.log.Error().Err(err).Msg("queue render failed")
        return ""
    }
    return fr.Queue
}

func (w *Web) handleRotate(wr http.ResponseWriter, r *http.Request) {
    id, page, err := pageRef(r)
    if err != nil { w.fail(wr, http.StatusBadRequest, err); return }
    deg, err := formInt(r, "deg")
    if err != nil { w.fail(wr, http.StatusBadRequest, err); return }
    s, err := w.apply(wr, r, workspace.PageRotated{FileID: id, PageIndex: page, Degrees: deg})
    if err != nil { w.fail(wr, statusOf(err), err); return }
    p := view.Rotation(s, id, page)
    writeJSON(wr, http.StatusOK, reply{Rotation: &p, QueueHTML: w.queueHTML(s)})
}

func (w *Web) handleToggle(wr http.ResponseWriter, r *http.Request) {
    id, page, err := pageRef(r)
    if err != nil { w.fail(wr, http.StatusBadRequest, err); return }
    s, err := w.apply(wr, r, workspace.PageToggled{FileID: id, PageIndex: page})
    if err != nil { w.fail(wr, statusOf(err), err); return }
    p := view.Selection(s, id)
    writeJSON(wr, http.StatusOK, reply{Selection: &p, QueueHTML: w.queueHTML(s)})
}

// handleUpload adds the files of a multipart request, one at a time, through
// the controller. Failed files are reported in the toast; the others stay.
// Conversion and rendering run on a scratch session so the session lock is
// only held while the results are folded in.
func (w *Web) handleUpload(wr http.ResponseWriter, r *http.Request) {
    r.Body = http.MaxBytesReader(wr, r.Body, w.maxBytes)
    if err := r.ParseMultipartForm(32 << 20); err != nil {
        var tooLarge *http.MaxBytesError
        if errors.As(err, &tooLarge) {
            writeJSON(wr, http.StatusRequestEntityTooLarge, reply{Toast: toast(client.LevelError, client.TooLargeMessage)})
            return
        }
        writeJSON(wr, http.StatusBadRequest, reply{Toast: toast(client.LevelError, "No file")})
        return
    }
    defer r.MultipartForm.RemoveAll()
    hdrs := r.MultipartForm.File["file"]
    if len(hdrs) == 0 {
        writeJSON(wr, http.StatusBadRequest, reply{Toast: toast(client.LevelError, "No file")})
        return
    }

    srcs := make([]client.Source, 0, len(hdrs))
    for _, h := range hdrs {
        srcs = append(srcs, multipartSource(h))
    }
    id := w.sessionID(wr, r)
    toasts := client.NewToasts()
    scratch := client.NewController(w.backend(limiter.ClientKey(r)), client.Options{Notifier: toasts, Session: workspace.New()})
    added := scratch.UploadFiles(r.Context(), srcs)

    s, err := w.update(r.Context(), id, func(s *workspace.Session) (*workspace.Session, error) {
        for _, u := range added {
            next, err := workspace.Reduce(s, workspace.FileUploaded{Upload: u, AutoEnqueue: w.auto})
            if err != nil {
                w.log.Warn().Err(err).Str("file_id", u.FileID).Msg("uploaded file not added")
                toasts.Notify(client.LevelError, fmt.Sprintf("%s: %s", u.OriginalName, err.Error()))
                continue
            }
            s = next
        }
        return s, nil
    })
    metrics.IncUIAction("file_uploaded", err == nil && len(added) == len(srcs))
    if err != nil { w.fail(wr, statusOf(err), err); return }
    w.sendFragments(wr, http.StatusOK, s, toasts.Current())
}

func multipartSource(h *multipart.FileHeader) client.Source {
    return client.Source{
        Name: h.Filename,
        Open: func() (io.ReadCloser, error) { return h.Open() },
    }
}

// handleMerge streams the merged document of the session's queue. Only one
// merge per session runs at a time.
func (w *Web) handleMerge(wr http.ResponseWriter, r *http.Request) {
    id := w.sessionID(wr, r)
    release, ok, err := w.sessions.TryLock(r.Context(), "merge:"+id, w.lockTTL)
    if err != nil { w.fail(wr, http.StatusServiceUnavailable, err); return }
    if !ok {
        writeJSON(wr, http.StatusConflict, reply{Toast: toast(client.LevelError, "Merge already in progress")})
        return
    }
    defer release()

    s, err := w.load(r.Context(), id)
    if err != nil { w.fail(wr, http.StatusServiceUnavailable, err); return }
    toasts := client.NewToasts()
    ctl := client.NewController(w.backend(limiter.ClientKey(r)), client.Options{Notifier: toasts, Session: s})
    dl, err := ctl.Merge(r.Context())
    metrics.IncUIAction("merge", err == nil)
    if err != nil {
        status := http.StatusBadGateway
        var apiErr *client.APIError
        switch {
        case errors.Is(err, workspace.ErrEmptyQueue):
            status = http.StatusBadRequest
        case errors.As(err, &apiErr):
            status = apiErr.Status
        }
        writeJSON(wr, status, reply{Toast: toasts.Current()})
        return
    }
    if t := toasts.Current(); t != nil {
        wr.Header().Set("X-Toast-Level", t.Level)
        wr.Header().Set("X-Toast-Message", t.Message)
    }
    wr.Header().Set("Content-Type", "application/pdf")
    wr.Header().Set("Content-Disposition", `attachment; filename="`+dl.Name+`"`)
    wr.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
    _, _ = wr.Write(dl.Data)
}

func (w *Web) handleTheme(wr http.ResponseWriter, r *http.Request) {
    cs := &cookieStore{w: wr, r: r, secure: w.secure}
    t := prefs.Load(cs).Toggle()
    prefs.Save(cs, t)
    writeJSON(wr, http.StatusOK, map[string]string{"theme": string(t)})
}

// cookieStore keeps preferences in a browser cookie.
type cookieStore struct {
    w      http.ResponseWriter
    r      *http.Request
    secure bool
}

func (c *cookieStore) Get(key string) (string, bool, error) {
    if key != prefs.Key { return "", false, nil }
    ck, err := c.r.Cookie(ThemeCookie)
    if errors.Is(err, http.ErrNoCookie) { return "", false, nil }
    if err != nil { return "", false, err }
    return ck.Value, true, nil
}

func (c *cookieStore) Set(key, value string) error {
    if key != prefs.Key { return errors.New("unsupported preference: " + key) }
    http.SetCookie(c.w, &http.Cookie{Name: ThemeCookie, Value: value, Path: "/", MaxAge: 365 * 24 * 3600, Secure: c.secure, SameSite: http.SameSiteLaxMode})
    return nil
}

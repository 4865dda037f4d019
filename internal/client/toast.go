package client

import (
	"sync"
	"time"

	"github.com/local/foliocraft/internal/view"
)

// ToastTTL is how long a notification stays visible.
const ToastTTL = 3 * time.Second

// Toast levels.
const (
	LevelError   = "error"
	LevelSuccess = "success"
)

// Notifier receives user-visible messages.
type Notifier interface {
	Notify(level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level, message string)

func (f NotifierFunc) Notify(level, message string) { f(level, message) }

// Toasts keeps the single current notification. A new message replaces the
// previous one and restarts its lifetime.
type Toasts struct {
	mu    sync.Mutex
	cur   *view.Toast
	shown time.Time
	now   func() time.Time
}

// NewToasts returns an empty notifier using the wall clock.
func NewToasts() *Toasts {
	return &Toasts{now: time.Now}
}

func (t *Toasts) Notify(level, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur = &view.Toast{Level: level, Message: message, TTLms: ToastTTL.Milliseconds()}
	t.shown = t.now()
}

// Current returns the visible notification, or nil once it expired.
func (t *Toasts) Current() *view.Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil || t.now().Sub(t.shown) >= ToastTTL {
		t.cur = nil
		return nil
	}
	c := *t.cur
	return &c
}

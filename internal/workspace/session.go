// Package workspace holds the organizer's session state: the uploaded files in
// display order, the active file, the ordered selection queue and the view mode.
//
// Every mutation leaves the session consistent: queue entries always point at a
// file that is present and at a page index inside that file.
package workspace

import (
	"errors"
	"fmt"
)

// ViewMode selects how the active file's pages are shown.
type ViewMode string

const (
	ViewGrid ViewMode = "grid"
	ViewRead ViewMode = "read"
)

// Valid reports whether m is a known view mode.
func (m ViewMode) Valid() bool { return m == ViewGrid || m == ViewRead }

var (
	ErrUnknownFile     = errors.New("unknown file")
	ErrDuplicateFile   = errors.New("file already in workspace")
	ErrPageOutOfRange  = errors.New("page index out of range")
	ErrIndexOutOfRange = errors.New("position out of range")
	ErrBadRotation     = errors.New("rotation must be a multiple of 90 degrees")
	ErrBadViewMode     = errors.New("unknown view mode")
	ErrNoActiveFile    = errors.New("no active file")
	ErrEmptyQueue      = errors.New("no pages selected")
)

// PageState is the mutable per-page state.
type PageState struct {
	Rotation int `json:"rotation"`
}

// File is an uploaded document as the workspace sees it.
type File struct {
	ID         string      `json:"file_id"`
	Name       string      `json:"original_name"`
	PageCount  int         `json:"page_count"`
	Thumbnails []string    `json:"thumbnails"`
	Pages      []PageState `json:"pages"`
}

// Entry is one selection queue item.
type Entry struct {
	FileID    string `json:"file_id"`
	PageIndex int    `json:"page_index"`
}

// Upload is what the upload endpoint returns for one file.
type Upload struct {
	FileID       string   `json:"file_id"`
	OriginalName string   `json:"original_name"`
	PageCount    int      `json:"page_count"`
	Thumbnails   []string `json:"thumbnails"`
}

// Session is the complete workspace state of one user.
type Session struct {
	Files    []File   `json:"files"`
	ActiveID string   `json:"active_id,omitempty"`
	Queue    []Entry  `json:"queue"`
	ViewMode ViewMode `json:"view_mode"`
}

// New returns an empty session in grid view.
func New() *Session {
	return &Session{ViewMode: ViewGrid}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := &Session{ActiveID: s.ActiveID, ViewMode: s.ViewMode}
	if s.Files != nil {
		c.Files = make([]File, len(s.Files))
		for i, f := range s.Files {
			f.Thumbnails = append([]string(nil), f.Thumbnails...)
			f.Pages = append([]PageState(nil), f.Pages...)
			c.Files[i] = f
		}
	}
	if s.Queue != nil {
		c.Queue = append([]Entry(nil), s.Queue...)
	}
	return c
}

// FileIndex returns the display position of the file or -1.
func (s *Session) FileIndex(id string) int {
	for i := range s.Files {
		if s.Files[i].ID == id {
			return i
		}
	}
	return -1
}

// File returns the file with the given id.
func (s *Session) File(id string) (*File, bool) {
	i := s.FileIndex(id)
	if i < 0 {
		return nil, false
	}
	return &s.Files[i], true
}

// Active returns the active file, if any.
func (s *Session) Active() (*File, bool) {
	if s.ActiveID == "" {
		return nil, false
	}
	return s.File(s.ActiveID)
}

func (s *Session) page(id string, page int) (*File, error) {
	f, ok := s.File(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFile, id)
	}
	if page < 0 || page >= len(f.Pages) {
		return nil, fmt.Errorf("%w: %d (file has %d pages)", ErrPageOutOfRange, page, len(f.Pages))
	}
	return f, nil
}

// Rotation returns the current rotation of a page, or 0 if it cannot be resolved.
func (s *Session) Rotation(id string, page int) int {
	f, err := s.page(id, page)
	if err != nil {
		return 0
	}
	return f.Pages[page].Rotation
}

// Rotate adds deg (a positive or negative multiple of 90) to the page's rotation
// and returns the new value, always in [0, 360).
func (s *Session) Rotate(id string, page, deg int) (int, error) {
	if deg%90 != 0 {
		return 0, fmt.Errorf("%w: %d", ErrBadRotation, deg)
	}
	f, err := s.page(id, page)
	if err != nil {
		return 0, err
	}
	r := NormalizeRotation(f.Pages[page].Rotation + deg)
	f.Pages[page].Rotation = r
	return r, nil
}

// NormalizeRotation maps any angle onto [0, 360).
func NormalizeRotation(deg int) int {
	return ((deg % 360) + 360) % 360
}

// SetViewMode switches between grid and read view.
func (s *Session) SetViewMode(m ViewMode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrBadViewMode, m)
	}
	s.ViewMode = m
	return nil
}

// Stats is the header counter block.
type Stats struct {
	Files    int
	Pages    int
	Selected int
}

// Stats counts files, pages and queued pages.
func (s *Session) Stats() Stats {
	st := Stats{Files: len(s.Files), Selected: len(s.Queue)}
	for _, f := range s.Files {
		st.Pages += f.PageCount
	}
	return st
}

// CanMerge reports whether the merge action should be enabled.
func (s *Session) CanMerge() bool { return len(s.Queue) > 0 }

// Validate checks the session invariants.
func (s *Session) Validate() error {
	seen := make(map[Entry]struct{}, len(s.Queue))
	for _, e := range s.Queue {
		if _, err := s.page(e.FileID, e.PageIndex); err != nil {
			return fmt.Errorf("queue entry %s/%d: %w", e.FileID, e.PageIndex, err)
		}
		if _, dup := seen[e]; dup {
			return fmt.Errorf("queue entry %s/%d appears twice", e.FileID, e.PageIndex)
		}
		seen[e] = struct{}{}
	}
	ids := make(map[string]struct{}, len(s.Files))
	for _, f := range s.Files {
		if _, dup := ids[f.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateFile, f.ID)
		}
		ids[f.ID] = struct{}{}
		for _, p := range f.Pages {
			if p.Rotation < 0 || p.Rotation >= 360 || p.Rotation%90 != 0 {
				return fmt.Errorf("file %s: bad rotation %d", f.ID, p.Rotation)
			}
		}
	}
	if s.ActiveID != "" {
		if _, ok := ids[s.ActiveID]; !ok {
			return fmt.Errorf("active %w: %s", ErrUnknownFile, s.ActiveID)
		}
	}
	if !s.ViewMode.Valid() {
		return fmt.Errorf("%w: %q", ErrBadViewMode, s.ViewMode)
	}
	return nil
}

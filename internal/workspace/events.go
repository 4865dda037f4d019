package workspace

import (
	"errors"
	"fmt"
)

// Event is a discrete user action. Reduce applies it to a copy of a session.
type Event interface {
	apply(s *Session) error
	Name() string
}

type (
	FileUploaded struct {
		Upload      Upload
		AutoEnqueue bool
	}
	FileRemoved   struct{ FileID string }
	FileActivated struct{ FileID string }
	FileMoved     struct{ From, To int }
	FileStepped   struct {
		FileID string
		Delta  int
	}
	PageRotated struct {
		FileID    string
		PageIndex int
		Degrees   int
	}
	PageToggled struct {
		FileID    string
		PageIndex int
	}
	QueueMoved   struct{ From, To int }
	QueueDropped struct{ Source, Target Entry }
	QueueStepped struct{ Index, Delta int }
	AllSelected  struct{}
	QueueCleared struct{}
	ViewChanged  struct{ Mode ViewMode }
)

func (e FileUploaded) apply(s *Session) error  { return s.AddFile(e.Upload, e.AutoEnqueue) }
func (e FileRemoved) apply(s *Session) error   { return s.RemoveFile(e.FileID) }
func (e FileActivated) apply(s *Session) error { return s.SetActive(e.FileID) }
func (e FileMoved) apply(s *Session) error     { return s.MoveFile(e.From, e.To) }
func (e FileStepped) apply(s *Session) error   { return s.StepFile(e.FileID, e.Delta) }
func (e PageRotated) apply(s *Session) error {
	_, err := s.Rotate(e.FileID, e.PageIndex, e.Degrees)
	return err
}
func (e PageToggled) apply(s *Session) error {
	_, err := s.Toggle(e.FileID, e.PageIndex)
	return err
}
func (e QueueMoved) apply(s *Session) error { return s.MoveQueueEntry(e.From, e.To) }
func (e QueueDropped) apply(s *Session) error {
	s.MoveQueueEntryTo(e.Source, e.Target)
	return nil
}
func (e QueueStepped) apply(s *Session) error { return s.StepQueueEntry(e.Index, e.Delta) }
func (e AllSelected) apply(s *Session) error {
	if err := s.SelectAll(); err != nil && !errors.Is(err, ErrNoActiveFile) {
		return err
	}
	return nil
}
func (e QueueCleared) apply(s *Session) error { s.Clear(); return nil }
func (e ViewChanged) apply(s *Session) error  { return s.SetViewMode(e.Mode) }

func (FileUploaded) Name() string  { return "file_uploaded" }
func (FileRemoved) Name() string   { return "file_removed" }
func (FileActivated) Name() string { return "file_activated" }
func (FileMoved) Name() string     { return "file_moved" }
func (FileStepped) Name() string   { return "file_stepped" }
func (PageRotated) Name() string   { return "page_rotated" }
func (PageToggled) Name() string   { return "page_toggled" }
func (QueueMoved) Name() string    { return "queue_moved" }
func (QueueDropped) Name() string  { return "queue_dropped" }
func (QueueStepped) Name() string  { return "queue_stepped" }
func (AllSelected) Name() string   { return "all_selected" }
func (QueueCleared) Name() string  { return "queue_cleared" }
func (ViewChanged) Name() string   { return "view_changed" }

// Reduce applies ev to a copy of s and returns the new snapshot. s is never
// modified; on error the returned session is nil.
func Reduce(s *Session, ev Event) (*Session, error) {
	if s == nil {
		s = New()
	}
	next := s.Clone()
	if err := ev.apply(next); err != nil {
		return nil, fmt.Errorf("%s: %w", ev.Name(), err)
	}
	return next, nil
}

package workspace

import "fmt"

// AddFile appends an uploaded file with every page at rotation zero and makes it
// the active file. With autoEnqueue all its pages are queued in page order.
func (s *Session) AddFile(u Upload, autoEnqueue bool) error {
	if u.FileID == "" {
		return fmt.Errorf("%w: empty id", ErrUnknownFile)
	}
	if s.FileIndex(u.FileID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateFile, u.FileID)
	}
	n := u.PageCount
	if n < 0 {
		n = 0
	}
	s.Files = append(s.Files, File{
		ID:         u.FileID,
		Name:       u.OriginalName,
		PageCount:  n,
		Thumbnails: append([]string(nil), u.Thumbnails...),
		Pages:      make([]PageState, n),
	})
	s.ActiveID = u.FileID
	if autoEnqueue {
		s.enqueueAll(u.FileID)
	}
	return nil
}

// SetActive makes id the file shown in the workspace.
func (s *Session) SetActive(id string) error {
	if s.FileIndex(id) < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownFile, id)
	}
	s.ActiveID = id
	return nil
}

// RemoveFile deletes a file and every queue entry pointing at it. When the
// removed file was active the new first file becomes active, or none.
func (s *Session) RemoveFile(id string) error {
	i := s.FileIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownFile, id)
	}
	s.Files = append(s.Files[:i], s.Files[i+1:]...)

	kept := s.Queue[:0]
	for _, e := range s.Queue {
		if e.FileID != id {
			kept = append(kept, e)
		}
	}
	s.Queue = kept

	if s.ActiveID == id {
		s.ActiveID = ""
		if len(s.Files) > 0 {
			s.ActiveID = s.Files[0].ID
		}
	}
	return nil
}

// MoveFile moves the file at position from to position to, shifting the files
// in between. This is the drag-and-drop reorder.
func (s *Session) MoveFile(from, to int) error {
	return move(s.Files, from, to)
}

// StepFile moves a file one slot up (delta -1) or down (delta +1). Steps past
// either end are ignored.
func (s *Session) StepFile(id string, delta int) error {
	i := s.FileIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownFile, id)
	}
	j := i + sign(delta)
	if j < 0 || j >= len(s.Files) {
		return nil
	}
	s.Files[i], s.Files[j] = s.Files[j], s.Files[i]
	return nil
}

// FileSelection returns how many pages of the file are queued and how many it has.
func (s *Session) FileSelection(id string) (selected, total int) {
	f, ok := s.File(id)
	if !ok {
		return 0, 0
	}
	for _, e := range s.Queue {
		if e.FileID == id {
			selected++
		}
	}
	return selected, f.PageCount
}

// move relocates xs[from] to index to, in place.
func move[T any](xs []T, from, to int) error {
	if from < 0 || from >= len(xs) || to < 0 || to >= len(xs) {
		return fmt.Errorf("%w: %d -> %d (len %d)", ErrIndexOutOfRange, from, to, len(xs))
	}
	if from == to {
		return nil
	}
	v := xs[from]
	if from < to {
		copy(xs[from:to], xs[from+1:to+1])
	} else {
		copy(xs[to+1:from+1], xs[to:from])
	}
	xs[to] = v
	return nil
}

func sign(d int) int {
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	}
	return 0
}

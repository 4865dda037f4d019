package workspace

import "fmt"

// Queued reports whether the page is in the selection queue.
func (s *Session) Queued(id string, page int) bool {
	return s.queueIndex(id, page) >= 0
}

func (s *Session) queueIndex(id string, page int) int {
	for i, e := range s.Queue {
		if e.FileID == id && e.PageIndex == page {
			return i
		}
	}
	return -1
}

// Position returns the 1-based queue position of a page, or 0 when not queued.
func (s *Session) Position(id string, page int) int {
	return s.queueIndex(id, page) + 1
}

// Toggle removes the page from the queue if present, otherwise inserts it. It
// returns whether the page is queued afterwards.
//
// Insertion follows document order (file display order, then page index): the
// new entry goes right after its closest queued predecessor, else right before
// its closest queued successor, else at the end.
func (s *Session) Toggle(id string, page int) (bool, error) {
	if _, err := s.page(id, page); err != nil {
		return false, err
	}
	if i := s.queueIndex(id, page); i >= 0 {
		s.Queue = append(s.Queue[:i], s.Queue[i+1:]...)
		return false, nil
	}
	s.insert(Entry{FileID: id, PageIndex: page}, s.anchor(id, page))
	return true, nil
}

// anchor picks the insertion index for a new entry.
func (s *Session) anchor(id string, page int) int {
	key := s.docKey(id, page)
	pred, succ := -1, -1
	for i, e := range s.Queue {
		k := s.docKey(e.FileID, e.PageIndex)
		switch {
		case less(k, key):
			if pred < 0 || less(s.docKey(s.Queue[pred].FileID, s.Queue[pred].PageIndex), k) {
				pred = i
			}
		case less(key, k):
			if succ < 0 || less(k, s.docKey(s.Queue[succ].FileID, s.Queue[succ].PageIndex)) {
				succ = i
			}
		}
	}
	switch {
	case pred >= 0:
		return pred + 1
	case succ >= 0:
		return succ
	}
	return len(s.Queue)
}

type docKey struct{ file, page int }

func (s *Session) docKey(id string, page int) docKey {
	return docKey{file: s.FileIndex(id), page: page}
}

func less(a, b docKey) bool {
	if a.file != b.file {
		return a.file < b.file
	}
	return a.page < b.page
}

func (s *Session) insert(e Entry, at int) {
	s.Queue = append(s.Queue, Entry{})
	copy(s.Queue[at+1:], s.Queue[at:])
	s.Queue[at] = e
}

// MoveQueueEntry moves the queue entry at from to position to.
func (s *Session) MoveQueueEntry(from, to int) error {
	return move(s.Queue, from, to)
}

// MoveQueueEntryTo is the drag-and-drop form: the dragged entry takes the
// position of the drop target. It reports false and does nothing unless both
// pages are queued.
func (s *Session) MoveQueueEntryTo(src, dst Entry) bool {
	from := s.queueIndex(src.FileID, src.PageIndex)
	to := s.queueIndex(dst.FileID, dst.PageIndex)
	if from < 0 || to < 0 {
		return false
	}
	_ = move(s.Queue, from, to)
	return true
}

// StepQueueEntry moves the entry at i one slot earlier (delta -1) or later
// (delta +1). Steps past either end are ignored.
func (s *Session) StepQueueEntry(i, delta int) error {
	if i < 0 || i >= len(s.Queue) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(s.Queue))
	}
	j := i + sign(delta)
	if j < 0 || j >= len(s.Queue) {
		return nil
	}
	s.Queue[i], s.Queue[j] = s.Queue[j], s.Queue[i]
	return nil
}

// SelectAll appends every page of the active file that is not queued yet, in
// page order.
func (s *Session) SelectAll() error {
	f, ok := s.Active()
	if !ok {
		return ErrNoActiveFile
	}
	s.enqueueAll(f.ID)
	return nil
}

func (s *Session) enqueueAll(id string) {
	f, ok := s.File(id)
	if !ok {
		return
	}
	for i := range f.Pages {
		if !s.Queued(id, i) {
			s.Queue = append(s.Queue, Entry{FileID: id, PageIndex: i})
		}
	}
}

// Clear empties the queue.
func (s *Session) Clear() {
	s.Queue = nil
}

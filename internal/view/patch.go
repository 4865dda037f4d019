package view

import "github.com/local/foliocraft/internal/workspace"

// Stats is the header counter block plus the merge button state.
type Stats struct {
	Files    int  `json:"files"`
	Pages    int  `json:"pages"`
	Selected int  `json:"selected"`
	CanMerge bool `json:"can_merge"`
}

// RotationPatch updates one page's rotation attribute in both views.
type RotationPatch struct {
	FileID    string `json:"file_id"`
	PageIndex int    `json:"page_index"`
	Rotation  int    `json:"rotation"`
}

// Badge is the selection state of one page tile.
type Badge struct {
	PageIndex int  `json:"page_index"`
	Selected  bool `json:"selected"`
	Position  int  `json:"position"`
}

// SelectionPatch refreshes the selection badges of the active file, the
// counter of its file card and the header stats.
type SelectionPatch struct {
	FileID   string  `json:"file_id"`
	Badges   []Badge `json:"badges"`
	Selected int     `json:"file_selected"`
	Total    int     `json:"file_total"`
	Stats    Stats   `json:"stats"`
}

// StatsOf computes the header counters.
func StatsOf(s *workspace.Session) Stats {
	st := s.Stats()
	return Stats{Files: st.Files, Pages: st.Pages, Selected: st.Selected, CanMerge: s.CanMerge()}
}

// Rotation builds the patch for a rotated page.
func Rotation(s *workspace.Session, fileID string, page int) RotationPatch {
	return RotationPatch{FileID: fileID, PageIndex: page, Rotation: s.Rotation(fileID, page)}
}

// Selection builds the badge patch for a file. Positions of every page are
// included because a single toggle can shift the queue numbers of others.
func Selection(s *workspace.Session, fileID string) SelectionPatch {
	p := SelectionPatch{FileID: fileID, Stats: StatsOf(s)}
	f, ok := s.File(fileID)
	if !ok {
		return p
	}
	p.Selected, p.Total = s.FileSelection(fileID)
	p.Badges = make([]Badge, len(f.Pages))
	for i := range f.Pages {
		pos := s.Position(fileID, i)
		p.Badges[i] = Badge{PageIndex: i, Selected: pos > 0, Position: pos}
	}
	return p
}

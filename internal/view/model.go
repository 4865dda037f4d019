// Package view turns a workspace session into HTML fragments and small JSON
// patches. Structural changes re-render a fragment; rotation and selection
// changes are sent as patches so both page views stay in step without a rebuild.
package view

import (
	"path/filepath"
	"strings"

	"github.com/local/foliocraft/internal/workspace"
)

// FileCard is one row of the file list.
type FileCard struct {
	Index    int
	ID       string
	Name     string
	Ext      string
	Pages    int
	Selected int
	Active   bool
	First    bool
	Last     bool
}

// PageTile is one page of the active file, shared by the grid and read views.
type PageTile struct {
	FileID   string
	Index    int
	Number   int
	Thumb    string
	Rotation int
	Selected bool
	Position int
}

// QueueItem is one selection queue entry.
type QueueItem struct {
	Index     int
	Position  int
	FileID    string
	FileName  string
	PageIndex int
	Number    int
	Thumb     string
	Rotation  int
}

// Workspace is the data behind the page area.
type Workspace struct {
	Title    string
	FileID   string
	ViewMode workspace.ViewMode
	Tiles    []PageTile
	Empty    bool
}

// Files builds the file list in display order with per-file selected/total counters.
func Files(s *workspace.Session) []FileCard {
	out := make([]FileCard, 0, len(s.Files))
	for i, f := range s.Files {
		sel, total := s.FileSelection(f.ID)
		out = append(out, FileCard{
			Index:    i,
			ID:       f.ID,
			Name:     f.Name,
			Ext:      extLabel(f.Name),
			Pages:    total,
			Selected: sel,
			Active:   f.ID == s.ActiveID,
			First:    i == 0,
			Last:     i == len(s.Files)-1,
		})
	}
	return out
}

// Pages builds the workspace for the active file.
func Pages(s *workspace.Session) Workspace {
	ws := Workspace{ViewMode: s.ViewMode}
	f, ok := s.Active()
	if !ok {
		ws.Empty = true
		return ws
	}
	ws.Title = f.Name
	ws.FileID = f.ID
	ws.Tiles = make([]PageTile, 0, len(f.Pages))
	for i, p := range f.Pages {
		pos := s.Position(f.ID, i)
		ws.Tiles = append(ws.Tiles, PageTile{
			FileID:   f.ID,
			Index:    i,
			Number:   i + 1,
			Thumb:    thumb(f, i),
			Rotation: p.Rotation,
			Selected: pos > 0,
			Position: pos,
		})
	}
	return ws
}

// Queue lists the queued pages in merge order.
func Queue(s *workspace.Session) []QueueItem {
	out := make([]QueueItem, 0, len(s.Queue))
	for i, e := range s.Queue {
		item := QueueItem{Index: i, Position: i + 1, FileID: e.FileID, PageIndex: e.PageIndex, Number: e.PageIndex + 1}
		if f, ok := s.File(e.FileID); ok {
			item.FileName = f.Name
			item.Thumb = thumb(f, e.PageIndex)
			item.Rotation = s.Rotation(e.FileID, e.PageIndex)
		}
		out = append(out, item)
	}
	return out
}

func thumb(f *workspace.File, i int) string {
	if i < len(f.Thumbnails) {
		return f.Thumbnails[i]
	}
	return ""
}

func extLabel(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "FILE"
	}
	return strings.ToUpper(ext)
}

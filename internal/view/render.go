package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"

	"github.com/local/foliocraft/internal/workspace"
)

//go:embed templates/*.html
var embedded embed.FS

// Toast is the transient notification shown to the user.
type Toast struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	TTLms   int64  `json:"ttl_ms"`
}

// Page is the data for the full organizer page.
type Page struct {
	Theme     string
	Files     []FileCard
	Workspace Workspace
	Queue     []QueueItem
	Stats     Stats
	Toast     *Toast
}

// Fragments are the re-rendered parts sent after a structural change.
type Fragments struct {
	Files     string `json:"files_html"`
	Workspace string `json:"workspace_html"`
	Queue     string `json:"queue_html"`
	Stats     Stats  `json:"stats"`
	ViewMode  string `json:"view_mode"`
	Toast     *Toast `json:"toast,omitempty"`
}

// Renderer executes the organizer templates.
type Renderer struct {
	tpl *template.Template
}

// NewRenderer parses the embedded templates, or the *.html files in dir when
// dir is non-empty.
func NewRenderer(dir string) (*Renderer, error) {
	var (
		tpl *template.Template
		err error
	)
	if dir != "" {
		tpl, err = template.ParseFS(os.DirFS(dir), "*.html")
	} else {
		tpl, err = template.ParseFS(embedded, "templates/*.html")
	}
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

// PageData assembles the full page model.
func PageData(s *workspace.Session, theme string, toast *Toast) Page {
	return Page{
		Theme:     theme,
		Files:     Files(s),
		Workspace: Pages(s),
		Queue:     Queue(s),
		Stats:     StatsOf(s),
		Toast:     toast,
	}
}

// Render writes the whole organizer page.
func (r *Renderer) Render(w io.Writer, p Page) error {
	return r.tpl.ExecuteTemplate(w, "index.html", p)
}

// Fragments renders the file list, workspace and queue of s.
func (r *Renderer) Fragments(s *workspace.Session, toast *Toast) (Fragments, error) {
	fr := Fragments{Stats: StatsOf(s), ViewMode: string(s.ViewMode), Toast: toast}
	var err error
	if fr.Files, err = r.fragment("files", Files(s)); err != nil {
		return fr, err
	}
	if fr.Workspace, err = r.fragment("workspace", Pages(s)); err != nil {
		return fr, err
	}
	if fr.Queue, err = r.fragment("queue", Queue(s)); err != nil {
		return fr, err
	}
	return fr, nil
}

func (r *Renderer) fragment(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

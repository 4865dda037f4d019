package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

// ErrNoPages is returned when none of the requested parts could be extracted.
var ErrNoPages = errors.New("no valid pages to merge")

// Part is one output page: page PageIndex (0-based) of the PDF at Path,
// turned by Rotation degrees on top of its own rotation.
type Part struct {
	Path      string
	PageIndex int
	Rotation  int
}

// Merger extracts, rotates and concatenates pages through temporary files.
type Merger struct {
	TempDir string
}

// Merge writes the parts in order to w. Parts that cannot be extracted are
// skipped; it returns the number of pages written.
func (m *Merger) Merge(ctx context.Context, parts []Part, w io.Writer) (int, error) {
	work, err := os.MkdirTemp(m.TempDir, "merge-*")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(work)

	var pages []string
	for i, p := range parts {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		out, err := extract(work, i, p)
		if err != nil {
			log.Warn().Err(err).Str("file", filepath.Base(p.Path)).Int("page", p.PageIndex).Msg("skipping page")
			continue
		}
		pages = append(pages, out)
	}
	if len(pages) == 0 {
		return 0, ErrNoPages
	}

	merged := filepath.Join(work, "merged.pdf")
	if err := api.MergeCreateFile(pages, merged, false, nil); err != nil {
		return 0, fmt.Errorf("merge pages: %w", err)
	}
	f, err := os.Open(merged)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return 0, err
	}
	return len(pages), nil
}

func extract(dir string, i int, p Part) (string, error) {
	n, err := api.PageCountFile(p.Path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	if p.PageIndex < 0 || p.PageIndex >= n {
		return "", fmt.Errorf("page %d out of range (document has %d pages)", p.PageIndex+1, n)
	}
	single := filepath.Join(dir, fmt.Sprintf("%04d.pdf", i))
	sel := []string{strconv.Itoa(p.PageIndex + 1)}
	if err := api.TrimFile(p.Path, single, sel, nil); err != nil {
		return "", fmt.Errorf("extract page: %w", err)
	}
	rot := ((p.Rotation % 360) + 360) % 360
	if rot == 0 {
		return single, nil
	}
	rotated := filepath.Join(dir, fmt.Sprintf("%04d-r.pdf", i))
	if err := api.RotateFile(single, rotated, rot, nil, nil); err != nil {
		return "", fmt.Errorf("rotate page: %w", err)
	}
	return rotated, nil
}

package workspace

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upload(id string, pages int) Upload {
	thumbs := make([]string, pages)
	for i := range thumbs {
		thumbs[i] = fmt.Sprintf("/thumbnails/%s/%d.png", id, i)
	}
	return Upload{FileID: id, OriginalName: id + ".pdf", PageCount: pages, Thumbnails: thumbs}
}

func withFiles(t *testing.T, auto bool, files ...Upload) *Session {
	t.Helper()
	s := New()
	for _, u := range files {
		require.NoError(t, s.AddFile(u, auto))
	}
	return s
}

func pages(q []Entry) []string {
	out := make([]string, len(q))
	for i, e := range q {
		out[i] = fmt.Sprintf("%s%d", e.FileID, e.PageIndex)
	}
	return out
}

func TestUploadToggleMergeScenario(t *testing.T) {
	s := withFiles(t, true, upload("A", 3))
	assert.Equal(t, []string{"A0", "A1", "A2"}, pages(s.Queue))
	assert.Equal(t, "A", s.ActiveID)

	on, err := s.Toggle("A", 1)
	require.NoError(t, err)
	assert.False(t, on)
	assert.Equal(t, []string{"A0", "A2"}, pages(s.Queue))

	req, err := s.MergeRequest()
	require.NoError(t, err)
	assert.Equal(t, []MergePage{{"A", 0, 0}, {"A", 2, 0}}, req.Pages)
	require.NoError(t, s.Validate())
}

func TestRotateWrapsScenario(t *testing.T) {
	s := withFiles(t, false, upload("A", 2))
	for i := 0; i < 3; i++ {
		_, err := s.Rotate("A", 0, 90)
		require.NoError(t, err)
	}
	assert.Equal(t, 270, s.Rotation("A", 0))
	r, err := s.Rotate("A", 0, 90)
	require.NoError(t, err)
	assert.Equal(t, 0, r)
}

func TestRotationAlwaysNormalized(t *testing.T) {
	s := withFiles(t, false, upload("A", 1))
	rnd := rand.New(rand.NewSource(7))
	want := 0
	for i := 0; i < 200; i++ {
		deg := (rnd.Intn(21) - 10) * 90
		want += deg
		r, err := s.Rotate("A", 0, deg)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, r, 0)
		assert.Less(t, r, 360)
		assert.Zero(t, r%90)
		assert.Equal(t, NormalizeRotation(want), r)
	}
}

func TestRotateRejectsBadInput(t *testing.T) {
	s := withFiles(t, false, upload("A", 1))
	_, err := s.Rotate("A", 0, 45)
	assert.ErrorIs(t, err, ErrBadRotation)
	_, err = s.Rotate("A", 3, 90)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
	_, err = s.Rotate("B", 0, 90)
	assert.ErrorIs(t, err, ErrUnknownFile)
	assert.Equal(t, 0, s.Rotation("B", 0))
}

func TestToggleParity(t *testing.T) {
	s := withFiles(t, false, upload("A", 4), upload("B", 3))
	counts := map[Entry]int{}
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		e := Entry{FileID: []string{"A", "B"}[rnd.Intn(2)]}
		f, _ := s.File(e.FileID)
		e.PageIndex = rnd.Intn(len(f.Pages))
		on, err := s.Toggle(e.FileID, e.PageIndex)
		require.NoError(t, err)
		counts[e]++
		assert.Equal(t, counts[e]%2 == 1, on)
	}
	for e, n := range counts {
		assert.Equal(t, n%2 == 1, s.Queued(e.FileID, e.PageIndex), "%v toggled %d times", e, n)
	}
	require.NoError(t, s.Validate())
}

func TestToggleKeepsDocumentOrder(t *testing.T) {
	s := withFiles(t, false, upload("A", 3), upload("B", 3))
	for _, e := range []Entry{{"B", 2}, {"A", 1}, {"B", 0}, {"A", 0}, {"A", 2}, {"B", 1}} {
		_, err := s.Toggle(e.FileID, e.PageIndex)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"A0", "A1", "A2", "B0", "B1", "B2"}, pages(s.Queue))

	// File display order drives the ordering of new entries.
	require.NoError(t, s.MoveFile(1, 0))
	s.Clear()
	_, _ = s.Toggle("A", 0)
	_, _ = s.Toggle("B", 2)
	_, _ = s.Toggle("A", 1)
	assert.Equal(t, []string{"B2", "A0", "A1"}, pages(s.Queue))
}

func TestToggleAfterManualReorder(t *testing.T) {
	s := withFiles(t, true, upload("A", 4))
	require.NoError(t, s.MoveQueueEntry(0, 3))
	assert.Equal(t, []string{"A1", "A2", "A3", "A0"}, pages(s.Queue))

	_, _ = s.Toggle("A", 2)
	_, _ = s.Toggle("A", 2)
	assert.Equal(t, []string{"A1", "A2", "A3", "A0"}, pages(s.Queue))
}

func TestToggleFallsBackToAppend(t *testing.T) {
	s := withFiles(t, false, upload("A", 2))
	on, err := s.Toggle("A", 1)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, []string{"A1"}, pages(s.Queue))

	_, err = s.Toggle("A", 2)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
	_, err = s.Toggle("Z", 0)
	assert.ErrorIs(t, err, ErrUnknownFile)
}

func TestRemoveFilePrunesOnlyItsEntries(t *testing.T) {
	s := withFiles(t, true, upload("A", 2), upload("B", 2), upload("C", 1))
	require.NoError(t, s.SetActive("B"))

	require.NoError(t, s.RemoveFile("B"))
	assert.Equal(t, []string{"A0", "A1", "C0"}, pages(s.Queue))
	assert.Equal(t, "A", s.ActiveID)
	require.NoError(t, s.Validate())

	require.NoError(t, s.RemoveFile("C"))
	assert.Equal(t, "A", s.ActiveID, "active unchanged when another file is removed")

	require.NoError(t, s.RemoveFile("A"))
	assert.Empty(t, s.ActiveID)
	assert.Empty(t, s.Queue)
	assert.ErrorIs(t, s.RemoveFile("A"), ErrUnknownFile)
}

func TestMoveAndStepFiles(t *testing.T) {
	s := withFiles(t, false, upload("A", 1), upload("B", 1), upload("C", 1), upload("D", 1))
	ids := func() []string {
		out := []string{}
		for _, f := range s.Files {
			out = append(out, f.ID)
		}
		return out
	}

	require.NoError(t, s.MoveFile(0, 2))
	assert.Equal(t, []string{"B", "C", "A", "D"}, ids())
	require.NoError(t, s.MoveFile(3, 0))
	assert.Equal(t, []string{"D", "B", "C", "A"}, ids())
	require.NoError(t, s.MoveFile(1, 1))
	assert.ErrorIs(t, s.MoveFile(0, 4), ErrIndexOutOfRange)

	require.NoError(t, s.StepFile("A", 1))
	assert.Equal(t, []string{"D", "B", "C", "A"}, ids())
	require.NoError(t, s.StepFile("A", -1))
	assert.Equal(t, []string{"D", "B", "A", "C"}, ids())
	require.NoError(t, s.StepFile("D", -1))
	assert.Equal(t, "D", s.Files[0].ID)
}

func TestQueueReorder(t *testing.T) {
	s := withFiles(t, true, upload("A", 3))

	assert.True(t, s.MoveQueueEntryTo(Entry{"A", 2}, Entry{"A", 0}))
	assert.Equal(t, []string{"A2", "A0", "A1"}, pages(s.Queue))

	_, _ = s.Toggle("A", 1)
	assert.False(t, s.MoveQueueEntryTo(Entry{"A", 1}, Entry{"A", 0}))
	assert.Equal(t, []string{"A2", "A0"}, pages(s.Queue))

	require.NoError(t, s.StepQueueEntry(1, -1))
	assert.Equal(t, []string{"A0", "A2"}, pages(s.Queue))
	require.NoError(t, s.StepQueueEntry(1, 1))
	assert.Equal(t, []string{"A0", "A2"}, pages(s.Queue))
	assert.ErrorIs(t, s.StepQueueEntry(5, 1), ErrIndexOutOfRange)
	assert.Equal(t, 2, s.Position("A", 2))
	assert.Equal(t, 0, s.Position("A", 1))
}

func TestSelectAllAndClear(t *testing.T) {
	s := withFiles(t, false, upload("A", 2), upload("B", 3))
	_, _ = s.Toggle("B", 1)
	require.NoError(t, s.SelectAll())
	assert.Equal(t, []string{"B1", "B0", "B2"}, pages(s.Queue))

	sel, total := s.FileSelection("B")
	assert.Equal(t, 3, sel)
	assert.Equal(t, 3, total)
	sel, total = s.FileSelection("A")
	assert.Equal(t, 0, sel)
	assert.Equal(t, 2, total)

	s.Clear()
	assert.Empty(t, s.Queue)
	assert.False(t, s.CanMerge())

	empty := New()
	assert.ErrorIs(t, empty.SelectAll(), ErrNoActiveFile)
}

func TestMergeRequestUsesCurrentRotation(t *testing.T) {
	s := withFiles(t, true, upload("A", 2), upload("B", 1))
	_, _ = s.Rotate("B", 0, -90)
	_, _ = s.Rotate("A", 1, 180)
	require.NoError(t, s.MoveQueueEntry(2, 0))

	req, err := s.MergeRequest()
	require.NoError(t, err)
	require.Len(t, req.Pages, len(s.Queue))
	assert.Equal(t, []MergePage{{"B", 0, 270}, {"A", 0, 0}, {"A", 1, 180}}, req.Pages)

	s.Clear()
	_, err = s.MergeRequest()
	assert.ErrorIs(t, err, ErrEmptyQueue)
}

func TestAddFileRejectsDuplicates(t *testing.T) {
	s := withFiles(t, false, upload("A", 1))
	assert.ErrorIs(t, s.AddFile(upload("A", 1), false), ErrDuplicateFile)
	assert.ErrorIs(t, s.AddFile(Upload{}, false), ErrUnknownFile)
	assert.Len(t, s.Files, 1)
}

func TestStatsAndViewMode(t *testing.T) {
	s := withFiles(t, true, upload("A", 2), upload("B", 5))
	assert.Equal(t, Stats{Files: 2, Pages: 7, Selected: 7}, s.Stats())
	assert.True(t, s.CanMerge())

	assert.Equal(t, ViewGrid, s.ViewMode)
	require.NoError(t, s.SetViewMode(ViewRead))
	assert.ErrorIs(t, s.SetViewMode("list"), ErrBadViewMode)
	assert.Equal(t, ViewRead, s.ViewMode)
}

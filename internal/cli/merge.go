package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/foliocraft/internal/client"
	"github.com/local/foliocraft/internal/workspace"
)

type mergeOpts struct {
	output  string
	selects []string
	drops   []string
	rotates []string
	order   string
}

func newMergeCmd(a *app) *cobra.Command {
	var o mergeOpts
	cmd := &cobra.Command{
		Use:   "merge FILE...",
		Short: "Upload documents, arrange their pages and download one PDF",
		Long: `Uploads every FILE in order, builds a selection queue and merges it.

Files are numbered from 1 in argument order and so are their pages. PAGES is a
comma separated list of pages or ranges such as 1-3,7.

Without --select every page of every file is queued (unless
FOLIOCRAFT_AUTO_SELECT=false). With --select only the named pages are queued.
A file that fails to upload is reported and skipped.`,
		Example: `  # all pages of both files
  foliocraft merge a.pdf b.docx -o out.pdf

  # pages 1-2 of the first file and page 5 of the second, rotated
  foliocraft merge a.pdf b.pdf --select 1:1-2 --select 2:5 --rotate 2:5:90

  # drop the cover page and put the last queued page first
  foliocraft merge a.pdf --drop 1:1 --order 4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, a, args, o)
		},
	}

	cmd.Flags().StringVarP(&o.output, "output", "o", workspace.MergeName, "Where to write the merged PDF")
	cmd.Flags().StringArrayVar(&o.selects, "select", nil, "Queue pages, FILE:PAGES (repeatable)")
	cmd.Flags().StringArrayVar(&o.drops, "drop", nil, "Remove queued pages, FILE:PAGES (repeatable)")
	cmd.Flags().StringArrayVar(&o.rotates, "rotate", nil, "Rotate pages clockwise, FILE:PAGES:DEGREES (repeatable)")
	cmd.Flags().StringVar(&o.order, "order", "", "Queue positions to move to the front, e.g. 3,1")

	return cmd
}

func runMerge(cmd *cobra.Command, a *app, args []string, o mergeOpts) error {
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()
	ctl := client.NewController(a.client(), client.Options{
		AutoEnqueue: a.cfg.Client.AutoEnqueue && len(o.selects) == 0,
		Notifier: client.NotifierFunc(func(level, msg string) {
			fmt.Fprintf(stderr, "%s: %s\n", level, msg)
		}),
	})

	// uploaded[i] is the file id of args[i], empty when its upload failed
	uploaded := make([]string, len(args))
	for i, path := range args {
		added := ctl.UploadFiles(ctx, []client.Source{client.FileSource(path)})
		if len(added) == 1 {
			uploaded[i] = added[0].FileID
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, val := range o.selects {
		if err := eachPage(ctl, uploaded, val, func(id string, p int) workspace.Event {
			if ctl.Session().Queued(id, p) {
				return nil
			}
			return workspace.PageToggled{FileID: id, PageIndex: p}
		}); err != nil {
			return fmt.Errorf("--select %s: %w", val, err)
		}
	}
	for _, val := range o.drops {
		if err := eachPage(ctl, uploaded, val, func(id string, p int) workspace.Event {
			if !ctl.Session().Queued(id, p) {
				return nil
			}
			return workspace.PageToggled{FileID: id, PageIndex: p}
		}); err != nil {
			return fmt.Errorf("--drop %s: %w", val, err)
		}
	}
	for _, val := range o.rotates {
		i := strings.LastIndex(val, ":")
		if i < 0 {
			return fmt.Errorf("--rotate %s: want FILE:PAGES:DEGREES", val)
		}
		deg, err := strconv.Atoi(val[i+1:])
		if err != nil {
			return fmt.Errorf("--rotate %s: bad degrees: %w", val, err)
		}
		if err := eachPage(ctl, uploaded, val[:i], func(id string, p int) workspace.Event {
			return workspace.PageRotated{FileID: id, PageIndex: p, Degrees: deg}
		}); err != nil {
			return fmt.Errorf("--rotate %s: %w", val, err)
		}
	}
	if o.order != "" {
		if err := reorder(ctl, o.order); err != nil {
			return fmt.Errorf("--order %s: %w", o.order, err)
		}
	}

	dl, err := ctl.Merge(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(o.output, dl.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", o.output, err)
	}
	n := len(ctl.Session().Queue)
	log.Info().Str("output", o.output).Int("pages", n).Msg("merged")
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d pages to %s\n", n, o.output)
	return nil
}

// eachPage resolves FILE:PAGES against the uploads and applies the event ev
// builds for every page. A nil event is skipped.
func eachPage(ctl *client.Controller, uploaded []string, val string, ev func(id string, page int) workspace.Event) error {
	fileNo, pages, ok := strings.Cut(val, ":")
	if !ok {
		return errors.New("want FILE:PAGES")
	}
	n, err := strconv.Atoi(fileNo)
	if err != nil || n < 1 || n > len(uploaded) {
		return fmt.Errorf("no file %q", fileNo)
	}
	id := uploaded[n-1]
	if id == "" {
		return fmt.Errorf("file %d was not uploaded", n)
	}
	f, ok := ctl.Session().File(id)
	if !ok {
		return fmt.Errorf("file %d is no longer in the workspace", n)
	}
	idx, err := parsePages(pages, f.PageCount)
	if err != nil {
		return err
	}
	for _, p := range idx {
		e := ev(id, p)
		if e == nil {
			continue
		}
		if err := ctl.Apply(e); err != nil {
			return err
		}
	}
	return nil
}

// parsePages turns "1-3,7" into zero-based page indexes, checked against total.
func parsePages(s string, total int) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("bad page %q", part)
		}
		b := a
		if isRange {
			if b, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("bad page range %q", part)
			}
		}
		if a < 1 || b < a || b > total {
			return nil, fmt.Errorf("pages %q outside 1-%d", part, total)
		}
		for p := a; p <= b; p++ {
			out = append(out, p-1)
		}
	}
	return out, nil
}

// reorder moves the listed queue positions (one-based, as the queue stood
// before reordering) to the front in the given order.
func reorder(ctl *client.Controller, val string) error {
	before := ctl.Session().Queue
	seen := map[int]bool{}
	for to, part := range strings.Split(val, ",") {
		pos, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || pos < 1 || pos > len(before) {
			return fmt.Errorf("no queue position %q", part)
		}
		if seen[pos] {
			return fmt.Errorf("position %d listed twice", pos)
		}
		seen[pos] = true
		want := before[pos-1]
		from := -1
		for i, e := range ctl.Session().Queue {
			if e == want {
				from = i
				break
			}
		}
		if err := ctl.Apply(workspace.QueueMoved{From: from, To: to}); err != nil {
			return err
		}
	}
	return nil
}

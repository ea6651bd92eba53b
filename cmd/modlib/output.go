package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/starford/modlib/internal/library"
	"github.com/starford/modlib/internal/melody"
	"github.com/starford/modlib/internal/models"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

func printScan(w io.Writer, s library.ScanSummary) {
	fmt.Fprintf(w, "%s files: %s added, %s updated, %d unchanged, %s failed\n",
		bold(s.Seen), green(s.Added), yellow(s.Updated), s.Unchanged, failed(s.Failed))
}

func printSweep(w io.Writer, s library.SweepSummary) {
	fmt.Fprintf(w, "%s checked: %s updated, %s removed, %s failed\n",
		bold(s.Checked), yellow(s.Updated), red(s.Removed), failed(s.Failed))
}

func failed(n int) string {
	if n == 0 {
		return "0"
	}
	return red(n)
}

func printDuplicates(w io.Writer, groups []models.DuplicateGroup, sizes []int64) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "no duplicates found")
		return
	}
	var wasted int64
	for i, g := range groups {
		fmt.Fprintf(w, "%s %s\n", bold(fmt.Sprintf("%d copies", len(g.Filenames))), faint(humanize.Bytes(uint64(sizes[i]))))
		for _, f := range g.Filenames {
			fmt.Fprintf(w, "  %s\n", f)
		}
		wasted += sizes[i] * int64(len(g.Filenames)-1)
	}
	fmt.Fprintf(w, "%d groups, %s reclaimable\n", len(groups), humanize.Bytes(uint64(wasted)))
}

func printHits(w io.Writer, hits []library.Hit) {
	for _, h := range hits {
		title := h.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(w, "%s  %s  %s  %s",
			bold(title), formatLength(h.Length), humanize.Bytes(uint64(h.FileSize)), faint(h.Filename))
		if h.Scored {
			fmt.Fprintf(w, "  %s", green(fmt.Sprintf("%.1f%%", h.Score*100)))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%s\n", faint(humanize.Comma(int64(len(hits)))+" results"))
}

// formatLength renders a module length in milliseconds as m:ss.
func formatLength(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func printMelody(w io.Writer, q melody.Query) {
	fmt.Fprintln(w, bold(q.String()))
	for _, p := range q {
		fmt.Fprintf(w, "  %s  %s\n", p.String(), faint(hex.EncodeToString(p)))
	}
}

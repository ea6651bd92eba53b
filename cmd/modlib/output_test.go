package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/starford/modlib/internal/library"
	"github.com/starford/modlib/internal/melody"
	"github.com/starford/modlib/internal/models"
)

func init() {
	color.NoColor = true
}

func TestFormatLength(t *testing.T) {
	cases := map[int64]string{
		0:       "0:00",
		999:     "0:00",
		61000:   "1:01",
		3599999: "59:59",
		3600000: "60:00",
	}
	for ms, want := range cases {
		if got := formatLength(ms); got != want {
			t.Errorf("formatLength(%d) = %q, want %q", ms, got, want)
		}
	}
}

func TestPrintScan(t *testing.T) {
	var b bytes.Buffer
	printScan(&b, library.ScanSummary{Seen: 4, Added: 2, Updated: 1, Unchanged: 1})
	if got := b.String(); got != "4 files: 2 added, 1 updated, 1 unchanged, 0 failed\n" {
		t.Errorf("printScan = %q", got)
	}
}

func TestPrintDuplicates(t *testing.T) {
	var b bytes.Buffer
	printDuplicates(&b, []models.DuplicateGroup{
		{Hash: "h", Filenames: []string{"/a.mod", "/b.mod", "/c.mod"}},
	}, []int64{2000})
	out := b.String()
	if !strings.Contains(out, "3 copies 2.0 kB") || !strings.Contains(out, "  /b.mod\n") {
		t.Errorf("output = %q", out)
	}
	if !strings.HasSuffix(out, "1 groups, 4.0 kB reclaimable\n") {
		t.Errorf("summary = %q", out)
	}

	b.Reset()
	printDuplicates(&b, nil, nil)
	if b.String() != "no duplicates found\n" {
		t.Errorf("empty = %q", b.String())
	}
}

func TestPrintHits(t *testing.T) {
	var b bytes.Buffer
	hits := []library.Hit{
		{Module: models.Module{Filename: "/x.mod", Title: "x", FileSize: 1500, Length: 125000}, Score: 0.5, Scored: true},
		{Module: models.Module{Filename: "/y.mod"}},
	}
	printHits(&b, hits)
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[0] != "x  2:05  1.5 kB  /x.mod  50.0%" {
		t.Errorf("first = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "(untitled)") {
		t.Errorf("second = %q", lines[1])
	}
	if lines[2] != "2 results" {
		t.Errorf("footer = %q", lines[2])
	}
}

func TestPrintMelody(t *testing.T) {
	var b bytes.Buffer
	printMelody(&b, melody.Compile("2 200|-1"))
	want := "2 -56|-1\n  2 -56  02c8\n  -1  ff\n"
	if b.String() != want {
		t.Errorf("printMelody = %q, want %q", b.String(), want)
	}
}

package modfile_test

import (
	"errors"
	"testing"
	"time"

	"github.com/starford/modlib/internal/apperr"
	"github.com/starford/modlib/internal/modfile"
	"github.com/starford/modlib/internal/testutil"
)

func TestParseMOD_Header(t *testing.T) {
	data := testutil.MOD{
		Title:   "space debris",
		Samples: []string{"bass", "lead"},
		Orders:  []int{0, 1, 0},
	}.Bytes()

	m, err := modfile.ParseMOD(data)
	if err != nil {
		t.Fatalf("ParseMOD: %v", err)
	}
	if got := m.Metadata(modfile.MetaTitle); got != "space debris" {
		t.Errorf("title = %q", got)
	}
	if got := m.Metadata(modfile.MetaType); got != "mod" {
		t.Errorf("type = %q", got)
	}
	if m.NumChannels() != 4 {
		t.Errorf("channels = %d, want 4", m.NumChannels())
	}
	if m.NumPatterns() != 2 {
		t.Errorf("patterns = %d, want 2", m.NumPatterns())
	}
	if got := m.Orders(0); len(got) != 3 || got[1] != 1 {
		t.Errorf("orders = %v", got)
	}
	if names := m.SampleNames(); len(names) != 31 || names[0] != "bass" || names[1] != "lead" {
		t.Errorf("sample names = %q", names[:2])
	}
	if m.NumSubsongs() != 1 {
		t.Errorf("subsongs = %d", m.NumSubsongs())
	}
}

func TestParseMOD_Notes(t *testing.T) {
	data := testutil.MOD{
		Orders: []int{0},
		Cells:  testutil.Melody(2, 4, 37, 39, 41),
	}.Bytes()

	m, err := modfile.ParseMOD(data)
	if err != nil {
		t.Fatalf("ParseMOD: %v", err)
	}
	for i, want := range []int{37, 39, 41} {
		if got := m.Note(0, 4+i, 2); got != want {
			t.Errorf("row %d note = %d, want %d", 4+i, got, want)
		}
	}
	if got := m.Note(0, 0, 0); got != 0 {
		t.Errorf("empty cell = %d, want 0", got)
	}
	if got := m.Note(5, 0, 0); got != 0 {
		t.Errorf("out-of-range pattern = %d, want 0", got)
	}
}

func TestParseMOD_ChannelSignatures(t *testing.T) {
	for _, ch := range []int{4, 6, 8, 12} {
		m, err := modfile.ParseMOD(testutil.MOD{Channels: ch}.Bytes())
		if err != nil {
			t.Fatalf("%d channels: %v", ch, err)
		}
		if m.NumChannels() != ch {
			t.Errorf("channels = %d, want %d", m.NumChannels(), ch)
		}
	}
}

func TestParseMOD_Rejects(t *testing.T) {
	valid := testutil.MOD{}.Bytes()

	badMagic := append([]byte(nil), valid...)
	copy(badMagic[1080:], "XXXX")

	noOrders := append([]byte(nil), valid...)
	noOrders[950] = 0

	cases := map[string][]byte{
		"short":     valid[:100],
		"magic":     badMagic,
		"songlen":   noOrders,
		"truncated": valid[:len(valid)-10],
	}
	for name, data := range cases {
		if _, err := modfile.ParseMOD(data); !errors.Is(err, apperr.ErrParse) {
			t.Errorf("%s: err = %v, want ErrParse", name, err)
		}
	}
}

func TestParseMOD_Duration(t *testing.T) {
	// Two patterns of 64 rows at speed 6 / tempo 125 last 2 * 64 * 120ms.
	m, err := modfile.ParseMOD(testutil.MOD{Orders: []int{0, 1}}.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if want := 128 * 120 * time.Millisecond; m.Duration() != want {
		t.Errorf("duration = %v, want %v", m.Duration(), want)
	}

	// Pattern break on row 15 of the first order and a jump back to order 0
	// on row 15 of the second.
	m, err = modfile.ParseMOD(testutil.MOD{
		Orders: []int{0, 1},
		Cells: []testutil.Cell{
			{Pattern: 0, Row: 15, Effect: 0xD, Param: 0x00},
			{Pattern: 1, Row: 15, Effect: 0xB, Param: 0x00},
		},
	}.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if want := 32 * 120 * time.Millisecond; m.Duration() != want {
		t.Errorf("looped duration = %v, want %v", m.Duration(), want)
	}
}

func TestProTrackerInspector(t *testing.T) {
	var insp modfile.Inspector = modfile.ProTracker{}
	if _, err := insp.Inspect([]byte("not a module")); !errors.Is(err, apperr.ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
	m, err := insp.Inspect(testutil.MOD{}.Bytes())
	if err != nil || m == nil {
		t.Fatalf("Inspect: %v", err)
	}
}

func TestPeriodForNote(t *testing.T) {
	if got := modfile.PeriodForNote(37); got != 856 {
		t.Errorf("PeriodForNote(37) = %d, want 856", got)
	}
	if got := modfile.PeriodForNote(1); got != 0 {
		t.Errorf("PeriodForNote(1) = %d, want 0", got)
	}
}

package melody

import (
	"bytes"
	"errors"
	"testing"
)

func TestCompile_Phrases(t *testing.T) {
	q := Compile("2 0 | -3  5|")
	if len(q) != 2 {
		t.Fatalf("phrases = %d, want 2", len(q))
	}
	if !bytes.Equal(q[0], []byte{2, 0}) {
		t.Errorf("phrase 0 = %v", q[0])
	}
	if !bytes.Equal(q[1], []byte{256 - 3, 5}) {
		t.Errorf("phrase 1 = %v", q[1])
	}
}

func TestCompile_WrapEquivalence(t *testing.T) {
	a, b := Compile("200"), Compile("-56")
	if len(a) != 1 || len(b) != 1 || !bytes.Equal(a[0], b[0]) {
		t.Errorf("200 -> %v, -56 -> %v; want identical needles", a, b)
	}
	if a[0][0] != 0xC8 {
		t.Errorf("needle byte = %#x, want 0xc8", a[0][0])
	}
}

func TestCompile_EmptyPhrasesDropped(t *testing.T) {
	if q := Compile(" | |\t"); len(q) != 0 {
		t.Errorf("empty input compiled to %v", q)
	}
	if q := Compile(""); len(q) != 0 {
		t.Errorf("empty string compiled to %v", q)
	}
}

func TestCompile_NonNumericIsUnison(t *testing.T) {
	q := Compile("x +3")
	if len(q) != 1 || !bytes.Equal(q[0], []byte{0, 3}) {
		t.Errorf("Compile = %v", q)
	}
}

func TestQueryString(t *testing.T) {
	if got := Compile("2 0|200").String(); got != "2 0|-56" {
		t.Errorf("String = %q", got)
	}
}

func TestMatch_TranspositionInvariant(t *testing.T) {
	q := Compile("2 0")
	// Runs 40,42,42 and 70,72,72 both produce the intervals +2, +0.
	low := []byte{0, 40, 2, 0}
	high := []byte{0, 70, 2, 0, 256 - 5}
	if !q.Match(low) || !q.Match(high) {
		t.Error("expected both transpositions to match")
	}
	if q.Match([]byte{0, 40, 2, 1}) {
		t.Error("unexpected match")
	}
}

func TestMatch_AllPhrasesRequired(t *testing.T) {
	blob := []byte{0, 60, 2, 2, 256 - 64, 64, 3}
	if !Compile("2 2|3").Match(blob) {
		t.Error("both phrases present, expected match")
	}
	if Compile("2 2|4").Match(blob) {
		t.Error("second phrase absent, expected no match")
	}
}

// Phrases are matched against the whole blob, so phrases that occur in
// unrelated channels still satisfy the query. This breadth is accepted.
func TestMatch_PhrasesMayComeFromDifferentChannels(t *testing.T) {
	// Channel 0 plays +2 +2, channel 1 plays +7.
	blob := []byte{0, 60, 2, 2, 256 - 64, 7}
	if !Compile("2 2|7").Match(blob) {
		t.Error("expected broad match across channels")
	}
}

func TestMatch_EmptyQueryMatchesAll(t *testing.T) {
	if !Query(nil).Match([]byte{1}) {
		t.Error("empty query should not filter")
	}
}

const paste = "ModPlug Tracker MOD\r\n" +
	"|C-501...........|E-501...........\r\n" +
	"|D-5.............|................\r\n" +
	"|E-5.............|G-501...........\r\n"

func TestFromGrid_TwoChannels(t *testing.T) {
	got, err := FromGrid(paste)
	if err != nil {
		t.Fatalf("FromGrid: %v", err)
	}
	if got != "2 2 |3 |" {
		t.Errorf("FromGrid = %q", got)
	}
	q := Compile(got)
	if len(q) != 2 || !bytes.Equal(q[0], []byte{2, 2}) || !bytes.Equal(q[1], []byte{3}) {
		t.Errorf("compiled = %v", q)
	}
}

func TestFromGrid_EmptyColumnIsSkipped(t *testing.T) {
	text := "ModPlug Tracker  XM\n" +
		"|...........|C-4..........\n" +
		"|...........|B-3..........\n"
	got, err := FromGrid(text)
	if err != nil {
		t.Fatal(err)
	}
	if got != "-1 |" {
		t.Errorf("FromGrid = %q", got)
	}
}

func TestFromGrid_CZeroIsNoNote(t *testing.T) {
	text := "ModPlug Tracker IT\n|C-0\n|D-1\n|E-1\n"
	got, err := FromGrid(text)
	if err != nil {
		t.Fatal(err)
	}
	if got != "2 |" {
		t.Errorf("FromGrid = %q", got)
	}
}

func TestFromGrid_NotAGrid(t *testing.T) {
	if _, err := FromGrid("C-5 D-5 E-5"); !errors.Is(err, ErrNotGrid) {
		t.Errorf("err = %v, want ErrNotGrid", err)
	}
}

func TestParseInput(t *testing.T) {
	q, err := ParseInput(paste)
	if err != nil {
		t.Fatal(err)
	}
	if q.String() != "2 2|3" {
		t.Errorf("grid input = %q", q.String())
	}
	q, err = ParseInput("1 1")
	if err != nil {
		t.Fatal(err)
	}
	if q.String() != "1 1" {
		t.Errorf("typed input = %q", q.String())
	}
}

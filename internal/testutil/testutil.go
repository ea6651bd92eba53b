// Package testutil provides shared test helpers for databases, library roots
// and synthetic module files.
package testutil

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/modlib/internal/index"
	"github.com/starford/modlib/internal/modfile"
	"github.com/starford/modlib/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modlib-test.db")
	db, err := index.Open(path, index.Options{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRoot creates a temporary library root with a storage.FS over it.
func TestRoot(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS([]string{".mod"})
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// WriteFile writes data under dir and returns the absolute path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		t.Fatal(err)
	}
	return abs
}

// Cell places a note (and optional effect) into a synthetic pattern.
type Cell struct {
	Pattern, Row, Channel int
	Note                  int
	Effect, Param         byte
}

// MOD describes a synthetic ProTracker module.
type MOD struct {
	Title    string
	Samples  []string
	Channels int // 4 when zero
	Orders   []int
	Cells    []Cell
}

// Bytes renders m in the 31-sample MOD layout without sample data.
func (m MOD) Bytes() []byte {
	channels := m.Channels
	if channels == 0 {
		channels = 4
	}
	orders := m.Orders
	if len(orders) == 0 {
		orders = []int{0}
	}
	numPatterns := 0
	for _, o := range orders {
		if o+1 > numPatterns {
			numPatterns = o + 1
		}
	}

	const header = 1084
	patSize := 64 * channels * 4
	buf := make([]byte, header+numPatterns*patSize)
	copy(buf[:20], m.Title)
	for i, name := range m.Samples {
		if i >= 31 {
			break
		}
		copy(buf[20+i*30:20+i*30+22], name)
	}
	buf[950] = byte(len(orders))
	buf[951] = 127
	for i, o := range orders {
		buf[952+i] = byte(o)
	}
	if channels == 4 {
		copy(buf[1080:], "M.K.")
	} else if channels < 10 {
		copy(buf[1080:], []byte{byte('0' + channels), 'C', 'H', 'N'})
	} else {
		copy(buf[1080:], []byte{byte('0' + channels/10), byte('0' + channels%10), 'C', 'H'})
	}
	for _, c := range m.Cells {
		off := header + c.Pattern*patSize + (c.Row*channels+c.Channel)*4
		binary.BigEndian.PutUint16(buf[off:], modfile.PeriodForNote(c.Note))
		buf[off+2] = c.Effect & 0x0F
		buf[off+3] = c.Param
	}
	return buf
}

// Melody returns cells playing notes on consecutive rows of one channel in
// pattern 0, starting at row.
func Melody(channel, row int, notes ...int) []Cell {
	out := make([]Cell, 0, len(notes))
	for i, n := range notes {
		out = append(out, Cell{Pattern: 0, Row: row + i, Channel: channel, Note: n})
	}
	return out
}

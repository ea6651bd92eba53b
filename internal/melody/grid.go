package melody

import (
	"errors"
	"strconv"
	"strings"
)

// gridMarker starts the pattern clipboard format of OpenMPT and ModPlug
// Tracker.
const gridMarker = "ModPlug Tracker "

// ErrNotGrid is returned when pasted text carries no tracker clipboard header.
var ErrNotGrid = errors.New("melody: not a tracker pattern paste")

var noteNames = [12]string{"C-", "C#", "D-", "D#", "E-", "F-", "F#", "G-", "G#", "A-", "A#", "B-"}

// FromGrid converts pasted pattern data into typed input.
//
// Each '|' starts a channel cell whose first three characters are the note
// name and octave. Channel columns are read one at a time over all lines.
// The first note of a channel only sets the reference pitch; each later note
// contributes its distance to the previous one. A channel that yielded notes
// is closed with a phrase separator. Reading stops at the first column that
// no line contains.
func FromGrid(text string) (string, error) {
	i := strings.Index(text, gridMarker)
	if i < 0 {
		return "", ErrNotGrid
	}
	lines := strings.Split(text[i+len(gridMarker):], "\n")

	var out strings.Builder
	for channel := 0; ; channel++ {
		found := false // some line has this column
		prev := 0
		for _, line := range lines {
			off := cellOffset(line, channel)
			if off < 0 {
				continue
			}
			found = true
			note := cellNote(line, off)
			if note == 0 {
				continue
			}
			if prev != 0 {
				out.WriteString(strconv.Itoa(note - prev))
				out.WriteByte(' ')
			}
			prev = note
		}
		if !found {
			break
		}
		if prev != 0 {
			out.WriteString(PhraseSep)
		}
	}
	return out.String(), nil
}

// cellOffset returns the index of the '|' opening the given channel cell.
func cellOffset(line string, channel int) int {
	off := -1
	for i := 0; i <= channel; i++ {
		next := strings.IndexByte(line[off+1:], '|')
		if next < 0 {
			return -1
		}
		off += next + 1
	}
	return off
}

// cellNote decodes the note at a cell, 0 meaning none. C-0 also decodes to 0.
func cellNote(line string, off int) int {
	if off+3 >= len(line) {
		return 0
	}
	octave := line[off+3]
	if octave < '0' || octave > '9' {
		return 0
	}
	name := line[off+1 : off+3]
	for i, n := range noteNames {
		if n == name {
			return i + int(octave-'0')*12
		}
	}
	return 0
}

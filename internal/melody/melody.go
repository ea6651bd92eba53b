// Package melody compiles user melody input into interval needles matching
// the note blobs produced by package notedata.
//
// Typed input is a list of phrases separated by '|'. Each phrase is a
// whitespace separated list of signed intervals in semitones, truncated to
// 8 bits with wrap-around, so 200 and -56 are the same needle byte.
package melody

import (
	"strconv"
	"strings"

	"github.com/starford/modlib/internal/notedata"
)

// PhraseSep separates phrases in typed input.
const PhraseSep = "|"

// Phrase is one compiled interval sequence, usable as a substring needle.
type Phrase []byte

// String renders p in typed form.
func (p Phrase) String() string {
	parts := make([]string, len(p))
	for i, b := range p {
		parts[i] = strconv.Itoa(int(int8(b)))
	}
	return strings.Join(parts, " ")
}

// Query is a set of phrases that must all occur in a module's note blob.
type Query []Phrase

// Compile parses typed input. Empty phrases are dropped. Tokens that are
// not integers count as a unison (0).
func Compile(text string) Query {
	var q Query
	for _, raw := range strings.Split(text, PhraseSep) {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			continue
		}
		p := make(Phrase, 0, len(fields))
		for _, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil {
				n = 0
			}
			p = append(p, byte(int8(n)))
		}
		q = append(q, p)
	}
	return q
}

// ParseInput compiles either a pasted tracker grid or typed input.
func ParseInput(text string) (Query, error) {
	if strings.Contains(text, gridMarker) {
		typed, err := FromGrid(text)
		if err != nil {
			return nil, err
		}
		return Compile(typed), nil
	}
	return Compile(text), nil
}

// Match reports whether every phrase occurs somewhere in blob. Phrases may
// match in different channels or subsongs, and a match may span a channel
// marker byte.
func (q Query) Match(blob []byte) bool {
	for _, p := range q {
		if !notedata.Contains(blob, p) {
			return false
		}
	}
	return true
}

// String renders q in typed form.
func (q Query) String() string {
	parts := make([]string, len(q))
	for i, p := range q {
		parts[i] = p.String()
	}
	return strings.Join(parts, PhraseSep)
}

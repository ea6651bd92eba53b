// Package notedata builds the delta-encoded note blob stored for every module.
//
// The blob is one byte sequence for the whole module. Subsongs are visited in
// ascending order, then channels, then orders and rows in playback order. Each
// channel starts with a marker byte equal to the negated running note, which
// leaves the running note untouched. Every playable note (1..128) emits the
// signed 8-bit difference to the previous note with wrap-around arithmetic.
// The running note is never reset, so the stream stays continuous across
// channel and subsong boundaries.
package notedata

import "bytes"

// Source is the part of a parsed module the encoder needs.
type Source interface {
	NumChannels() int
	NumSubsongs() int
	Orders(subsong int) []int
	NumRows(pattern int) int
	Note(pattern, row, channel int) int
}

// rowsHint sizes the output buffer; real patterns usually hold 64 rows.
const rowsHint = 64

// Encode returns the note blob of m.
func Encode(m Source) []byte {
	var (
		out      []byte
		lastNote int8
	)
	channels := m.NumChannels()
	for s := 0; s < m.NumSubsongs(); s++ {
		orders := m.Orders(s)
		out = grow(out, channels*len(orders)*rowsHint)
		for c := 0; c < channels; c++ {
			out = append(out, byte(-lastNote))
			for _, p := range orders {
				rows := m.NumRows(p)
				for r := 0; r < rows; r++ {
					note := m.Note(p, r, c)
					if note <= 0 || note > 128 {
						continue
					}
					out = append(out, byte(int8(note)-lastNote))
					lastNote = int8(note)
				}
			}
		}
	}
	return out
}

func grow(b []byte, n int) []byte {
	if n <= 0 || cap(b)-len(b) >= n {
		return b
	}
	nb := make([]byte, len(b), len(b)+n)
	copy(nb, b)
	return nb
}

// Contains reports whether needle occurs in blob. It mirrors the store's
// containment predicate; an empty needle never matches.
func Contains(blob, needle []byte) bool {
	return len(needle) > 0 && bytes.Contains(blob, needle)
}

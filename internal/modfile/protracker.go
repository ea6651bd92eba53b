package modfile

import (
	"bytes"
	"encoding/binary"
	"strings"
	"time"
)

const (
	titleLen      = 20
	sampleHdrLen  = 30
	numMODSamples = 31
	orderTableOff = titleLen + numMODSamples*sampleHdrLen // 950
	magicOff      = orderTableOff + 2 + 128               // 1080
	patternOff    = magicOff + 4                          // 1084
	rowsPerPat    = 64
	cellLen       = 4

	defaultSpeed = 6
	defaultTempo = 125
)

// periods holds the finetune-0 ProTracker periods for six octaves, C-0 first.
var periods = [...]uint16{
	1712, 1616, 1525, 1440, 1357, 1281, 1209, 1141, 1077, 1017, 961, 907,
	856, 808, 762, 720, 678, 640, 604, 570, 538, 508, 480, 453,
	428, 404, 381, 360, 339, 320, 302, 285, 269, 254, 240, 226,
	214, 202, 190, 180, 170, 160, 151, 143, 135, 127, 120, 113,
	107, 101, 95, 90, 85, 80, 76, 71, 67, 64, 60, 57,
	53, 50, 47, 45, 42, 40, 38, 36, 34, 32, 30, 28,
}

// firstPeriodNote is the note number assigned to periods[0]. Note 1 is C-0,
// so ProTracker's C-1 (period 856) lands on C-3.
const firstPeriodNote = 25

// ProTracker is the default Inspector. It reads 31-sample MOD files with a
// known channel signature.
type ProTracker struct{}

// Inspect implements Inspector.
func (ProTracker) Inspect(data []byte) (Module, error) {
	m, err := ParseMOD(data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MOD is a parsed ProTracker-compatible module.
type MOD struct {
	title    string
	samples  []string
	channels int
	orders   []int
	// cells is indexed [pattern][row*channels+channel] and holds note numbers.
	cells [][]uint8
	// fx holds (effect, param) per cell, used for duration estimation.
	fx       [][][2]uint8
	duration time.Duration
}

// ParseMOD parses a 31-sample MOD file.
func ParseMOD(data []byte) (*MOD, error) {
	if len(data) < patternOff {
		return nil, parseErr("file too short (%d bytes)", len(data))
	}
	channels := channelsForMagic(data[magicOff : magicOff+4])
	if channels == 0 {
		return nil, parseErr("unknown signature %q", data[magicOff:magicOff+4])
	}

	songLen := int(data[orderTableOff])
	if songLen == 0 || songLen > 128 {
		return nil, parseErr("invalid song length %d", songLen)
	}
	numPatterns := 0
	for _, p := range data[orderTableOff+2 : orderTableOff+2+128] {
		if int(p)+1 > numPatterns {
			numPatterns = int(p) + 1
		}
	}
	patSize := rowsPerPat * channels * cellLen
	if len(data) < patternOff+numPatterns*patSize {
		return nil, parseErr("truncated pattern data")
	}

	m := &MOD{
		title:    cString(data[:titleLen]),
		channels: channels,
		orders:   make([]int, songLen),
		cells:    make([][]uint8, numPatterns),
		fx:       make([][][2]uint8, numPatterns),
	}
	for i := 0; i < numMODSamples; i++ {
		off := titleLen + i*sampleHdrLen
		m.samples = append(m.samples, cString(data[off:off+22]))
	}
	for i := range m.orders {
		m.orders[i] = int(data[orderTableOff+2+i])
	}
	for p := 0; p < numPatterns; p++ {
		base := patternOff + p*patSize
		notes := make([]uint8, rowsPerPat*channels)
		fx := make([][2]uint8, rowsPerPat*channels)
		for i := range notes {
			c := data[base+i*cellLen : base+i*cellLen+cellLen]
			period := binary.BigEndian.Uint16(c[0:2]) & 0x0FFF
			notes[i] = periodToNote(period)
			fx[i] = [2]uint8{c[2] & 0x0F, c[3]}
		}
		m.cells[p] = notes
		m.fx[p] = fx
	}
	m.duration = m.estimateDuration()
	return m, nil
}

func channelsForMagic(magic []byte) int {
	switch string(magic) {
	case "M.K.", "M!K!", "M&K!", "FLT4", "4CHN", "N.T.":
		return 4
	case "FLT8", "CD81", "OKTA", "OCTA":
		return 8
	}
	// xCHN and xxCH.
	if bytes.Equal(magic[1:], []byte("CHN")) && magic[0] >= '1' && magic[0] <= '9' {
		return int(magic[0] - '0')
	}
	if bytes.Equal(magic[2:], []byte("CH")) && isDigit(magic[0]) && isDigit(magic[1]) {
		n := int(magic[0]-'0')*10 + int(magic[1]-'0')
		if n >= 1 && n <= 32 {
			return n
		}
	}
	return 0
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func periodToNote(period uint16) uint8 {
	if period == 0 {
		return 0
	}
	best, bestDiff := 0, -1
	for i, p := range periods {
		d := int(p) - int(period)
		if d < 0 {
			d = -d
		}
		if bestDiff < 0 || d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return uint8(best + firstPeriodNote)
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(string(b), " ")
}

// estimateDuration follows the order list honouring speed, tempo, position
// jump and pattern break commands. It stops at the first revisited row.
func (m *MOD) estimateDuration() time.Duration {
	speed, tempo := defaultSpeed, defaultTempo
	var total time.Duration
	visited := make(map[[2]int]struct{})

	order, row := 0, 0
	for order < len(m.orders) {
		key := [2]int{order, row}
		if _, seen := visited[key]; seen {
			break
		}
		visited[key] = struct{}{}

		pat := m.orders[order]
		nextOrder, nextRow := order, row+1
		jumped := false
		stop := false
		for ch := 0; ch < m.channels; ch++ {
			fx := m.fx[pat][row*m.channels+ch]
			switch fx[0] {
			case 0xF:
				switch {
				case fx[1] == 0:
					stop = true
				case fx[1] < 0x20:
					speed = int(fx[1])
				default:
					tempo = int(fx[1])
				}
			case 0xB:
				nextOrder, nextRow, jumped = int(fx[1]), 0, true
			case 0xD:
				if !jumped {
					nextOrder = order + 1
				}
				nextRow = int(fx[1]>>4)*10 + int(fx[1]&0x0F)
				if nextRow >= rowsPerPat {
					nextRow = 0
				}
				jumped = true
			}
		}
		// One tick lasts 2.5/tempo seconds.
		total += time.Duration(speed) * 2500 * time.Millisecond / time.Duration(tempo)
		if stop {
			break
		}
		if !jumped && nextRow >= rowsPerPat {
			nextOrder, nextRow = order+1, 0
		}
		order, row = nextOrder, nextRow
	}
	return total
}

func (m *MOD) NumChannels() int { return m.channels }
func (m *MOD) NumSubsongs() int { return 1 }

func (m *MOD) Orders(subsong int) []int {
	if subsong != 0 {
		return nil
	}
	return m.orders
}

func (m *MOD) NumRows(pattern int) int {
	if pattern < 0 || pattern >= len(m.cells) {
		return 0
	}
	return rowsPerPat
}

func (m *MOD) Note(pattern, row, channel int) int {
	if pattern < 0 || pattern >= len(m.cells) || row < 0 || row >= rowsPerPat || channel < 0 || channel >= m.channels {
		return 0
	}
	return int(m.cells[pattern][row*m.channels+channel])
}

func (m *MOD) NumPatterns() int { return len(m.cells) }
func (m *MOD) NumSamples() int { return len(m.samples) }
func (m *MOD) NumInstruments() int { return 0 }
func (m *MOD) SampleNames() []string { return m.samples }
func (m *MOD) InstrumentNames() []string { return nil }
func (m *MOD) Duration() time.Duration { return m.duration }

func (m *MOD) Metadata(key string) string {
	switch key {
	case MetaTitle:
		return m.title
	case MetaType:
		return "mod"
	}
	return ""
}

// PeriodForNote returns the finetune-0 period that decodes to note, or 0 when
// the note lies outside the six octaves a MOD can address.
func PeriodForNote(note int) uint16 {
	i := note - firstPeriodNote
	if i < 0 || i >= len(periods) {
		return 0
	}
	return periods[i]
}

// Package models defines the domain types for modlib.
package models

// Module is one indexed module file. Filename is the identity key; Hash is
// the only change signal.
type Module struct {
	Hash            string `json:"hash"`
	Filename        string `json:"filename"`
	FileSize        int64  `json:"filesize"`
	FileDate        int64  `json:"file_date"` // unix seconds
	EditDate        int64  `json:"edit_date"` // unix seconds, 0 when unknown
	Format          string `json:"format"`
	Title           string `json:"title"`
	Length          int64  `json:"length_ms"`
	NumChannels     int    `json:"num_channels"`
	NumPatterns     int    `json:"num_patterns"`
	NumOrders       int    `json:"num_orders"`
	NumSubsongs     int    `json:"num_subsongs"`
	NumSamples      int    `json:"num_samples"`
	NumInstruments  int    `json:"num_instruments"`
	SampleText      string `json:"sample_text"`
	InstrumentText  string `json:"instrument_text"`
	Comments        string `json:"comments"`
	Artist          string `json:"artist"`
	PersonalComment string `json:"personal_comment"`
	NoteData        []byte `json:"-"`
	Fingerprint     string `json:"fingerprint,omitempty"`
}

// DuplicateGroup lists the filenames sharing one content digest.
type DuplicateGroup struct {
	Hash      string   `json:"hash"`
	Filenames []string `json:"filenames"`
}

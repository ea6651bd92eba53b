// Package fingerprint decodes compact audio fingerprints and ranks modules by
// fingerprint similarity.
//
// The textual form is the compressed Chromaprint fingerprint: URL-safe
// base64 without padding over a 4 byte header (algorithm, 24-bit big-endian
// item count) followed by the packed bit positions of every item. Items are
// XOR-chained with their predecessor, and set bit positions are stored as
// deltas, 3 bits each, with values of 7 or more continued in a trailing 5-bit
// exception array.
package fingerprint

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/starford/modlib/internal/apperr"
)

const (
	normalBits    = 3
	exceptionBits = 5
	maxNormal     = 1<<normalBits - 1
	headerLen     = 4
)

// Decode returns the raw fingerprint items of text. Malformed or empty input
// yields an empty vector.
func Decode(text string) []uint32 {
	v, _ := DecodeErr(text)
	return v
}

// DecodeErr is Decode with the reason for a failure. Blank input is not an
// error. Failures wrap apperr.ErrDecode.
func DecodeErr(text string) ([]uint32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	text = strings.TrimRight(text, "=")
	text = strings.NewReplacer("+", "-", "/", "_").Replace(text)
	raw, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: base64: %w", apperr.ErrDecode)
	}
	v, err := decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %s: %w", err.Error(), apperr.ErrDecode)
	}
	return v, nil
}

type decodeError string

func (e decodeError) Error() string { return string(e) }

func decompress(raw []byte) ([]uint32, error) {
	if len(raw) < headerLen {
		return nil, decodeError("header too short")
	}
	n := int(raw[1])<<16 | int(raw[2])<<8 | int(raw[3])
	if n == 0 {
		return nil, decodeError("no items")
	}
	body := raw[headerLen:]

	bits := unpack(body, normalBits, len(body)*8/normalBits)
	found, exceptions, end := 0, 0, -1
	for i, b := range bits {
		if b == 0 {
			found++
			if found == n {
				end = i + 1
				break
			}
		} else if b == maxNormal {
			exceptions++
		}
	}
	if end < 0 {
		return nil, decodeError("item count exceeds data")
	}
	bits = bits[:end]

	off := packedSize(end, normalBits)
	if len(body) < off+packedSize(exceptions, exceptionBits) {
		return nil, decodeError("exception data truncated")
	}
	if exceptions > 0 {
		ex := unpack(body[off:], exceptionBits, exceptions)
		j := 0
		for i, b := range bits {
			if b == maxNormal {
				bits[i] += ex[j]
				j++
			}
		}
	}

	out := make([]uint32, 0, n)
	var value uint32
	last := 0
	for _, b := range bits {
		if b == 0 {
			if len(out) > 0 {
				value ^= out[len(out)-1]
			}
			out = append(out, value)
			value, last = 0, 0
			continue
		}
		bit := last + int(b)
		if bit > 32 {
			return nil, decodeError("bit position out of range")
		}
		value |= 1 << (bit - 1)
		last = bit
	}
	return out, nil
}

// Encode compresses items into the textual fingerprint form.
func Encode(algorithm byte, items []uint32) string {
	var normal, exc []uint8
	var prev uint32
	for _, item := range items {
		x := item ^ prev
		prev = item
		last := 0
		for bit := 1; x != 0; bit, x = bit+1, x>>1 {
			if x&1 == 0 {
				continue
			}
			d := bit - last
			last = bit
			if d >= maxNormal {
				normal = append(normal, maxNormal)
				exc = append(exc, uint8(d-maxNormal))
			} else {
				normal = append(normal, uint8(d))
			}
		}
		normal = append(normal, 0)
	}

	n := len(items)
	raw := []byte{algorithm, byte(n >> 16), byte(n >> 8), byte(n)}
	raw = append(raw, pack(normal, normalBits)...)
	raw = append(raw, pack(exc, exceptionBits)...)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func packedSize(count int, width uint) int {
	return (count*int(width) + 7) / 8
}

// unpack reads count little-endian bit fields of the given width.
func unpack(data []byte, width uint, count int) []uint8 {
	out := make([]uint8, count)
	var acc uint32
	var have uint
	pos := 0
	for i := range out {
		for have < width {
			acc |= uint32(data[pos]) << have
			pos++
			have += 8
		}
		out[i] = uint8(acc & (1<<width - 1))
		acc >>= width
		have -= width
	}
	return out
}

func pack(values []uint8, width uint) []byte {
	out := make([]byte, 0, packedSize(len(values), width))
	var acc uint32
	var have uint
	for _, v := range values {
		acc |= uint32(v&(1<<width-1)) << have
		have += width
		for have >= 8 {
			out = append(out, byte(acc))
			acc >>= 8
			have -= 8
		}
	}
	if have > 0 {
		out = append(out, byte(acc))
	}
	return out
}

// Package checksum computes the content digest used to detect changed and
// duplicated module files.
package checksum

import (
	"crypto/sha512"
	"encoding/base64"
)

// Size is the length of the rendered digest string.
var Size = base64.StdEncoding.EncodedLen(sha512.Size)

// Sum returns the base64-encoded SHA-512 digest of data.
func Sum(data []byte) string {
	h := sha512.Sum512(data)
	return base64.StdEncoding.EncodeToString(h[:])
}

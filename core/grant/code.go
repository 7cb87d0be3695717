package grant

import (
	"crypto/rand"
	"encoding/base32"

	"github.com/pkg/errors"
)

const minCodeBytes = 8

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateCode returns an unguessable access code made of n random bytes (at least 8).
func GenerateCode(n int) (string, error) {
	if n < minCodeBytes {
		n = minCodeBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return codeEncoding.EncodeToString(b), nil
}

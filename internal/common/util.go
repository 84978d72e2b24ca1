package common

import (
	"crypto/rand"
	"encoding/hex"
)

// MakeRandHexString returns a random hexadecimal string built from size
// random bytes, so the result is 2*size characters long. Share tokens use
// size=32, which yields a 64-character URL-safe token.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateRandByteArray returns size cryptographically random bytes.
// It panics only if the system randomness source is broken.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

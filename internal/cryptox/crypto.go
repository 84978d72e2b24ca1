// Package cryptox implements the authenticated encryption applied to every
// stored payload. The key is injected into a Codec constructed once at
// process start; there is no package-level key state.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/akarpovs/cryptodrive/internal/common"
)

// DeriveKey derives a 32-byte AES key from an operator passphrase and salt
// using argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// Codec seals and opens byte payloads with AES-GCM under a single
// process-wide key. Safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
}

// New builds a Codec from key, which must be 16, 24, or 32 bytes long.
func New(key []byte) (*Codec, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext and returns nonce||ciphertext. A fresh random
// nonce is generated per call.
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a payload produced by Encrypt. Any failure (wrong key,
// truncation, tampering) yields common.ErrDecryptionFailed; no partial
// plaintext is ever returned.
func (c *Codec) Decrypt(payload []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(payload) < ns {
		return nil, common.ErrDecryptionFailed
	}
	nonce, ciphertext := payload[:ns], payload[ns:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrDecryptionFailed
	}
	return plaintext, nil
}

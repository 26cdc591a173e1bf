// Package vault encrypts sensitive health outcomes at rest. A sealed record
// is "band | {answers json}" encrypted under an AEAD; only the admin review
// path opens it again.
package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// separator splits the band from the serialized answers inside the sealed
// plaintext. Answer values must not be able to shift the band, hence the
// split on the first occurrence only.
const separator = " | "

// ErrIntegrity marks a ciphertext that failed authentication. Callers must
// surface it, never substitute an empty record.
var ErrIntegrity = errors.New("vault: ciphertext failed integrity check")

type Vault struct {
	aead cipher.AEAD
}

// New builds a vault from a 32-byte key.
func New(key []byte) (*Vault, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("vault: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Vault{aead: aead}, nil
}

// Seal serializes the answers, prefixes the band and encrypts the whole
// record. The output is base64url text safe for the results table.
func (v *Vault) Seal(band string, answers map[string]string) (string, error) {
	if answers == nil {
		answers = map[string]string{}
	}
	payload, err := json.Marshal(answers)
	if err != nil {
		return "", err
	}
	plaintext := band + separator + string(payload)

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed record into its band and answer map. Records
// sealed before answers were retained decrypt to band-only text; those
// return a nil map. Any tampering or key mismatch yields ErrIntegrity.
func (v *Vault) Open(ciphertext string) (string, map[string]string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	if len(raw) < v.aead.NonceSize() {
		return "", nil, ErrIntegrity
	}
	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", nil, ErrIntegrity
	}

	text := string(plaintext)
	band, payload, found := strings.Cut(text, separator)
	if !found {
		// legacy record: band only, answers not retained
		return text, nil, nil
	}
	answers := map[string]string{}
	if err := json.Unmarshal([]byte(payload), &answers); err != nil {
		return "", nil, fmt.Errorf("%w: malformed payload", ErrIntegrity)
	}
	return band, answers, nil
}

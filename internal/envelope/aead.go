package envelope

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

const envelopeVersion byte = 1

// aeadCipher is the encrypted Cipher implementation: HMAC-SHA256 for key
// blinding, XChaCha20-Poly1305 for value encryption. The two keys are
// independent subkeys of a single root secret (see DeriveCipher) so that a
// compromise of one operation's key does not expose the other.
type aeadCipher struct {
	blindKey []byte
	aead     interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
		Overhead() int
	}
}

func newAEADCipher(blindKey, encKey []byte) (*aeadCipher, error) {
	aead, err := chacha20poly1305.NewX(encKey)
	if err != nil {
		return nil, errors.Wrap(err, "envelope: init aead")
	}
	return &aeadCipher{blindKey: blindKey, aead: aead}, nil
}

func (c *aeadCipher) BlindKey(columnTag string, b []byte) []byte {
	mac := hmac.New(sha256.New, c.blindKey)
	mac.Write([]byte(columnTag))
	mac.Write([]byte{0})
	mac.Write(b)
	return mac.Sum(nil)
}

func (c *aeadCipher) EncodeValue(v any) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "envelope: marshal value")
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "envelope: generate nonce")
	}

	out := make([]byte, 0, 1+len(nonce)+len(plaintext)+c.aead.Overhead())
	out = append(out, envelopeVersion)
	out = append(out, nonce...)
	out = c.aead.Seal(out, nonce, plaintext, nil)
	return out, nil
}

func (c *aeadCipher) DecodeValue(b []byte, v any) error {
	nonceSize := c.aead.NonceSize()
	if len(b) < 1+nonceSize {
		return ErrEnvelope
	}
	if b[0] != envelopeVersion {
		return ErrEnvelope
	}
	nonce := b[1 : 1+nonceSize]
	ciphertext := b[1+nonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrEnvelope
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return ErrEnvelope
	}
	return nil
}

package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// SaltSize is the length of the random PBKDF2 salt persisted alongside the
// store. It is not secret; only the passphrase is.
const SaltSize = 16

// pbkdf2Iterations follows the OWASP 2023 minimum recommendation for
// PBKDF2-HMAC-SHA256.
const pbkdf2Iterations = 210_000

const (
	subkeySize  = 32
	infoBlind   = "matrix-cryptostore:blind"
	infoEnc     = "matrix-cryptostore:enc"
	infoCheck   = "matrix-cryptostore:check"
)

// NewSalt generates a fresh random PBKDF2 salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "envelope: generate salt")
	}
	return salt, nil
}

// DeriveCipher turns a passphrase and its persisted salt into a Cipher.
// The same (passphrase, salt) pair always derives the same keys (P2); a
// different passphrase derives unrelated keys, which is what lets
// VerifyCanary detect a wrong passphrase.
func DeriveCipher(passphrase string, salt []byte) (Cipher, error) {
	root := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, subkeySize, sha256.New)

	blindKey, err := hkdfExpand(root, infoBlind)
	if err != nil {
		return nil, err
	}
	encKey, err := hkdfExpand(root, infoEnc)
	if err != nil {
		return nil, err
	}
	return newAEADCipher(blindKey, encKey)
}

func hkdfExpand(root []byte, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, root, nil, []byte(info))
	out := make([]byte, subkeySize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, errors.Wrap(err, "envelope: hkdf expand")
	}
	return out, nil
}

// checkCipher derives the canary-check subkey the same way DeriveCipher
// derives blind/enc, but keeps it independent of both so a canary mismatch
// can never be masked by a coincidental blind-key or value-key collision.
func checkCipher(passphrase string, salt []byte) (Cipher, error) {
	root := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, subkeySize, sha256.New)
	checkKey, err := hkdfExpand(root, infoCheck)
	if err != nil {
		return nil, err
	}
	// The canary only ever needs authenticated encryption, not blinding, so
	// it reuses the AEAD cipher with checkKey standing in for both roles.
	return newAEADCipher(checkKey, checkKey)
}

// EncodeCanary produces the ciphertext stored under the canary tag at
// first unlock.
func EncodeCanary(passphrase string, salt []byte) ([]byte, error) {
	c, err := checkCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}
	return c.EncodeValue(canaryPlaintext)
}

// VerifyCanary reports whether passphrase correctly decrypts the stored
// canary. A wrong passphrase fails the AEAD tag check inside DecodeValue.
func VerifyCanary(passphrase string, salt, stored []byte) error {
	c, err := checkCipher(passphrase, salt)
	if err != nil {
		return err
	}
	var got string
	if err := c.DecodeValue(stored, &got); err != nil {
		return ErrEnvelope
	}
	if got != canaryPlaintext {
		return ErrEnvelope
	}
	return nil
}

// CanaryTag is the kv tag EncodeCanary/VerifyCanary are stored under.
func CanaryTag() string { return canaryTag }

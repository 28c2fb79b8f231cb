// Package envelope implements the at-rest encryption layer for the crypto
// store: deterministic, column-scoped blinding of lookup keys and
// authenticated encryption of stored values.
//
// Every call site works against the Cipher interface regardless of whether
// a passphrase was supplied. When none was, Plaintext satisfies Cipher with
// identity blinding and plain JSON encoding, so repositories never branch
// on whether the store is encrypted.
package envelope

import "github.com/pkg/errors"

// Cipher blinds lookup keys and encodes/decodes stored values.
type Cipher interface {
	// BlindKey deterministically transforms b into a lookup key scoped to
	// columnTag. Equal (columnTag, b) pairs always produce equal output;
	// distinct tags for the same b must not collide.
	BlindKey(columnTag string, b []byte) []byte

	// EncodeValue serialises and, when a real cipher is installed,
	// authenticated-encrypts v.
	EncodeValue(v any) ([]byte, error)

	// DecodeValue inverts EncodeValue into v. It fails closed: tampering,
	// a version mismatch, or a schema mismatch all return ErrEnvelope.
	DecodeValue(b []byte, v any) error
}

// ErrEnvelope is returned by DecodeValue whenever the ciphertext cannot be
// trusted: authentication failure, unknown version, or malformed payload.
var ErrEnvelope = errors.New("envelope: decode failed")

const canaryPlaintext = "cryptostore-v1"

// canaryTag is the kv tag under which the encrypted canary is stored so a
// later UnlockWithPassphrase call can detect a wrong passphrase before any
// domain row is touched.
const canaryTag = "kdf_check"

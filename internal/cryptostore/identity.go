package cryptostore

import (
	"context"
	"database/sql"

	"matrix-cryptostore/internal/envelope"
)

const kvTagPrivateIdentity = "private_identity"

// LoadPrivateIdentity returns the singleton cross-signing identity, or nil
// if none has been stored. A decode failure surfaces as a SignError, not
// as absence — the distinction matters because "never set up
// cross-signing" and "cross-signing data is corrupt" demand different
// recovery paths from the runtime.
func (s *Store) LoadPrivateIdentity(ctx context.Context) (*PrivateCrossSigningIdentity, error) {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = s.db.QueryRowContext(ctx, s.queries.KVFetch(), kvTagPrivateIdentity).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapBackend(err)
	}
	var pickle []byte
	if err := cipher.DecodeValue(raw, &pickle); err != nil {
		return nil, wrapSign(err)
	}
	return &PrivateCrossSigningIdentity{Pickle: pickle}, nil
}

// SavePrivateIdentity persists the singleton cross-signing identity.
func (s *Store) SavePrivateIdentity(ctx context.Context, identity PrivateCrossSigningIdentity) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	return s.savePrivateIdentity(ctx, s.db, cipher, identity)
}

func (s *Store) savePrivateIdentity(ctx context.Context, exec dbExecer, cipher envelope.Cipher, identity PrivateCrossSigningIdentity) error {
	encoded, err := cipher.EncodeValue(identity.Pickle)
	if err != nil {
		return wrapEnvelope(err)
	}
	if _, err := exec.ExecContext(ctx, s.queries.KVUpsert(), kvTagPrivateIdentity, encoded); err != nil {
		return wrapBackend(err)
	}
	return nil
}

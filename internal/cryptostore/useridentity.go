package cryptostore

import (
	"context"

	"matrix-cryptostore/internal/envelope"
)

const tagUserIdentityUser = "user_identity_user"

type userIdentityRow struct {
	UserID string `json:"user_id"`
	Pickle []byte `json:"pickle"`
}

// SaveUserIdentity upserts the cross-signing identity Matrix has published
// for a user. This is distinct from the local device's own private
// cross-signing identity handled in identity.go.
func (s *Store) SaveUserIdentity(ctx context.Context, identity ReadOnlyUserIdentity) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	return s.saveUserIdentity(ctx, s.db, cipher, identity)
}

func (s *Store) saveUserIdentity(ctx context.Context, exec dbExecer, cipher envelope.Cipher, identity ReadOnlyUserIdentity) error {
	userBlind := cipher.BlindKey(tagUserIdentityUser, []byte(identity.UserID))
	encoded, err := cipher.EncodeValue(userIdentityRow{
		UserID: identity.UserID,
		Pickle: identity.Pickle,
	})
	if err != nil {
		return wrapEnvelope(err)
	}
	if _, err := exec.ExecContext(ctx, s.queries.IdentityUpsert(), userBlind, encoded); err != nil {
		return wrapBackend(err)
	}
	return nil
}

// GetUserIdentity returns the published cross-signing identity for a user,
// or nil if none has been stored.
func (s *Store) GetUserIdentity(ctx context.Context, userID string) (*ReadOnlyUserIdentity, error) {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return nil, err
	}
	userBlind := cipher.BlindKey(tagUserIdentityUser, []byte(userID))
	var encoded []byte
	err = s.db.QueryRowContext(ctx, s.queries.IdentityFetch(), userBlind).Scan(&encoded)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrapBackend(err)
	}
	var row userIdentityRow
	if err := cipher.DecodeValue(encoded, &row); err != nil {
		return nil, wrapEnvelope(err)
	}
	return &ReadOnlyUserIdentity{
		UserID: row.UserID,
		Pickle: row.Pickle,
	}, nil
}

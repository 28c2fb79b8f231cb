package cryptostore

import "context"

// SaveMessageHash records hash as seen for senderKey. The underlying
// statement ignores a duplicate insert, so calling it twice for the same
// (senderKey, hash) is a no-op rather than an error — replay detection
// needs idempotent writes, not upsert semantics.
func (s *Store) SaveMessageHash(ctx context.Context, hash OlmMessageHash) error {
	if _, err := s.ensureUnlocked(); err != nil {
		return err
	}
	return s.saveMessageHash(ctx, s.db, hash)
}

func (s *Store) saveMessageHash(ctx context.Context, exec dbExecer, hash OlmMessageHash) error {
	if _, err := exec.ExecContext(ctx, s.queries.OlmMessageHashStore(), hash.SenderKey, hash.Hash); err != nil {
		return wrapBackend(err)
	}
	return nil
}

// IsMessageKnown reports whether (senderKey, hash) has already been
// recorded, for detecting replayed Olm ciphertexts.
func (s *Store) IsMessageKnown(ctx context.Context, senderKey, hash string) (bool, error) {
	if _, err := s.ensureUnlocked(); err != nil {
		return false, err
	}
	var marker int
	err := s.db.QueryRowContext(ctx, s.queries.MessageKnown(), senderKey, hash).Scan(&marker)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, wrapBackend(err)
	}
	return true, nil
}

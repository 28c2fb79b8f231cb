package cryptostore

import (
	"context"

	"matrix-cryptostore/internal/envelope"
)

const (
	tagOlmSenderKey = "olm_sender_key"
	tagOlmSessionID = "olm_session_id"
)

type sessionRow struct {
	SessionID string `json:"session_id"`
	SenderKey string `json:"sender_key"`
	Pickle    []byte `json:"pickle"`
	CreatedAt int64  `json:"created_at"`
	LastUsed  int64  `json:"last_used"`
}

// SaveSession upserts session keyed by (sender_key, session_id), per the
// resolved open question: a reused session id for the same sender key
// replaces the existing row rather than appending a duplicate. The cache
// entry is updated only after the write succeeds.
func (s *Store) SaveSession(ctx context.Context, session Session) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	if err := s.saveSession(ctx, s.db, cipher, session); err != nil {
		return err
	}

	list := s.sessions.getOrCreate(session.SenderKey)
	list.Lock()
	replaced := false
	for i, existing := range list.Sessions() {
		if existing.SessionID == session.SessionID {
			list.sessions[i] = &session
			replaced = true
			break
		}
	}
	if !replaced {
		list.Append(&session)
	}
	list.Unlock()
	return nil
}

func (s *Store) saveSession(ctx context.Context, exec dbExecer, cipher envelope.Cipher, session Session) error {
	senderBlind := cipher.BlindKey(tagOlmSenderKey, []byte(session.SenderKey))
	sessionBlind := cipher.BlindKey(tagOlmSessionID, []byte(session.SessionID))
	encoded, err := cipher.EncodeValue(sessionRow{
		SessionID: session.SessionID,
		SenderKey: session.SenderKey,
		Pickle:    session.Pickle,
		CreatedAt: session.CreatedAt.UnixMilli(),
		LastUsed:  session.LastUsed.UnixMilli(),
	})
	if err != nil {
		return wrapEnvelope(err)
	}
	_, err = exec.ExecContext(ctx, s.queries.SessionUpsert(),
		senderBlind, sessionBlind, encoded, session.CreatedAt.UnixMilli(), session.LastUsed.UnixMilli())
	if err != nil {
		return wrapBackend(err)
	}
	return nil
}

// GetSessions returns the shared mutable session list for senderKey. A
// cache hit returns the existing handle; a miss fetches every row for that
// sender key, reconstitutes it (requiring AccountInfo to already be set),
// populates the cache, and returns the new handle. If no rows exist at
// all, it returns (nil, nil) — cache absence is never authoritative on
// its own (I3).
func (s *Store) GetSessions(ctx context.Context, senderKey string) (*SessionList, error) {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return nil, err
	}
	if list, ok := s.sessions.get(senderKey); ok {
		return list, nil
	}

	if _, err := s.CurrentAccountInfo(); err != nil {
		return nil, err
	}

	senderBlind := cipher.BlindKey(tagOlmSenderKey, []byte(senderKey))
	rows, err := s.db.QueryContext(ctx, s.queries.SessionsForUser(), senderBlind)
	if err != nil {
		return nil, wrapBackend(err)
	}
	defer rows.Close()

	var found []*Session
	for rows.Next() {
		var sessionBlind, encoded []byte
		var createdAt, lastUsed int64
		if err := rows.Scan(&sessionBlind, &encoded, &createdAt, &lastUsed); err != nil {
			return nil, wrapBackend(err)
		}
		var row sessionRow
		if err := cipher.DecodeValue(encoded, &row); err != nil {
			return nil, wrapEnvelope(err)
		}
		found = append(found, &Session{
			SessionID: row.SessionID,
			SenderKey: row.SenderKey,
			Pickle:    row.Pickle,
			CreatedAt: millisToTime(row.CreatedAt),
			LastUsed:  millisToTime(row.LastUsed),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapBackend(err)
	}
	if len(found) == 0 {
		return nil, nil
	}

	list := s.sessions.getOrCreate(senderKey)
	list.Lock()
	for _, sess := range found {
		list.Append(sess)
	}
	list.Unlock()
	return list, nil
}

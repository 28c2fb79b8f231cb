package cryptostore

import (
	"context"

	"matrix-cryptostore/internal/envelope"
)

const (
	tagIGSRoom    = "igs_room"
	tagIGSSender  = "igs_sender"
	tagIGSSession = "igs_session"
)

type inboundGroupSessionRow struct {
	RoomID     string `json:"room_id"`
	SenderKey  string `json:"sender_key"`
	SessionID  string `json:"session_id"`
	SigningKey string `json:"signing_key"`
	Pickle     []byte `json:"pickle"`
	BackedUp   bool   `json:"backed_up"`
}

func groupSessionCacheKey(roomID, senderKey, sessionID string) string {
	return roomID + "\x00" + senderKey + "\x00" + sessionID
}

// SaveInboundGroupSession upserts session on its natural key (room,
// sender, session id).
func (s *Store) SaveInboundGroupSession(ctx context.Context, session InboundGroupSession) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	if err := s.saveInboundGroupSession(ctx, s.db, cipher, session); err != nil {
		return err
	}
	s.groupSessions.Set(groupSessionCacheKey(session.RoomID, session.SenderKey, session.SessionID), &session)
	return nil
}

func (s *Store) saveInboundGroupSession(ctx context.Context, exec dbExecer, cipher envelope.Cipher, session InboundGroupSession) error {
	roomBlind := cipher.BlindKey(tagIGSRoom, []byte(session.RoomID))
	senderBlind := cipher.BlindKey(tagIGSSender, []byte(session.SenderKey))
	sessionBlind := cipher.BlindKey(tagIGSSession, []byte(session.SessionID))
	encoded, err := cipher.EncodeValue(inboundGroupSessionRow{
		RoomID:     session.RoomID,
		SenderKey:  session.SenderKey,
		SessionID:  session.SessionID,
		SigningKey: session.SigningKey,
		Pickle:     session.Pickle,
		BackedUp:   session.BackedUp,
	})
	if err != nil {
		return wrapEnvelope(err)
	}
	_, err = exec.ExecContext(ctx, s.queries.InboundGroupSessionUpsert(), roomBlind, senderBlind, sessionBlind, encoded)
	if err != nil {
		return wrapBackend(err)
	}
	return nil
}

// GetInboundGroupSession returns the session for (room, sender, session
// id), consulting the cache first and falling back to the database.
func (s *Store) GetInboundGroupSession(ctx context.Context, roomID, senderKey, sessionID string) (*InboundGroupSession, error) {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return nil, err
	}
	cacheKey := groupSessionCacheKey(roomID, senderKey, sessionID)
	if cached, ok := s.groupSessions.Get(cacheKey); ok {
		s.metrics.GroupSessionCacheHits.Add(1)
		return cached, nil
	}
	s.metrics.GroupSessionCacheMisses.Add(1)

	roomBlind := cipher.BlindKey(tagIGSRoom, []byte(roomID))
	senderBlind := cipher.BlindKey(tagIGSSender, []byte(senderKey))
	sessionBlind := cipher.BlindKey(tagIGSSession, []byte(sessionID))

	var encoded []byte
	err = s.db.QueryRowContext(ctx, s.queries.InboundGroupSessionFetch(), roomBlind, senderBlind, sessionBlind).Scan(&encoded)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrapBackend(err)
	}
	var row inboundGroupSessionRow
	if err := cipher.DecodeValue(encoded, &row); err != nil {
		return nil, wrapEnvelope(err)
	}
	session := &InboundGroupSession{
		RoomID:     row.RoomID,
		SenderKey:  row.SenderKey,
		SessionID:  row.SessionID,
		SigningKey: row.SigningKey,
		Pickle:     row.Pickle,
		BackedUp:   row.BackedUp,
	}
	s.groupSessions.Set(cacheKey, session)
	return session, nil
}

// GetInboundGroupSessions returns every inbound group session, used for
// counts and backup selection (ResetBackupState runs the same scan inside
// its own transaction). It reads every row of the table into a slice —
// the cache is a bounded working set, not a substitute for an
// authoritative full scan.
func (s *Store) GetInboundGroupSessions(ctx context.Context) ([]*InboundGroupSession, error) {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return nil, err
	}
	return s.streamInboundGroupSessions(ctx, s.db, cipher)
}

func (s *Store) streamInboundGroupSessions(ctx context.Context, exec dbExecer, cipher envelope.Cipher) ([]*InboundGroupSession, error) {
	rows, err := exec.QueryContext(ctx, s.queries.InboundGroupSessionsStream())
	if err != nil {
		return nil, wrapBackend(err)
	}
	defer rows.Close()

	var out []*InboundGroupSession
	for rows.Next() {
		var roomBlind, senderBlind, sessionBlind, encoded []byte
		if err := rows.Scan(&roomBlind, &senderBlind, &sessionBlind, &encoded); err != nil {
			return nil, wrapBackend(err)
		}
		var row inboundGroupSessionRow
		if err := cipher.DecodeValue(encoded, &row); err != nil {
			return nil, wrapEnvelope(err)
		}
		out = append(out, &InboundGroupSession{
			RoomID:     row.RoomID,
			SenderKey:  row.SenderKey,
			SessionID:  row.SessionID,
			SigningKey: row.SigningKey,
			Pickle:     row.Pickle,
			BackedUp:   row.BackedUp,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapBackend(err)
	}
	return out, nil
}

// InboundGroupSessionCounts reports the total number of inbound group
// sessions and how many are already backed up (P7).
func (s *Store) InboundGroupSessionCounts(ctx context.Context) (InboundGroupSessionCounts, error) {
	sessions, err := s.GetInboundGroupSessions(ctx)
	if err != nil {
		return InboundGroupSessionCounts{}, err
	}
	counts := InboundGroupSessionCounts{Total: len(sessions)}
	for _, sess := range sessions {
		if sess.BackedUp {
			counts.BackedUp++
		}
	}
	return counts, nil
}

// InboundGroupSessionsForBackup returns up to limit sessions that are not
// yet backed up.
func (s *Store) InboundGroupSessionsForBackup(ctx context.Context, limit int) ([]*InboundGroupSession, error) {
	sessions, err := s.GetInboundGroupSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*InboundGroupSession, 0, limit)
	for _, sess := range sessions {
		if len(out) >= limit {
			break
		}
		if !sess.BackedUp {
			out = append(out, sess)
		}
	}
	return out, nil
}

// ResetBackupState clears the backed-up flag on every inbound group
// session inside one transaction: it reads every row, flips the flag in
// memory, and re-upserts each before committing, so a reader never
// observes a partially-reset backup set.
func (s *Store) ResetBackupState(ctx context.Context) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapBackend(err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	sessions, err := s.streamInboundGroupSessions(ctx, tx, cipher)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		sess.BackedUp = false
		if err := s.saveInboundGroupSession(ctx, tx, cipher, *sess); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapBackend(err)
	}
	for _, sess := range sessions {
		s.groupSessions.Set(groupSessionCacheKey(sess.RoomID, sess.SenderKey, sess.SessionID), sess)
	}
	return nil
}

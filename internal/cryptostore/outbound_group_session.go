package cryptostore

import (
	"context"

	"matrix-cryptostore/internal/envelope"
)

const tagOGSRoom = "ogs_room"

type outboundGroupSessionRow struct {
	RoomID       string `json:"room_id"`
	Pickle       []byte `json:"pickle"`
	MessageCount int    `json:"message_count"`
	CreatedAt    int64  `json:"created_at"`
	LastUsed     int64  `json:"last_used"`
}

// SaveOutboundGroupSession upserts the single outbound group session for
// its room, overwriting unconditionally per the resolved open question —
// ratchet continuity across restarts for the same room is not preserved.
func (s *Store) SaveOutboundGroupSession(ctx context.Context, session OutboundGroupSession) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	return s.saveOutboundGroupSession(ctx, s.db, cipher, session)
}

func (s *Store) saveOutboundGroupSession(ctx context.Context, exec dbExecer, cipher envelope.Cipher, session OutboundGroupSession) error {
	roomBlind := cipher.BlindKey(tagOGSRoom, []byte(session.RoomID))
	encoded, err := cipher.EncodeValue(outboundGroupSessionRow{
		RoomID:       session.RoomID,
		Pickle:       session.Pickle,
		MessageCount: session.MessageCount,
		CreatedAt:    session.CreatedAt.UnixMilli(),
		LastUsed:     session.LastUsed.UnixMilli(),
	})
	if err != nil {
		return wrapEnvelope(err)
	}
	if _, err := exec.ExecContext(ctx, s.queries.OutboundGroupSessionStore(), roomBlind, encoded); err != nil {
		return wrapBackend(err)
	}
	return nil
}

// GetOutboundGroupSession returns the live outbound session for roomID, or
// nil if none exists, reconstituted against the current AccountInfo.
func (s *Store) GetOutboundGroupSession(ctx context.Context, roomID string) (*OutboundGroupSession, error) {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return nil, err
	}
	if _, err := s.CurrentAccountInfo(); err != nil {
		return nil, err
	}

	roomBlind := cipher.BlindKey(tagOGSRoom, []byte(roomID))
	var encoded []byte
	err = s.db.QueryRowContext(ctx, s.queries.OutboundGroupSessionLoad(), roomBlind).Scan(&encoded)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrapBackend(err)
	}
	var row outboundGroupSessionRow
	if err := cipher.DecodeValue(encoded, &row); err != nil {
		return nil, wrapEnvelope(err)
	}
	return &OutboundGroupSession{
		RoomID:       row.RoomID,
		Pickle:       row.Pickle,
		MessageCount: row.MessageCount,
		CreatedAt:    millisToTime(row.CreatedAt),
		LastUsed:     millisToTime(row.LastUsed),
	}, nil
}

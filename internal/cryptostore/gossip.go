package cryptostore

import (
	"context"

	"matrix-cryptostore/internal/envelope"
)

const (
	tagGossipRequestID = "gossip_request_id"
	tagGossipInfoKey   = "gossip_info_key"
)

type gossipRequestRow struct {
	RequestID string     `json:"request_id"`
	Info      SecretInfo `json:"info"`
	SentOut   bool       `json:"sent_out"`
	Pickle    []byte     `json:"pickle"`
}

// SaveGossipRequest upserts request on its request id, replacing any
// earlier row that shares it.
func (s *Store) SaveGossipRequest(ctx context.Context, request GossipRequest) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	return s.saveGossipRequest(ctx, s.db, cipher, request)
}

func (s *Store) saveGossipRequest(ctx context.Context, exec dbExecer, cipher envelope.Cipher, request GossipRequest) error {
	idBlind := cipher.BlindKey(tagGossipRequestID, []byte(request.RequestID))
	infoBlind := cipher.BlindKey(tagGossipInfoKey, []byte(request.Info.AsKey()))
	encoded, err := cipher.EncodeValue(gossipRequestRow{
		RequestID: request.RequestID,
		Info:      request.Info,
		SentOut:   request.SentOut,
		Pickle:    request.Pickle,
	})
	if err != nil {
		return wrapEnvelope(err)
	}
	_, err = exec.ExecContext(ctx, s.queries.GossipRequestStore(), idBlind, infoBlind, request.SentOut, encoded)
	if err != nil {
		return wrapBackend(err)
	}
	if request.SentOut {
		s.metrics.GossipRequestsSent.Add(1)
	} else {
		s.metrics.GossipRequestsPending.Add(1)
	}
	return nil
}

// GetGossipRequestByID returns the request with requestID, or nil if none
// exists.
func (s *Store) GetGossipRequestByID(ctx context.Context, requestID string) (*GossipRequest, error) {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return nil, err
	}
	idBlind := cipher.BlindKey(tagGossipRequestID, []byte(requestID))
	var encoded []byte
	err = s.db.QueryRowContext(ctx, s.queries.GossipRequestFetch(), idBlind).Scan(&encoded)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrapBackend(err)
	}
	return decodeGossipRequestRow(cipher, encoded)
}

// GetGossipRequestByInfo returns one request matching info, or nil if none
// exists. When several requests share the same info, it returns the one
// with the greatest blinded request id; save order is not recorded, so the
// most recently saved request is not necessarily the one returned.
func (s *Store) GetGossipRequestByInfo(ctx context.Context, info SecretInfo) (*GossipRequest, error) {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return nil, err
	}
	infoBlind := cipher.BlindKey(tagGossipInfoKey, []byte(info.AsKey()))
	var encoded []byte
	err = s.db.QueryRowContext(ctx, s.queries.GossipRequestInfoFetch(), infoBlind).Scan(&encoded)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrapBackend(err)
	}
	return decodeGossipRequestRow(cipher, encoded)
}

// UnsentGossipRequests returns every request that has not yet been sent
// out (P9).
func (s *Store) UnsentGossipRequests(ctx context.Context) ([]*GossipRequest, error) {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.queries.GossipRequestsBySentState(), false)
	if err != nil {
		return nil, wrapBackend(err)
	}
	defer rows.Close()

	var out []*GossipRequest
	for rows.Next() {
		var encoded []byte
		if err := rows.Scan(&encoded); err != nil {
			return nil, wrapBackend(err)
		}
		req, err := decodeGossipRequestRow(cipher, encoded)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapBackend(err)
	}
	return out, nil
}

// DeleteGossipRequest removes request requestID.
func (s *Store) DeleteGossipRequest(ctx context.Context, requestID string) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	idBlind := cipher.BlindKey(tagGossipRequestID, []byte(requestID))
	if _, err := s.db.ExecContext(ctx, s.queries.GossipRequestDelete(), idBlind); err != nil {
		return wrapBackend(err)
	}
	return nil
}

func decodeGossipRequestRow(cipher envelope.Cipher, encoded []byte) (*GossipRequest, error) {
	var row gossipRequestRow
	if err := cipher.DecodeValue(encoded, &row); err != nil {
		return nil, wrapEnvelope(err)
	}
	return &GossipRequest{
		RequestID: row.RequestID,
		Info:      row.Info,
		SentOut:   row.SentOut,
		Pickle:    row.Pickle,
	}, nil
}

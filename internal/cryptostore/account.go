package cryptostore

import (
	"context"
	"database/sql"

	"matrix-cryptostore/internal/envelope"
)

const kvTagAccount = "e2e_account"

// accountRow is the JSON shape persisted under kvTagAccount. UserID/
// DeviceID/IdentityKeys are stored alongside the pickle (rather than
// derived from it) because this store never interprets pickle bytes.
type accountRow struct {
	UserID       string       `json:"user_id"`
	DeviceID     string       `json:"device_id"`
	IdentityKeys IdentityKeys `json:"identity_keys"`
	Pickle       []byte       `json:"pickle"`
}

// LoadAccount returns the singleton Account, or nil if none has been
// saved yet. On a hit it installs AccountInfo (I4) before returning.
func (s *Store) LoadAccount(ctx context.Context) (*Account, error) {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return nil, err
	}
	acc, err := s.loadAccount(ctx, s.db, cipher)
	if err != nil {
		return nil, err
	}
	if acc != nil {
		s.accountInfo.set(AccountInfo{UserID: acc.UserID, DeviceID: acc.DeviceID, IdentityKeys: acc.IdentityKeys})
	}
	return acc, nil
}

func (s *Store) loadAccount(ctx context.Context, exec dbExecer, cipher envelope.Cipher) (*Account, error) {
	var raw []byte
	err := exec.QueryRowContext(ctx, s.queries.KVFetch(), kvTagAccount).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapBackend(err)
	}
	var row accountRow
	if err := cipher.DecodeValue(raw, &row); err != nil {
		s.metrics.EnvelopeDecodeErrors.Add(1)
		return nil, wrapEnvelope(err)
	}
	s.metrics.EnvelopeDecodes.Add(1)
	return &Account{
		UserID:       row.UserID,
		DeviceID:     row.DeviceID,
		IdentityKeys: row.IdentityKeys,
		Pickle:       row.Pickle,
	}, nil
}

// SaveAccount persists acc as the singleton account and updates
// AccountInfo before the write so any dependent reconstruction issued
// concurrently never observes a stale value (I4).
func (s *Store) SaveAccount(ctx context.Context, acc Account) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	s.accountInfo.set(AccountInfo{UserID: acc.UserID, DeviceID: acc.DeviceID, IdentityKeys: acc.IdentityKeys})
	return s.saveAccount(ctx, s.db, cipher, acc)
}

func (s *Store) saveAccount(ctx context.Context, exec dbExecer, cipher envelope.Cipher, acc Account) error {
	encoded, err := cipher.EncodeValue(accountRow{
		UserID:       acc.UserID,
		DeviceID:     acc.DeviceID,
		IdentityKeys: acc.IdentityKeys,
		Pickle:       acc.Pickle,
	})
	if err != nil {
		return wrapEnvelope(err)
	}
	s.metrics.EnvelopeEncodes.Add(1)
	if _, err := exec.ExecContext(ctx, s.queries.KVUpsert(), kvTagAccount, encoded); err != nil {
		return wrapBackend(err)
	}
	return nil
}

// CurrentAccountInfo returns the AccountInfo installed by the last
// LoadAccount/SaveAccount call, or ErrMissingAccountInfo if none has run
// yet this process.
func (s *Store) CurrentAccountInfo() (AccountInfo, error) {
	info, ok := s.accountInfo.get()
	if !ok {
		return AccountInfo{}, ErrMissingAccountInfo
	}
	return *info, nil
}

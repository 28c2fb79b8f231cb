package cryptostore

import (
	"context"
	"database/sql"
	"time"

	"matrix-cryptostore/internal/envelope"
)

// DeviceRef identifies a device for deletion within a Changes batch.
type DeviceRef struct {
	UserID   string
	DeviceID string
}

// Changes is a heterogeneous batch of crypto-store mutations, applied
// atomically by SaveChanges. It mixes optional singletons with
// independently iterable collections; a nil/empty field is simply
// skipped.
type Changes struct {
	Account         *Account
	PrivateIdentity *PrivateCrossSigningIdentity
	BackupVersion   *string
	RecoveryKey     []byte

	Sessions              []Session
	MessageHashes         []OlmMessageHash
	InboundGroupSessions  []InboundGroupSession
	OutboundGroupSessions []OutboundGroupSession
	KeyRequests           []GossipRequest

	Identities struct {
		New     []ReadOnlyUserIdentity
		Changed []ReadOnlyUserIdentity
	}

	Devices struct {
		New     []ReadOnlyDevice
		Changed []ReadOnlyDevice
		Deleted []DeviceRef
	}
}

// SaveChanges applies a Changes batch inside a single transaction in the
// fixed order: account, private identity, backup version, recovery key,
// sessions, message hashes, inbound group sessions, outbound group
// sessions, key requests, identities (changed then new), devices (changed
// then new), then device deletions. Caches are refreshed only after the
// transaction commits, so a rolled-back batch never leaves a cache
// pointing at an unpersisted row.
func (s *Store) SaveChanges(ctx context.Context, changes Changes) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapBackend(err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if err := s.applyChanges(ctx, tx, cipher, changes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapBackend(err)
	}
	s.metrics.RecordChangeSetLatency(time.Since(start))

	s.refreshCachesAfterChanges(changes)
	return nil
}

// applyChanges runs every step of a Changes batch against tx in the
// fixed documented order. SaveChanges owns the transaction and is its
// only caller.
func (s *Store) applyChanges(ctx context.Context, tx *sql.Tx, cipher envelope.Cipher, changes Changes) error {
	if changes.Account != nil {
		if err := s.saveAccount(ctx, tx, cipher, *changes.Account); err != nil {
			return err
		}
	}
	if changes.PrivateIdentity != nil {
		if err := s.savePrivateIdentity(ctx, tx, cipher, *changes.PrivateIdentity); err != nil {
			return err
		}
	}
	if changes.BackupVersion != nil {
		if err := s.storeBackupVersion(ctx, tx, cipher, *changes.BackupVersion); err != nil {
			return err
		}
	}
	if changes.RecoveryKey != nil {
		if err := s.storeRecoveryKey(ctx, tx, cipher, changes.RecoveryKey); err != nil {
			return err
		}
	}
	for _, session := range changes.Sessions {
		if err := s.saveSession(ctx, tx, cipher, session); err != nil {
			return err
		}
	}
	for _, hash := range changes.MessageHashes {
		if err := s.saveMessageHash(ctx, tx, hash); err != nil {
			return err
		}
	}
	for _, igs := range changes.InboundGroupSessions {
		if err := s.saveInboundGroupSession(ctx, tx, cipher, igs); err != nil {
			return err
		}
	}
	for _, ogs := range changes.OutboundGroupSessions {
		if err := s.saveOutboundGroupSession(ctx, tx, cipher, ogs); err != nil {
			return err
		}
	}
	for _, req := range changes.KeyRequests {
		if err := s.saveGossipRequest(ctx, tx, cipher, req); err != nil {
			return err
		}
	}
	for _, identity := range changes.Identities.Changed {
		if err := s.saveUserIdentity(ctx, tx, cipher, identity); err != nil {
			return err
		}
	}
	for _, identity := range changes.Identities.New {
		if err := s.saveUserIdentity(ctx, tx, cipher, identity); err != nil {
			return err
		}
	}
	for _, device := range changes.Devices.Changed {
		if err := s.saveDevice(ctx, tx, cipher, device); err != nil {
			return err
		}
	}
	for _, device := range changes.Devices.New {
		if err := s.saveDevice(ctx, tx, cipher, device); err != nil {
			return err
		}
	}
	for _, ref := range changes.Devices.Deleted {
		if err := s.deleteDevice(ctx, tx, cipher, ref.UserID, ref.DeviceID); err != nil {
			return err
		}
	}
	return nil
}

// refreshCachesAfterChanges updates every in-memory cache to reflect a
// batch that has just committed successfully.
func (s *Store) refreshCachesAfterChanges(changes Changes) {
	if changes.Account != nil {
		s.accountInfo.set(AccountInfo{
			UserID:       changes.Account.UserID,
			DeviceID:     changes.Account.DeviceID,
			IdentityKeys: changes.Account.IdentityKeys,
		})
	}
	for i := range changes.Sessions {
		session := changes.Sessions[i]
		list := s.sessions.getOrCreate(session.SenderKey)
		list.Lock()
		replaced := false
		for j, existing := range list.Sessions() {
			if existing.SessionID == session.SessionID {
				list.sessions[j] = &session
				replaced = true
				break
			}
		}
		if !replaced {
			list.Append(&session)
		}
		list.Unlock()
	}
	for i := range changes.InboundGroupSessions {
		igs := changes.InboundGroupSessions[i]
		s.groupSessions.Set(groupSessionCacheKey(igs.RoomID, igs.SenderKey, igs.SessionID), &igs)
	}
	for i := range changes.Devices.Changed {
		s.devices.set(&changes.Devices.Changed[i])
	}
	for i := range changes.Devices.New {
		s.devices.set(&changes.Devices.New[i])
	}
	for _, ref := range changes.Devices.Deleted {
		s.devices.delete(ref.UserID, ref.DeviceID)
	}
}

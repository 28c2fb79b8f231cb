package cryptostore

import (
	"context"

	"matrix-cryptostore/internal/envelope"
)

const (
	kvTagBackupVersion = "backup_version"
	kvTagRecoveryKey   = "recovery_key"
)

type backupVersionRow struct {
	Version string `json:"version"`
}

type recoveryKeyRow struct {
	Key []byte `json:"key"`
}

// StoreBackupVersion records the server-side backup version this device
// last backed up against.
func (s *Store) StoreBackupVersion(ctx context.Context, version string) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	return s.storeBackupVersion(ctx, s.db, cipher, version)
}

func (s *Store) storeBackupVersion(ctx context.Context, exec dbExecer, cipher envelope.Cipher, version string) error {
	encoded, err := cipher.EncodeValue(backupVersionRow{Version: version})
	if err != nil {
		return wrapEnvelope(err)
	}
	if _, err := exec.ExecContext(ctx, s.queries.KVUpsert(), kvTagBackupVersion, encoded); err != nil {
		return wrapBackend(err)
	}
	return nil
}

// StoreRecoveryKey records the decrypted backup recovery key.
func (s *Store) StoreRecoveryKey(ctx context.Context, key []byte) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	return s.storeRecoveryKey(ctx, s.db, cipher, key)
}

func (s *Store) storeRecoveryKey(ctx context.Context, exec dbExecer, cipher envelope.Cipher, key []byte) error {
	encoded, err := cipher.EncodeValue(recoveryKeyRow{Key: key})
	if err != nil {
		return wrapEnvelope(err)
	}
	if _, err := exec.ExecContext(ctx, s.queries.KVUpsert(), kvTagRecoveryKey, encoded); err != nil {
		return wrapBackend(err)
	}
	return nil
}

// LoadBackupKeys returns whichever of the backup version and recovery key
// have been stored; either half may be nil/absent.
func (s *Store) LoadBackupKeys(ctx context.Context) (BackupKeys, error) {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return BackupKeys{}, err
	}

	var keys BackupKeys

	versionEncoded, err := s.kvFetch(ctx, kvTagBackupVersion)
	if err != nil {
		return BackupKeys{}, err
	}
	if versionEncoded != nil {
		var row backupVersionRow
		if err := cipher.DecodeValue(versionEncoded, &row); err != nil {
			return BackupKeys{}, wrapEnvelope(err)
		}
		keys.BackupVersion = &row.Version
	}

	keyEncoded, err := s.kvFetch(ctx, kvTagRecoveryKey)
	if err != nil {
		return BackupKeys{}, err
	}
	if keyEncoded != nil {
		var row recoveryKeyRow
		if err := cipher.DecodeValue(keyEncoded, &row); err != nil {
			return BackupKeys{}, wrapEnvelope(err)
		}
		keys.RecoveryKey = row.Key
	}

	return keys, nil
}

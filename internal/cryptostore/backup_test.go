package cryptostore

import "testing"

func TestBackup_LoadBeforeAnySave_BothHalvesAbsent(t *testing.T) {
	store := newTestStore(t)
	keys, err := store.LoadBackupKeys(t.Context())
	if err != nil {
		t.Fatalf("LoadBackupKeys: %v", err)
	}
	if keys.BackupVersion != nil {
		t.Errorf("expected nil BackupVersion, got %v", *keys.BackupVersion)
	}
	if keys.RecoveryKey != nil {
		t.Errorf("expected nil RecoveryKey, got %v", keys.RecoveryKey)
	}
}

func TestBackup_StoreVersionOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	if err := store.StoreBackupVersion(ctx, "v1"); err != nil {
		t.Fatalf("StoreBackupVersion: %v", err)
	}
	keys, err := store.LoadBackupKeys(ctx)
	if err != nil {
		t.Fatalf("LoadBackupKeys: %v", err)
	}
	if keys.BackupVersion == nil || *keys.BackupVersion != "v1" {
		t.Errorf("expected BackupVersion v1, got %v", keys.BackupVersion)
	}
	if keys.RecoveryKey != nil {
		t.Errorf("expected RecoveryKey still absent, got %v", keys.RecoveryKey)
	}
}

func TestBackup_StoreBothHalves(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	if err := store.StoreBackupVersion(ctx, "v2"); err != nil {
		t.Fatalf("StoreBackupVersion: %v", err)
	}
	recoveryKey := []byte("recovery-key-bytes")
	if err := store.StoreRecoveryKey(ctx, recoveryKey); err != nil {
		t.Fatalf("StoreRecoveryKey: %v", err)
	}

	keys, err := store.LoadBackupKeys(ctx)
	if err != nil {
		t.Fatalf("LoadBackupKeys: %v", err)
	}
	if keys.BackupVersion == nil || *keys.BackupVersion != "v2" {
		t.Errorf("expected BackupVersion v2, got %v", keys.BackupVersion)
	}
	if string(keys.RecoveryKey) != string(recoveryKey) {
		t.Errorf("recovery key mismatch: got %q, want %q", keys.RecoveryKey, recoveryKey)
	}
}

package cryptostore

import "testing"

func TestAccount_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	acc := Account{
		UserID:       "@alice:example.org",
		DeviceID:     "DEVICEID",
		IdentityKeys: IdentityKeys{Ed25519: "ed25519key", Curve25519: "curve25519key"},
		Pickle:       []byte("opaque-pickle-bytes"),
	}
	if err := store.SaveAccount(ctx, acc); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}

	loaded, err := store.LoadAccount(ctx)
	if err != nil {
		t.Fatalf("LoadAccount: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadAccount returned nil after save")
	}
	if loaded.UserID != acc.UserID || loaded.DeviceID != acc.DeviceID {
		t.Errorf("account mismatch: got %+v, want %+v", loaded, acc)
	}
	if loaded.IdentityKeys != acc.IdentityKeys {
		t.Errorf("identity keys mismatch: got %+v, want %+v", loaded.IdentityKeys, acc.IdentityKeys)
	}
	if string(loaded.Pickle) != string(acc.Pickle) {
		t.Errorf("pickle mismatch: got %q, want %q", loaded.Pickle, acc.Pickle)
	}
}

func TestAccount_LoadBeforeSave_ReturnsNil(t *testing.T) {
	store := newTestStore(t)
	loaded, err := store.LoadAccount(t.Context())
	if err != nil {
		t.Fatalf("LoadAccount: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil account, got %+v", loaded)
	}
}

func TestAccount_SaveInstallsAccountInfo(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.CurrentAccountInfo(); err == nil {
		t.Fatal("expected ErrMissingAccountInfo before any save/load")
	}

	acc := Account{UserID: "@bob:example.org", DeviceID: "BOBDEVICE"}
	if err := store.SaveAccount(t.Context(), acc); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}

	info, err := store.CurrentAccountInfo()
	if err != nil {
		t.Fatalf("CurrentAccountInfo: %v", err)
	}
	if info.UserID != acc.UserID || info.DeviceID != acc.DeviceID {
		t.Errorf("AccountInfo mismatch: got %+v", info)
	}
}

func TestAccount_RepositoryCallsFailWhenLocked(t *testing.T) {
	db := newTestStoreRaw(t)
	if _, err := db.LoadAccount(t.Context()); err != ErrLocked {
		t.Errorf("expected ErrLocked, got %v", err)
	}
}

func TestAccount_EncryptedUnlock_WrongPassphraseFails(t *testing.T) {
	store := newEncryptedTestStore(t, "correct horse battery staple")

	acc := Account{UserID: "@carol:example.org", DeviceID: "CAROLDEVICE"}
	if err := store.SaveAccount(t.Context(), acc); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}

	loaded, err := store.LoadAccount(t.Context())
	if err != nil || loaded == nil {
		t.Fatalf("LoadAccount with correct passphrase: %v", err)
	}
	if loaded.UserID != acc.UserID {
		t.Errorf("account mismatch: got %+v", loaded)
	}

	// Re-unlocking the same store (same salt/canary already persisted)
	// with the wrong passphrase must fail the canary check rather than
	// silently installing a cipher that would decode garbage.
	if err := store.UnlockWithPassphrase(t.Context(), "wrong passphrase"); err == nil {
		t.Fatal("expected wrong-passphrase unlock to fail")
	}
}

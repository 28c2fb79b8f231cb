package cryptostore

import "testing"

func TestUserIdentity_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	identity := ReadOnlyUserIdentity{UserID: "@alice:example.org", Pickle: []byte("cross-signing-pickle")}
	if err := store.SaveUserIdentity(ctx, identity); err != nil {
		t.Fatalf("SaveUserIdentity: %v", err)
	}

	got, err := store.GetUserIdentity(ctx, identity.UserID)
	if err != nil {
		t.Fatalf("GetUserIdentity: %v", err)
	}
	if got == nil {
		t.Fatal("expected identity, got nil")
	}
	if string(got.Pickle) != string(identity.Pickle) {
		t.Errorf("pickle mismatch: got %q, want %q", got.Pickle, identity.Pickle)
	}
}

func TestUserIdentity_GetMissing_ReturnsNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetUserIdentity(t.Context(), "@nobody:example.org")
	if err != nil {
		t.Fatalf("GetUserIdentity: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestUserIdentity_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	user := "@bob:example.org"

	if err := store.SaveUserIdentity(ctx, ReadOnlyUserIdentity{UserID: user, Pickle: []byte("v1")}); err != nil {
		t.Fatalf("save v1: %v", err)
	}
	if err := store.SaveUserIdentity(ctx, ReadOnlyUserIdentity{UserID: user, Pickle: []byte("v2")}); err != nil {
		t.Fatalf("save v2: %v", err)
	}

	got, err := store.GetUserIdentity(ctx, user)
	if err != nil {
		t.Fatalf("GetUserIdentity: %v", err)
	}
	if string(got.Pickle) != "v2" {
		t.Errorf("expected overwritten pickle v2, got %q", got.Pickle)
	}
}

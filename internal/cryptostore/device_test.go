package cryptostore

import "testing"

func TestDevice_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	dev := ReadOnlyDevice{
		UserID:       "@alice:example.org",
		DeviceID:     "DEVICE1",
		IdentityKeys: IdentityKeys{Ed25519: "ed", Curve25519: "curve"},
		Trust:        1,
	}
	if err := store.SaveDevice(ctx, dev); err != nil {
		t.Fatalf("SaveDevice: %v", err)
	}

	got, err := store.GetDevice(ctx, dev.UserID, dev.DeviceID)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got == nil {
		t.Fatal("expected device, got nil")
	}
	if got.Trust != 1 || got.IdentityKeys != dev.IdentityKeys {
		t.Errorf("device mismatch: got %+v", got)
	}
}

func TestDevice_GetMissing_ReturnsNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetDevice(t.Context(), "@nobody:example.org", "NODEVICE")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestDevice_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	dev := ReadOnlyDevice{UserID: "@bob:example.org", DeviceID: "BOBDEVICE"}
	if err := store.SaveDevice(ctx, dev); err != nil {
		t.Fatalf("SaveDevice: %v", err)
	}
	if err := store.DeleteDevice(ctx, dev.UserID, dev.DeviceID); err != nil {
		t.Fatalf("DeleteDevice: %v", err)
	}
	got, err := store.GetDevice(ctx, dev.UserID, dev.DeviceID)
	if err != nil {
		t.Fatalf("GetDevice after delete: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestDevice_GetUserDevices(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	user := "@carol:example.org"

	for _, id := range []string{"D1", "D2", "D3"} {
		if err := store.SaveDevice(ctx, ReadOnlyDevice{UserID: user, DeviceID: id}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	// A device for a different user must not appear.
	if err := store.SaveDevice(ctx, ReadOnlyDevice{UserID: "@dave:example.org", DeviceID: "D1"}); err != nil {
		t.Fatalf("save other user device: %v", err)
	}

	devices, err := store.GetUserDevices(ctx, user)
	if err != nil {
		t.Fatalf("GetUserDevices: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("expected 3 devices for %s, got %d", user, len(devices))
	}
	for _, id := range []string{"D1", "D2", "D3"} {
		if _, ok := devices[id]; !ok {
			t.Errorf("missing device %s", id)
		}
	}
}

func TestDevice_CacheHitAvoidsStaleMiss(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	dev := ReadOnlyDevice{UserID: "@erin:example.org", DeviceID: "ERINDEVICE", Trust: 2}
	if err := store.SaveDevice(ctx, dev); err != nil {
		t.Fatalf("SaveDevice: %v", err)
	}
	first, err := store.GetDevice(ctx, dev.UserID, dev.DeviceID)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	second, err := store.GetDevice(ctx, dev.UserID, dev.DeviceID)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if first.Trust != second.Trust {
		t.Errorf("expected consistent cached trust value, got %d vs %d", first.Trust, second.Trust)
	}
}

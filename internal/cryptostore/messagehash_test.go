package cryptostore

import "testing"

func TestMessageHash_UnknownByDefault(t *testing.T) {
	store := newTestStore(t)
	known, err := store.IsMessageKnown(t.Context(), "sender-key", "hash-value")
	if err != nil {
		t.Fatalf("IsMessageKnown: %v", err)
	}
	if known {
		t.Error("expected unknown hash to report false")
	}
}

func TestMessageHash_SaveMakesItKnown(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	hash := OlmMessageHash{SenderKey: "sender-key", Hash: "hash-value"}

	if err := store.SaveMessageHash(ctx, hash); err != nil {
		t.Fatalf("SaveMessageHash: %v", err)
	}
	known, err := store.IsMessageKnown(ctx, hash.SenderKey, hash.Hash)
	if err != nil {
		t.Fatalf("IsMessageKnown: %v", err)
	}
	if !known {
		t.Error("expected hash to be known after SaveMessageHash")
	}
}

func TestMessageHash_DuplicateSaveIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	hash := OlmMessageHash{SenderKey: "sender-key", Hash: "hash-value"}

	if err := store.SaveMessageHash(ctx, hash); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SaveMessageHash(ctx, hash); err != nil {
		t.Fatalf("duplicate save should not error: %v", err)
	}
}

func TestMessageHash_DistinctSenderKeysDoNotCollide(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	if err := store.SaveMessageHash(ctx, OlmMessageHash{SenderKey: "key-a", Hash: "h"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	known, err := store.IsMessageKnown(ctx, "key-b", "h")
	if err != nil {
		t.Fatalf("IsMessageKnown: %v", err)
	}
	if known {
		t.Error("hash recorded under key-a must not be known under key-b")
	}
}

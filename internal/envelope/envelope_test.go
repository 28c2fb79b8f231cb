package envelope

import "testing"

func mustCipher(t *testing.T, passphrase string, salt []byte) Cipher {
	t.Helper()
	c, err := DeriveCipher(passphrase, salt)
	if err != nil {
		t.Fatalf("DeriveCipher: %v", err)
	}
	return c
}

func TestBlindKey_Deterministic(t *testing.T) {
	salt, _ := NewSalt()
	c := mustCipher(t, "pw", salt)

	a := c.BlindKey("session", []byte("sender-key"))
	b := c.BlindKey("session", []byte("sender-key"))
	if string(a) != string(b) {
		t.Fatalf("BlindKey not deterministic: %x != %x", a, b)
	}
}

func TestBlindKey_TagSeparation(t *testing.T) {
	salt, _ := NewSalt()
	c := mustCipher(t, "pw", salt)

	a := c.BlindKey("session", []byte("same-id"))
	b := c.BlindKey("device", []byte("same-id"))
	if string(a) == string(b) {
		t.Fatalf("expected distinct tags to diverge, both = %x", a)
	}
}

func TestEncodeDecodeValue_RoundTrip(t *testing.T) {
	salt, _ := NewSalt()
	c := mustCipher(t, "pw", salt)

	type payload struct {
		A string
		B int
	}
	want := payload{A: "hello", B: 42}

	enc, err := c.EncodeValue(want)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}

	var got payload
	if err := c.DecodeValue(enc, &got); err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestDecodeValue_TamperDetected(t *testing.T) {
	salt, _ := NewSalt()
	c := mustCipher(t, "pw", salt)

	enc, err := c.EncodeValue("sensitive")
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	enc[len(enc)-1] ^= 0xFF

	var got string
	if err := c.DecodeValue(enc, &got); err == nil {
		t.Fatal("expected tamper to be detected")
	}
}

func TestVerifyCanary_WrongPassphraseFails(t *testing.T) {
	salt, _ := NewSalt()
	canary, err := EncodeCanary("correct-horse", salt)
	if err != nil {
		t.Fatalf("EncodeCanary: %v", err)
	}

	if err := VerifyCanary("correct-horse", salt, canary); err != nil {
		t.Fatalf("VerifyCanary with correct passphrase: %v", err)
	}
	if err := VerifyCanary("wrong-passphrase", salt, canary); err == nil {
		t.Fatal("expected wrong passphrase to fail canary check")
	}
}

func TestPlaintextCipher_IdentityBlinding(t *testing.T) {
	got := Plaintext.BlindKey("anything", []byte("value"))
	if string(got) != "value" {
		t.Fatalf("expected identity blinding, got %q", got)
	}
}

func TestPlaintextCipher_JSONRoundTrip(t *testing.T) {
	enc, err := Plaintext.EncodeValue(map[string]int{"x": 1})
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	var got map[string]int
	if err := Plaintext.DecodeValue(enc, &got); err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if got["x"] != 1 {
		t.Fatalf("got %v", got)
	}
}

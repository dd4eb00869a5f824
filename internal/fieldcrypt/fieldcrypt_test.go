package fieldcrypt

import (
	"strings"
	"testing"

	"github.com/fernet/fernet-go"
)

func mustKey(t *testing.T) Key {
	t.Helper()
	k, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	return k
}

func TestRoundTrip(t *testing.T) {
	key := mustKey(t)
	inputs := []string{
		"Ode",
		"",
		"Verse one,\nverse \"two\"",
		"ünïcødé 🎵",
		strings.Repeat("la ", 2000),
	}

	for _, in := range inputs {
		token, err := Encrypt(key, in)
		if err != nil {
			t.Fatalf("Encrypt(%q) failed: %v", in, err)
		}
		if in != "" && strings.Contains(token, in) {
			t.Errorf("token leaks plaintext %q", in)
		}

		res := Decrypt(key, token)
		got, ok := res.Text()
		if !ok {
			t.Fatalf("Decrypt failed for %q: %s", in, res.Reason())
		}
		if got != in {
			t.Errorf("round trip mismatch: got %q, want %q", got, in)
		}
		if res.String() != in {
			t.Errorf("String() = %q, want %q", res.String(), in)
		}
	}
}

func TestEncryptIsRandomized(t *testing.T) {
	key := mustKey(t)
	a, _ := Encrypt(key, "same")
	b, _ := Encrypt(key, "same")
	if a == b {
		t.Error("two encryptions of the same value produced the same token")
	}
}

func TestKeyIsolation(t *testing.T) {
	keyA := mustKey(t)
	keyB := mustKey(t)

	token, err := Encrypt(keyA, "Ode")
	if err != nil {
		t.Fatal(err)
	}

	res := Decrypt(keyB, token)
	if res.OK() {
		t.Fatalf("decrypting with another artifact's key succeeded: %q", res.String())
	}
	if !strings.HasPrefix(res.String(), "[Decryption Failed: ") {
		t.Errorf("unexpected placeholder %q", res.String())
	}
	if text, _ := res.Text(); text != "" {
		t.Errorf("failed result exposes text %q", text)
	}
}

func TestDecryptNeverPanics(t *testing.T) {
	key := mustKey(t)
	valid, _ := Encrypt(key, "payload")
	raw, _ := encoding.DecodeString(valid)
	raw[len(raw)-1] ^= 0x01
	tampered := encoding.EncodeToString(raw)

	tests := []struct {
		name  string
		key   Key
		token string
	}{
		{name: "empty token", key: key, token: ""},
		{name: "not base64", key: key, token: "!!!not-base64!!!"},
		{name: "too short", key: key, token: "AAAA"},
		{name: "tampered", key: key, token: tampered},
		{name: "malformed key", key: Key("short"), token: valid},
		{name: "empty key", key: Key(""), token: valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Decrypt(tt.key, tt.token)
			if res.OK() {
				t.Fatal("expected failure")
			}
			if res.Reason() == "" {
				t.Error("expected a failure reason")
			}
		})
	}
}

func TestDecryptFernetTokens(t *testing.T) {
	// reference vector from the Fernet specification
	const (
		secret = "cw_0x689RpI-jtRR7oE8h_eQsKImvJapLeSbXpwF4e4="
		token  = "gAAAAAAdwJ6wAAECAwQFBgcICQoLDA0ODy021cpGVWKZ_eEwCGM4BLLF_5CV9dOPmrhuVUPgJobwOz7JcbmrR64jVmpU4IwqDA=="
	)
	if got := Decrypt(Key(secret), token); got.String() != "hello" {
		t.Errorf("expected hello, got %s", got)
	}
	if got := Decrypt(mustKey(t), token); got.OK() {
		t.Error("Fernet token opened with the wrong key")
	}

	// an artifact key doubles as a Fernet key
	key := mustKey(t)
	fk, err := fernet.DecodeKey(string(key))
	if err != nil {
		t.Fatalf("artifact key is not a Fernet key: %v", err)
	}
	for _, in := range []string{"Ode", ""} {
		tok, err := fernet.EncryptAndSign([]byte(in), fk)
		if err != nil {
			t.Fatal(err)
		}
		got, ok := Decrypt(key, string(tok)).Text()
		if !ok || got != in {
			t.Errorf("Decrypt(fernet %q) = %q, %v", in, got, ok)
		}
	}
}

func TestEncryptRejectsMalformedKey(t *testing.T) {
	if _, err := Encrypt(Key("bad"), "x"); err == nil {
		t.Error("expected error for malformed key")
	}
}

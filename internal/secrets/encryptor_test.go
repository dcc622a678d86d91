package secrets

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestEncryptRoundTrip(t *testing.T) {
	e, err := NewEncryptor("passphrase")
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	for _, plain := range []string{"", "s3cret", strings.Repeat("x", 16), "päss wörd"} {
		enc, err := e.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plain, err)
		}
		raw, _ := base64.StdEncoding.DecodeString(enc)
		if !strings.HasPrefix(string(raw), "Salted__") {
			t.Errorf("ciphertext for %q lacks the openssl salt header", plain)
		}
		got, err := e.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != plain {
			t.Errorf("round trip = %q, want %q", got, plain)
		}
	}
}

func TestEncryptSalts(t *testing.T) {
	e, _ := NewEncryptor("passphrase")
	a, _ := e.Encrypt("same")
	b, _ := e.Encrypt("same")
	if a == b {
		t.Error("two encryptions of the same value should differ")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	e, _ := NewEncryptor("right")
	enc, _ := e.Encrypt("a fairly long secret value")
	other, _ := NewEncryptor("wrong")
	if got, err := other.Decrypt(enc); err == nil && got == "a fairly long secret value" {
		t.Error("decrypting with the wrong passphrase should not recover the value")
	}
}

func TestEmptyPassphrase(t *testing.T) {
	if _, err := NewEncryptor(""); err == nil {
		t.Error("expected error for empty passphrase")
	}
}

package cipher

import (
	"bytes"
	"errors"
	"testing"
)

// Small parameters keep the Argon2id cost negligible in tests.
var testParams = Params{Time: 1, Memory: 8, Threads: 1}

func TestRoundTrip(t *testing.T) {
	plaintext := []byte("dear journal, today was quiet")

	blob, err := EncryptWithParams("correct horse", plaintext, testParams)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := Decrypt("correct horse", blob)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestWrongPassphrase(t *testing.T) {
	blob, err := EncryptWithParams("right", []byte("secret"), testParams)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt("wrong", blob); !errors.Is(err, ErrInvalidPassphrase) {
		t.Fatalf("expected ErrInvalidPassphrase, got %v", err)
	}
}

func TestTamperedBlobFails(t *testing.T) {
	blob, err := EncryptWithParams("p", []byte("content"), testParams)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Flip one byte of ciphertext.
	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := Decrypt("p", tampered); !errors.Is(err, ErrInvalidPassphrase) {
		t.Fatalf("tampered box: expected ErrInvalidPassphrase, got %v", err)
	}

	// Tamper with the header (Argon2 parameters are associated data).
	tampered = append([]byte(nil), blob...)
	tampered[5] ^= 0x01
	if _, err := Decrypt("p", tampered); !errors.Is(err, ErrInvalidPassphrase) {
		t.Fatalf("tampered header: expected ErrInvalidPassphrase, got %v", err)
	}
}

func TestGarbageInput(t *testing.T) {
	for _, blob := range [][]byte{nil, {}, []byte("short"), bytes.Repeat([]byte{0xff}, 200)} {
		if _, err := Decrypt("p", blob); !errors.Is(err, ErrInvalidPassphrase) {
			t.Fatalf("garbage blob %d bytes: expected ErrInvalidPassphrase, got %v", len(blob), err)
		}
	}
}

func TestEncryptProducesFreshSaltAndNonce(t *testing.T) {
	a, err := EncryptWithParams("p", []byte("same"), testParams)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := EncryptWithParams("p", []byte("same"), testParams)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestEmptyPlaintext(t *testing.T) {
	blob, err := EncryptWithParams("p", nil, testParams)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := Decrypt("p", blob)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty plaintext, got %q", got)
	}
}

// Package cipher seals and opens byte blobs with a passphrase. Keys are derived
// with Argon2id and content is protected by XChaCha20-Poly1305, so every blob is
// tamper-evident: decrypting with the wrong passphrase or a corrupted blob fails
// the AEAD check. Wrong key and corruption are intentionally indistinguishable.
package cipher

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidPassphrase is returned whenever a blob cannot be opened, whether the
// passphrase is wrong or the blob is damaged.
var ErrInvalidPassphrase = errors.New("cipher: invalid passphrase")

var magic = []byte("HVN1")

// Params defines the Argon2id tuning parameters stored alongside each blob.
type Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DefaultParams matches the interactive-login profile from the Argon2 RFC.
var DefaultParams = Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
}

const (
	saltLength = 16
	keyLength  = 32

	headerLength = 4 + 4 + 4 + 1 + saltLength + chacha20poly1305.NonceSizeX
)

// Encrypt seals plaintext under the passphrase using DefaultParams. The output
// is self-describing: magic, Argon2id parameters, salt, and nonce precede the
// AEAD box, so Decrypt needs nothing but the passphrase.
func Encrypt(passphrase string, plaintext []byte) ([]byte, error) {
	return EncryptWithParams(passphrase, plaintext, DefaultParams)
}

// EncryptWithParams seals plaintext with explicit Argon2id parameters.
func EncryptWithParams(passphrase string, plaintext []byte, params Params) ([]byte, error) {
	if params.Time == 0 {
		params.Time = DefaultParams.Time
	}
	if params.Memory == 0 {
		params.Memory = DefaultParams.Memory
	}
	if params.Threads == 0 {
		params.Threads = DefaultParams.Threads
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	key := argon2.IDKey([]byte(passphrase), salt, params.Time, params.Memory, params.Threads, keyLength)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}

	blob := make([]byte, 0, headerLength+len(plaintext)+aead.Overhead())
	blob = append(blob, magic...)
	blob = binary.BigEndian.AppendUint32(blob, params.Time)
	blob = binary.BigEndian.AppendUint32(blob, params.Memory)
	blob = append(blob, params.Threads)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)

	// The header is bound as associated data so parameter tampering also fails
	// authentication instead of just deriving a different key.
	header := blob[:headerLength]
	return aead.Seal(blob, nonce, plaintext, header), nil
}

// Decrypt opens a blob produced by Encrypt. Any failure to open, from a short
// or mangled header to an AEAD authentication error, yields ErrInvalidPassphrase.
func Decrypt(passphrase string, blob []byte) ([]byte, error) {
	if len(blob) < headerLength {
		return nil, ErrInvalidPassphrase
	}
	if string(blob[:4]) != string(magic) {
		return nil, ErrInvalidPassphrase
	}

	params := Params{
		Time:    binary.BigEndian.Uint32(blob[4:8]),
		Memory:  binary.BigEndian.Uint32(blob[8:12]),
		Threads: blob[12],
	}
	if params.Time == 0 || params.Memory == 0 || params.Threads == 0 {
		return nil, ErrInvalidPassphrase
	}

	salt := blob[13 : 13+saltLength]
	nonce := blob[13+saltLength : headerLength]
	box := blob[headerLength:]

	key := argon2.IDKey([]byte(passphrase), salt, params.Time, params.Memory, params.Threads, keyLength)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}

	plaintext, err := aead.Open(nil, nonce, box, blob[:headerLength])
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	return plaintext, nil
}

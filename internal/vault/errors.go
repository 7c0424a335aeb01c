package vault

import (
	"errors"

	"haven/internal/cipher"
)

// ErrInvalidPassphrase reports a decrypt failure. Wrong passphrase and corrupt
// ciphertext are indistinguishable on purpose.
var ErrInvalidPassphrase = cipher.ErrInvalidPassphrase

// ErrNotFound reports a missing entry.
var ErrNotFound = errors.New("vault: entry not found")

// ErrInvalidName reports an entry name the store refuses to touch.
var ErrInvalidName = errors.New("vault: invalid entry name")

package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"haven/internal/cipher"
	"haven/internal/logging"
)

const (
	sentinelName = ".sentinel.hvn"
	// The marker value only needs to decrypt cleanly; its content is irrelevant.
	sentinelMarker = "valid"
)

// Gate verifies the vault passphrase against a single sentinel blob. The first
// passphrase ever presented creates the sentinel and becomes the vault
// passphrase; afterwards every call re-verifies against it. Nothing about the
// passphrase is ever stored, only the sentinel ciphertext.
type Gate struct {
	dataDir string
	logger  logging.Logger

	mu sync.Mutex
}

// NewGate creates a gate rooted at dataDir.
func NewGate(dataDir string) (*Gate, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	return &Gate{
		dataDir: dataDir,
		logger:  logging.NewComponentLogger("VaultGate"),
	}, nil
}

// Verify checks the passphrase. When no sentinel exists yet it creates one
// under the given passphrase and returns created=true; that is the only path
// that can create the sentinel. A wrong passphrase (or a damaged sentinel)
// yields ErrInvalidPassphrase with no state change.
func (g *Gate) Verify(ctx context.Context, passphrase string) (created bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	path := filepath.Join(g.dataDir, sentinelName)
	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := g.createSentinel(path, passphrase); err != nil {
			return false, err
		}
		g.logger.Info("sentinel created, vault initialized")
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read sentinel: %w", err)
	}

	if _, err := cipher.Decrypt(passphrase, blob); err != nil {
		return false, ErrInvalidPassphrase
	}
	return false, nil
}

// createSentinel writes the sentinel atomically. A crash between writing the
// temp file and the rename leaves no sentinel at all, so the next Verify
// simply bootstraps again; a half-written sentinel can never exist.
func (g *Gate) createSentinel(path, passphrase string) error {
	blob, err := cipher.Encrypt(passphrase, []byte(sentinelMarker))
	if err != nil {
		return fmt.Errorf("encrypt sentinel: %w", err)
	}
	tmp, err := os.CreateTemp(g.dataDir, sentinelName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create sentinel temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write sentinel: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close sentinel: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("commit sentinel: %w", err)
	}
	return nil
}

package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"haven/internal/cipher"
	"haven/internal/logging"
)

const entrySuffix = ".hvn"

// EntryStore keeps one encrypted blob per entry name. Names are plaintext
// filenames; only content is secret. Every read and write takes the passphrase
// for that single call: decryption failing or succeeding is the entire
// authentication step, and nothing decrypted outlives the call.
type EntryStore struct {
	dataDir string
	logger  logging.Logger

	// Operations on the same name are serialized so a write can never race a
	// delete or interleave with another write on that entry. Different names
	// proceed concurrently.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewEntryStore creates a store rooted at dataDir.
func NewEntryStore(dataDir string) (*EntryStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	return &EntryStore{
		dataDir: dataDir,
		logger:  logging.NewComponentLogger("EntryStore"),
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

func (s *EntryStore) nameLock(name string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}

// validateName rejects names that would escape the data directory or collide
// with internal artifacts (the sentinel and temp files are dotfiles).
func validateName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\") || name != filepath.Base(name) {
		return ErrInvalidName
	}
	return nil
}

func (s *EntryStore) pathFor(name string) string {
	return filepath.Join(s.dataDir, name+entrySuffix)
}

// List returns all entry names, newest-first by name, each exactly once.
// Listing needs no passphrase: names are metadata, not content.
func (s *EntryStore) List(ctx context.Context) ([]string, error) {
	dirEntries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("read vault dir: %w", err)
	}
	names := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, entrySuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, entrySuffix))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Read decrypts the named entry. A missing entry is ErrNotFound; a decrypt
// failure is ErrInvalidPassphrase. The two are deliberately distinguishable.
func (s *EntryStore) Read(ctx context.Context, passphrase, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	blob, err := os.ReadFile(s.pathFor(name))
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read entry %s: %w", name, err)
	}
	plaintext, err := cipher.Decrypt(passphrase, blob)
	if err != nil {
		return "", ErrInvalidPassphrase
	}
	return string(plaintext), nil
}

// Write encrypts content and fully replaces the named entry. When the entry
// already exists the old blob must open under the same passphrase first, so a
// wrong passphrase can never orphan an existing entry behind a new key. The
// replacement is atomic: temp file then rename, never a truncated ciphertext.
func (s *EntryStore) Write(ctx context.Context, passphrase, name, content string) error {
	if err := validateName(name); err != nil {
		return err
	}
	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	path := s.pathFor(name)
	if existing, err := os.ReadFile(path); err == nil {
		if _, err := cipher.Decrypt(passphrase, existing); err != nil {
			return ErrInvalidPassphrase
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read entry %s: %w", name, err)
	}

	blob, err := cipher.Encrypt(passphrase, []byte(content))
	if err != nil {
		return fmt.Errorf("encrypt entry %s: %w", name, err)
	}
	if err := s.writeAtomic(path, blob); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	s.logger.Debug("entry written name=%s ciphertext_bytes=%d", name, len(blob))
	return nil
}

// Delete removes the named entry permanently. The blob must open under the
// supplied passphrase first; deleting an absent entry is a no-op success.
func (s *EntryStore) Delete(ctx context.Context, passphrase, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	path := s.pathFor(name)
	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read entry %s: %w", name, err)
	}
	if _, err := cipher.Decrypt(passphrase, blob); err != nil {
		return ErrInvalidPassphrase
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete entry %s: %w", name, err)
	}
	s.logger.Debug("entry deleted name=%s", name)
	return nil
}

func (s *EntryStore) writeAtomic(path string, blob []byte) error {
	tmp, err := os.CreateTemp(s.dataDir, ".entry.tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

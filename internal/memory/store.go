// Package memory persists the assistant's durable facts. Each memory is a
// Markdown file with YAML frontmatter, keyed by title: saving an existing title
// replaces it entirely. Memories are distilled facts, not journal content, and
// are stored in the clear so the assistant can load them without a passphrase.
package memory

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"haven/internal/logging"
)

// Memory is one title-keyed fact record.
type Memory struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// frontmatter is the YAML block written between --- delimiters.
type frontmatter struct {
	Title   string `yaml:"title"`
	Created string `yaml:"created"`
	Updated string `yaml:"updated"`
}

// Store is a file-backed memory store. Concurrent upserts to different titles
// proceed under the shared lock without corrupting one another; upserts to the
// same title resolve last-writer-wins.
type Store struct {
	dir    string
	logger logging.Logger
	mu     sync.RWMutex
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logging.NewComponentLogger("MemoryStore"),
	}, nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// fileFor maps a title to a stable filename. The slug keeps files browsable;
// the hash suffix keeps distinct titles from colliding on the same slug.
func (s *Store) fileFor(title string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if slug == "" {
		slug = "memory"
	}
	if len(slug) > 48 {
		slug = slug[:48]
	}
	sum := sha256.Sum256([]byte(title))
	return filepath.Join(s.dir, slug+"-"+hex.EncodeToString(sum[:4])+".md")
}

// Upsert writes the memory for title, replacing any previous content.
func (s *Store) Upsert(title, content string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("memory title must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.fileFor(title)
	now := time.Now().UTC()
	created := now
	if existing, err := s.parseFile(path); err == nil && !existing.CreatedAt.IsZero() {
		created = existing.CreatedAt
	}

	fm := frontmatter{
		Title:   title,
		Created: created.Format(time.RFC3339),
		Updated: now.Format(time.RFC3339),
	}
	fmBytes, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("marshal frontmatter: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("---\n")
	buf.Write(fmBytes)
	buf.WriteString("---\n")
	buf.WriteString(content)
	buf.WriteByte('\n')

	if err := s.writeAtomic(path, []byte(buf.String())); err != nil {
		return fmt.Errorf("write memory %q: %w", title, err)
	}
	s.logger.Debug("memory upserted title=%q", title)
	return nil
}

// Delete removes the memory for title. Deleting an absent title is a no-op
// success so callers can retry freely.
func (s *Store) Delete(title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.fileFor(strings.TrimSpace(title))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete memory %q: %w", title, err)
	}
	return nil
}

// List returns all memories sorted by title. Corrupt files are skipped.
func (s *Store) List() ([]Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read memory dir: %w", err)
	}

	memories := make([]Memory, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".md") {
			continue
		}
		m, err := s.parseFile(filepath.Join(s.dir, de.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable memory file %s: %v", de.Name(), err)
			continue
		}
		memories = append(memories, m)
	}
	sort.Slice(memories, func(i, j int) bool {
		return memories[i].Title < memories[j].Title
	})
	return memories, nil
}

// Get returns the memory for title, or ok=false when absent.
func (s *Store) Get(title string) (Memory, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := s.parseFile(s.fileFor(strings.TrimSpace(title)))
	if os.IsNotExist(err) {
		return Memory{}, false, nil
	}
	if err != nil {
		return Memory{}, false, err
	}
	return m, true, nil
}

func (s *Store) parseFile(path string) (Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return Memory{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var (
		inFrontmatter bool
		fmDone        bool
		fmLines       []string
		bodyLines     []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		if !fmDone && strings.TrimSpace(line) == "---" {
			if !inFrontmatter {
				inFrontmatter = true
				continue
			}
			inFrontmatter = false
			fmDone = true
			continue
		}
		if inFrontmatter {
			fmLines = append(fmLines, line)
		} else if fmDone {
			bodyLines = append(bodyLines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return Memory{}, err
	}

	var fm frontmatter
	if len(fmLines) > 0 {
		if err := yaml.Unmarshal([]byte(strings.Join(fmLines, "\n")), &fm); err != nil {
			return Memory{}, fmt.Errorf("parse frontmatter: %w", err)
		}
	}
	if fm.Title == "" {
		return Memory{}, fmt.Errorf("memory file %s has no title", filepath.Base(path))
	}

	created, _ := time.Parse(time.RFC3339, fm.Created)
	updated, _ := time.Parse(time.RFC3339, fm.Updated)

	return Memory{
		Title:     fm.Title,
		Content:   strings.TrimSpace(strings.Join(bodyLines, "\n")),
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func (s *Store) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".memory.tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
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

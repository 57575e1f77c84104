// Package baseline provides a persistent JSON store of acknowledged finding
// fingerprints. Findings present in the baseline are suppressed from reports.
package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/altantutar/pyguard/internal/types"
)

// Entry records one acknowledged finding.
type Entry struct {
	RuleID  string `json:"rule_id"`
	File    string `json:"file"`
	Snippet string `json:"snippet"`
	AddedAt string `json:"added_at"`
}

// Store persists fingerprints to a JSON file on disk.
type Store struct {
	mu      sync.RWMutex
	Entries map[string]Entry `json:"entries"`
	path    string
}

// New creates a new Store backed by the given file path.
func New(path string) *Store {
	return &Store{
		Entries: make(map[string]Entry),
		path:    path,
	}
}

// Fingerprint identifies a finding independently of its line number, so
// unrelated edits above it do not invalidate the baseline.
func Fingerprint(f types.Finding) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s", f.RuleID, f.FilePath, strings.TrimSpace(f.Snippet))
	return hex.EncodeToString(h.Sum(nil))
}

// Load reads the baseline from disk. A missing file leaves the store empty.
// Symlinks are rejected.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Lstat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("baseline file is a symlink (rejected): %s", s.path)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parsing baseline %s: %w", s.path, err)
	}
	if s.Entries == nil {
		s.Entries = make(map[string]Entry)
	}
	return nil
}

// Save writes the baseline, creating parent directories if needed.
// Symlinks are rejected.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if info, err := os.Lstat(s.path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("baseline file is a symlink (rejected): %s", s.path)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, append(data, '\n'), 0o644)
}

// Record replaces the store contents with the given findings.
func (s *Store) Record(findings []types.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC().Format(time.RFC3339)
	s.Entries = make(map[string]Entry, len(findings))
	for _, f := range findings {
		s.Entries[Fingerprint(f)] = Entry{
			RuleID:  f.RuleID,
			File:    f.FilePath,
			Snippet: strings.TrimSpace(f.Snippet),
			AddedAt: now,
		}
	}
}

// Contains reports whether the finding is acknowledged.
func (s *Store) Contains(f types.Finding) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.Entries[Fingerprint(f)]
	return ok
}

// Filter drops acknowledged findings and returns how many were dropped.
func (s *Store) Filter(findings []types.Finding) ([]types.Finding, int) {
	var kept []types.Finding
	suppressed := 0
	for _, f := range findings {
		if s.Contains(f) {
			suppressed++
			continue
		}
		kept = append(kept, f)
	}
	return kept, suppressed
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Entries)
}

// Path returns the file path of this store.
func (s *Store) Path() string {
	return s.path
}

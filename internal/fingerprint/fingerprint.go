// Package fingerprint implements the change gate that skips expensive
// downstream publication work when nothing observable changed since the
// last run. The fingerprint is a single opaque value over the whole
// reconciled event collection; publication content depends on the
// relative ordering and overlap of all events, so a per-event hash
// would not be sound.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Compute hashes the full serialized event list, including all derived
// fields. The input must be JSON-serializable.
func Compute(events any) (string, error) {
	data, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("fingerprint: serialize events: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Store persists the fingerprint of the last successful run as a flat
// blob. No history is kept.
type Store struct {
	path string
}

// NewStore uses the given file path for the persisted value.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the previous run's fingerprint, or "" when none exists.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("fingerprint: read %s: %w", s.path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save overwrites the stored fingerprint.
func (s *Store) Save(value string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("fingerprint: ensure dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(value+"\n"), 0o600); err != nil {
		return fmt.Errorf("fingerprint: write %s: %w", s.path, err)
	}
	return nil
}

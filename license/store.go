package license

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/adrg/xdg"
)

// ErrNoRecord means no license record has been persisted on this machine.
var ErrNoRecord = errors.New("no license record found")

const stateFileName = "quill/license.json"

// Store reads and writes the single license record file.
type Store struct {
	path string
}

// NewStore uses an explicit file path, mainly for tests.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStore places the record under the XDG state directory
// (~/.local/state/quill/license.json on most Linux systems).
func DefaultStore() (*Store, error) {
	path, err := xdg.StateFile(stateFileName)
	if err != nil {
		return nil, fmt.Errorf("resolving license state path: %w", err)
	}
	return NewStore(path), nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load() (*Record, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("reading license record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("parsing license record: %w", err)
	}
	return &rec, nil
}

// Save writes the record with owner-only permissions. Callers decide whether
// a failure is fatal; after a successful online validation it is not.
func (s *Store) Save(rec *Record) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, b, 0600); err != nil {
		return fmt.Errorf("writing license record: %w", err)
	}
	return nil
}

func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing license record: %w", err)
	}
	return nil
}

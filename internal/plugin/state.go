package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// StateStore persists per-plugin flags to a small JSON document so an
// operator's enable and disable choices survive host restarts. Writes go
// through a temp file and rename so a crash never leaves a torn file.
type StateStore struct {
	mu   sync.Mutex
	path string
	doc  []byte
}

// NewStateStore opens (or prepares to create) the state file at path.
func NewStateStore(path string) (*StateStore, error) {
	s := &StateStore{path: path, doc: []byte(`{}`)}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("state file %s: invalid JSON", path)
		}
		s.doc = data
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("state file %s: %w", path, err)
	}
	return s, nil
}

// SetEnabled records whether a plugin should be enabled on the next
// start and flushes the document to disk.
func (s *StateStore) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := sjson.SetBytes(s.doc, "plugins."+id+".enabled", enabled)
	if err != nil {
		return fmt.Errorf("state store: %w", err)
	}
	if err := s.flushLocked(doc); err != nil {
		return err
	}
	s.doc = doc
	return nil
}

// Enabled reports the saved flag for a plugin. The second return is
// false when the plugin has no saved entry.
func (s *StateStore) Enabled(id string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := gjson.GetBytes(s.doc, "plugins."+id+".enabled")
	if !v.Exists() {
		return false, false
	}
	return v.Bool(), true
}

// EnabledIDs returns every plugin id saved as enabled, sorted.
func (s *StateStore) EnabledIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	gjson.GetBytes(s.doc, "plugins").ForEach(func(key, value gjson.Result) bool {
		if value.Get("enabled").Bool() {
			ids = append(ids, key.String())
		}
		return true
	})
	sort.Strings(ids)
	return ids
}

func (s *StateStore) flushLocked(doc []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state store: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("state store: %w", err)
	}
	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("state store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("state store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("state store: %w", err)
	}
	return nil
}

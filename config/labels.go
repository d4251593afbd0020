package config

import (
	"encoding/json"
	"os"
	"sync"
)

// LabelSet maps a category name (sewing, idle, ...) to its display label
type LabelSet map[string]string

// LabelSetManager persists category label overrides per report kind.
// Some floors relabel categories, e.g. showing no-feeding as "Needle Break".
type LabelSetManager struct {
	configPath string
	mu         sync.RWMutex
	Sets       map[string]LabelSet `json:"sets"` // Map kind -> labels
}

// NewLabelSetManager creates a new manager
func NewLabelSetManager(path string) *LabelSetManager {
	return &LabelSetManager{
		configPath: path,
		Sets:       make(map[string]LabelSet),
	}
}

// Load reads the overrides from disk
func (m *LabelSetManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			m.Sets = make(map[string]LabelSet)
			return nil
		}
		return err
	}

	if len(data) == 0 {
		m.Sets = make(map[string]LabelSet)
		return nil
	}

	return json.Unmarshal(data, &m.Sets)
}

// Save replaces all overrides and writes them to disk
func (m *LabelSetManager) Save(sets map[string]LabelSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Sets = sets
	return m.saveInternal()
}

// saveInternal writes to disk (must hold lock)
func (m *LabelSetManager) saveInternal() error {
	data, err := json.MarshalIndent(m.Sets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the overrides for a kind
func (m *LabelSetManager) Get(kind string) (LabelSet, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	set, ok := m.Sets[kind]
	if !ok {
		return nil, false
	}
	out := make(LabelSet, len(set))
	for k, v := range set {
		out[k] = v
	}
	return out, true
}

// GetAll returns a copy of every override set
func (m *LabelSetManager) GetAll() map[string]LabelSet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make(map[string]LabelSet, len(m.Sets))
	for kind, set := range m.Sets {
		c := make(LabelSet, len(set))
		for k, v := range set {
			c[k] = v
		}
		all[kind] = c
	}
	return all
}

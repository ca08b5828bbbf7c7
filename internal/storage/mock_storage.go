package storage

import (
	"fmt"
	"sync"

	"github.com/eddiefleurent/pmcc_bot/internal/models"
)

// MockStorage is an in-memory Interface implementation for tests.
type MockStorage struct {
	mu     sync.RWMutex
	states map[string]*models.PMCCState

	// SetStateErr, when non-nil, is returned by SetState to simulate
	// persistence failures.
	SetStateErr error
	// SaveCount tracks how many times SetState or Save succeeded.
	SaveCount int
}

// Ensure MockStorage implements Interface
var _ Interface = (*MockStorage)(nil)

// NewMockStorage creates an empty in-memory store.
func NewMockStorage() *MockStorage {
	return &MockStorage{states: make(map[string]*models.PMCCState)}
}

// GetState returns a copy of the record for symbol, or a fresh empty record.
func (m *MockStorage) GetState(symbol string) (*models.PMCCState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[symbol]
	if !ok {
		return models.NewPMCCState(symbol), nil
	}
	cp := *state
	return &cp, nil
}

// SetState validates and stores a copy of the record.
func (m *MockStorage) SetState(state *models.PMCCState) error {
	if m.SetStateErr != nil {
		return m.SetStateErr
	}
	if state == nil {
		return fmt.Errorf("nil state")
	}
	if err := state.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *state
	m.states[state.Symbol] = &cp
	m.SaveCount++
	return nil
}

// Symbols lists stored symbols.
func (m *MockStorage) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	symbols := make([]string, 0, len(m.states))
	for symbol := range m.states {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Save is a no-op for the in-memory store.
func (m *MockStorage) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCount++
	return nil
}

// Load is a no-op for the in-memory store.
func (m *MockStorage) Load() error { return nil }

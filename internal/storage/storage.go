// Package storage persists PMCC position state between daily runs.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eddiefleurent/pmcc_bot/internal/models"
)

// ErrCorruptState is returned when the persisted state file cannot be
// parsed or fails invariant validation. The run must abort before placing
// any order: leg presence cannot be decided from corrupt state.
var ErrCorruptState = errors.New("corrupt state file")

// JSONStorage keeps one state record per underlying symbol in a single JSON
// file. Writes go through a temp file and rename so a crash mid-write never
// leaves a half-written record.
type JSONStorage struct {
	mu       sync.RWMutex
	filepath string
	data     *storageData
}

type storageData struct {
	States      map[string]*models.PMCCState `json:"states"`
	LastUpdated time.Time                    `json:"last_updated"`
}

// NewJSONStorage creates storage backed by path, loading existing data if
// the file exists.
func NewJSONStorage(path string) (*JSONStorage, error) {
	s := &JSONStorage{
		filepath: path,
		data:     &storageData{States: make(map[string]*models.PMCCState)},
	}

	if _, err := os.Stat(path); err == nil {
		if err := s.Load(); err != nil {
			return nil, fmt.Errorf("loading storage: %w", err)
		}
	}

	return s, nil
}

// Load reads and validates the state file. Any parse or invariant failure
// wraps ErrCorruptState.
func (s *JSONStorage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return err
	}

	var loaded storageData
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if loaded.States == nil {
		loaded.States = make(map[string]*models.PMCCState)
	}

	for symbol, state := range loaded.States {
		if state == nil {
			return fmt.Errorf("%w: nil record for %s", ErrCorruptState, symbol)
		}
		if state.Symbol == "" {
			state.Symbol = symbol
		}
		if state.Symbol != symbol {
			return fmt.Errorf("%w: record keyed %s claims symbol %s", ErrCorruptState, symbol, state.Symbol)
		}
		if err := state.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptState, err)
		}
	}

	s.data = &loaded
	return nil
}

// Save writes the state file atomically.
func (s *JSONStorage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *JSONStorage) saveLocked() error {
	s.data.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.filepath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}

	// Write to temp file first, then rename into place.
	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpFile, s.filepath)
}

// GetState returns a copy of the record for symbol, or a fresh empty record.
func (s *JSONStorage) GetState(symbol string) (*models.PMCCState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data.States[symbol]
	if !ok {
		return models.NewPMCCState(symbol), nil
	}

	// Copy so callers can't mutate stored state without going through SetState.
	cp := *state
	return &cp, nil
}

// SetState validates and persists the record.
func (s *JSONStorage) SetState(state *models.PMCCState) error {
	if state == nil {
		return fmt.Errorf("nil state")
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *state
	s.data.States[state.Symbol] = &cp
	return s.saveLocked()
}

// Symbols lists the symbols with a stored record, in no particular order.
func (s *JSONStorage) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.data.States))
	for symbol := range s.data.States {
		symbols = append(symbols, symbol)
	}
	return symbols
}

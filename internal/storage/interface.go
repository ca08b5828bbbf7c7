package storage

import (
	"github.com/eddiefleurent/pmcc_bot/internal/models"
)

// Interface defines the contract for PMCC position state persistence.
//
// Implementations must be safe for concurrent use - callers can assume all
// methods are goroutine-safe. The provided JSONStorage uses sync.RWMutex to
// serialize access.
type Interface interface {
	// GetState returns a copy of the state record for symbol, creating an
	// empty record if none exists yet.
	GetState(symbol string) (*models.PMCCState, error)

	// SetState validates and persists the state record for its symbol.
	SetState(state *models.PMCCState) error

	// Symbols lists the symbols with a stored state record.
	Symbols() []string

	// Data persistence
	Save() error
	Load() error
}

// NewStorage creates a new storage implementation (currently JSON-based).
func NewStorage(filepath string) (Interface, error) {
	return NewJSONStorage(filepath)
}

// Ensure JSONStorage implements Interface
var _ Interface = (*JSONStorage)(nil)

// Package storage persists validation run records.
package storage

import (
	"time"

	"github.com/YoByron/optionslab/internal/validate"
)

// RunRecord is one completed validation run.
type RunRecord struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Symbols   []string         `json:"symbols"`
	Strategy  string           `json:"strategy"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	Result    *validate.Result `json:"result"`
}

// Store is the contract for run-record persistence.
//
// Implementations must be safe for concurrent use - callers can assume all
// methods are goroutine-safe. The provided JSONStore uses sync.RWMutex to
// serialize access.
type Store interface {
	// SaveRun appends a record and persists it.
	SaveRun(record RunRecord) error
	// GetRuns returns all records, oldest first.
	GetRuns() []RunRecord
	// GetRun returns the record with the given id, or ErrRunNotFound.
	GetRun(id string) (RunRecord, error)
}

// NewStore creates the default store implementation (currently JSON-based).
func NewStore(filepath string) (Store, error) {
	return NewJSONStore(filepath)
}

// Ensure JSONStore implements Store
var _ Store = (*JSONStore)(nil)

package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator generates batch IDs for submissions.
// Implemented by UUIDv7Generator (production) and testutil.SequenceGenerator
// (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 batch IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// actionID derives the ID of the i-th action of a batch.
func actionID(batch string, i int) string {
	return fmt.Sprintf("%s#%d", batch, i)
}

package collab

import (
	"errors"

	"collabRouter/backend/internal/ot/delta"
)

// ErrDeltaOutOfRange marks a transaction whose retain/delete spans walk past
// the end of the current content.
var ErrDeltaOutOfRange = errors.New("DELTA_OUT_OF_RANGE")

// State is the document-content collaborator: it knows how to apply one
// transaction to the current content and report success or failure. The
// routing core owns serialization and never looks inside the content.
//
// Apply must be atomic: on error the content is unchanged.
type State interface {
	Len() int
	Apply(d delta.Delta) error
	Snapshot() string
}

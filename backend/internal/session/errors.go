package session

import "errors"

var (
	// ErrNotPublisher rejects a transaction from a session that does not
	// currently hold publish rights. No state change, sender-only reply.
	ErrNotPublisher = errors.New("NOT_PUBLISHER")

	// ErrDuplicateOrOutOfOrder rejects a clientSeq that does not advance the
	// last seq seen for that clientId.
	ErrDuplicateOrOutOfOrder = errors.New("DUPLICATE_OR_OUT_OF_ORDER")

	// ErrCreationFailed wraps a content fetch failure during first join. The
	// title stays unclaimed so a later join can retry.
	ErrCreationFailed = errors.New("CREATION_FAILED")

	// ErrRouteClosed is returned when attaching to a route that lost its last
	// session between resolve and attach. Callers resolve again.
	ErrRouteClosed = errors.New("ROUTE_CLOSED")

	// ErrNotAttached is returned for operations on a session the route no
	// longer knows about.
	ErrNotAttached = errors.New("NOT_ATTACHED")
)

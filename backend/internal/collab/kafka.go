package collab

import (
	"time"

	"collabRouter/backend/internal/ot/delta"
)

// TxnEvent is the audit record published to Kafka for every accepted
// transaction, keyed by document title so one document stays in one partition.
type TxnEvent struct {
	EventType string      `json:"eventType"` // fixed "TXN_ACCEPTED"
	DocTitle  string      `json:"docTitle"`
	Revision  uint64      `json:"revision"`
	SessionID uint64      `json:"sessionId"`
	UserID    uint64      `json:"userId"`
	ClientID  string      `json:"clientId,omitempty"`
	ClientSeq uint64      `json:"clientSeq,omitempty"`
	Ops       delta.Delta `json:"ops"`
	AppliedAt time.Time   `json:"appliedAt"`
}

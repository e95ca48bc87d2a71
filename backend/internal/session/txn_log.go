package session

import (
	"time"

	"collabRouter/backend/internal/ot/delta"
)

// Transaction is one incremental edit submitted by a client. ClientID and
// ClientSeq identify the submitting client instance for duplicate
// suppression; both may be empty.
type Transaction struct {
	ClientID  string
	ClientSeq uint64
	Ops       delta.Delta
}

// AppliedTxn is a transaction after acceptance: stamped with the revision it
// produced and the session that authored it.
type AppliedTxn struct {
	Revision  uint64
	SessionID uint64
	UserID    uint64
	ClientID  string
	ClientSeq uint64
	Ops       delta.Delta
	AppliedAt time.Time
}

// TransactionLog is the append-only record of accepted transactions for one
// document. Index position equals revision minus one; entries are never
// reordered or removed. Callers serialize access (the owning document does).
type TransactionLog struct {
	entries []AppliedTxn
}

func NewTransactionLog() *TransactionLog {
	return &TransactionLog{}
}

func (l *TransactionLog) Len() int {
	return len(l.entries)
}

// Revision is the number of accepted transactions so far.
func (l *TransactionLog) Revision() uint64 {
	return uint64(len(l.entries))
}

func (l *TransactionLog) append(t AppliedTxn) {
	l.entries = append(l.entries, t)
}

// Since returns entries with revision greater than fromRevision, in
// acceptance order, up to limit (0 = no limit). Used for catch-up after a
// reconnect.
func (l *TransactionLog) Since(fromRevision uint64, limit int) []AppliedTxn {
	var out []AppliedTxn
	for _, t := range l.entries {
		if t.Revision > fromRevision {
			out = append(out, t)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// Entries returns a copy of the full log.
func (l *TransactionLog) Entries() []AppliedTxn {
	out := make([]AppliedTxn, len(l.entries))
	copy(out, l.entries)
	return out
}

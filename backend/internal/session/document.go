package session

import (
	"sync"
	"time"

	"collabRouter/backend/internal/collab"
)

// Document is the single authority over one document's content: the content
// state, the transaction log, and the publisher grant all live here and are
// only ever mutated under the document mutex. The owning Route additionally
// serializes Apply with its broadcasts so siblings observe log order.
type Document struct {
	title string

	mu          sync.RWMutex
	state       collab.State
	log         *TransactionLog
	publisherID uint64 // session id holding publish rights, 0 = none
	// last clientSeq accepted per clientId, for duplicate suppression
	lastSeqByClient map[string]uint64
}

func NewDocument(title string, state collab.State) *Document {
	return &Document{
		title:           title,
		state:           state,
		log:             NewTransactionLog(),
		lastSeqByClient: make(map[string]uint64),
	}
}

func (d *Document) Title() string { return d.title }

// Apply accepts or rejects one transaction. Only the current publisher may
// mutate state; a rejected transaction leaves state, log and the seq window
// untouched.
func (d *Document) Apply(sess *Session, txn Transaction) (AppliedTxn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.publisherID == 0 || sess.ID != d.publisherID {
		return AppliedTxn{}, ErrNotPublisher
	}
	if txn.ClientID != "" {
		if last := d.lastSeqByClient[txn.ClientID]; txn.ClientSeq <= last {
			return AppliedTxn{}, ErrDuplicateOrOutOfOrder
		}
	}

	// The state collaborator applies atomically, so a failure here means
	// nothing changed and there is nothing to roll back.
	if err := d.state.Apply(txn.Ops); err != nil {
		return AppliedTxn{}, err
	}

	applied := AppliedTxn{
		Revision:  d.log.Revision() + 1,
		SessionID: sess.ID,
		UserID:    sess.UserID,
		ClientID:  txn.ClientID,
		ClientSeq: txn.ClientSeq,
		Ops:       txn.Ops,
		AppliedAt: time.Now(),
	}
	d.log.append(applied)
	if txn.ClientID != "" {
		d.lastSeqByClient[txn.ClientID] = txn.ClientSeq
	}
	return applied, nil
}

// Snapshot returns the current content and its revision together.
func (d *Document) Snapshot() (string, uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.Snapshot(), d.log.Revision()
}

func (d *Document) Revision() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.log.Revision()
}

// Publisher returns the session id holding publish rights, 0 if none.
func (d *Document) Publisher() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.publisherID
}

// TxnsSince returns accepted transactions after fromRevision, oldest first.
func (d *Document) TxnsSince(fromRevision uint64, limit int) []AppliedTxn {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.log.Since(fromRevision, limit)
}

func (d *Document) LogLen() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.log.Len()
}

func (d *Document) setPublisher(sessionID uint64) {
	d.mu.Lock()
	d.publisherID = sessionID
	d.mu.Unlock()
}

package session

import (
	"context"
	"sync"

	"collabRouter/backend/internal/collab"
)

// Session is one client's membership in a document. The id is assigned by the
// route at attach time and stays stable for the session's lifetime; it is the
// only key membership is tracked under (never a slice position).
type Session struct {
	ID       uint64
	UserID   uint64
	Username string

	emitter Emitter
}

// Route binds one document title to its single live Document and the set of
// attached sessions. Attach, Detach and Submit all run under one mutex, so
// per-document operations execute one at a time in arrival order while
// different documents proceed in parallel.
type Route struct {
	mu       sync.Mutex
	doc      *Document
	sessions map[uint64]*Session
	order    []uint64 // session ids in join order, for publisher arbitration
	nextID   uint64
	closed   bool

	dispatcher *collab.KafkaDispatcher
	onEmpty    func(*Route)
}

func newRoute(doc *Document, dispatcher *collab.KafkaDispatcher, onEmpty func(*Route)) *Route {
	return &Route{
		doc:        doc,
		sessions:   make(map[uint64]*Session),
		dispatcher: dispatcher,
		onEmpty:    onEmpty,
	}
}

func (r *Route) Document() *Document { return r.doc }

// Attach creates a session for userID and adds it to the route. The first
// session while no publisher is held gets publish rights (granted=true).
// Siblings are notified with member-joined; the new session is not.
func (r *Route) Attach(userID uint64, username string, em Emitter) (*Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false, ErrRouteClosed
	}

	r.nextID++
	sess := &Session{
		ID:       r.nextID,
		UserID:   userID,
		Username: username,
		emitter:  em,
	}
	r.sessions[sess.ID] = sess
	r.order = append(r.order, sess.ID)

	granted := false
	if r.doc.Publisher() == 0 {
		r.doc.setPublisher(sess.ID)
		granted = true
	}

	r.broadcastLocked(Event{
		Type:        EventMemberJoined,
		DocTitle:    r.doc.Title(),
		SessionID:   sess.ID,
		UserID:      userID,
		Username:    username,
		IsPublisher: granted,
	}, sess.ID)

	return sess, granted, nil
}

// Detach removes the session by id. If it held publish rights the earliest
// remaining session (join order) is promoted and everyone left is told via
// publisher-changed. The route closes when its last session leaves.
func (r *Route) Detach(sessionID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	for i, id := range r.order {
		if id == sessionID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if len(r.sessions) == 0 {
		r.doc.setPublisher(0)
		r.closed = true
		if r.onEmpty != nil {
			r.onEmpty(r)
		}
		return
	}

	r.broadcastLocked(Event{
		Type:     EventMemberLeft,
		DocTitle: r.doc.Title(),
		UserID:   sess.UserID,
		Username: sess.Username,
	}, 0)

	if r.doc.Publisher() == sessionID {
		next := r.sessions[r.order[0]]
		r.doc.setPublisher(next.ID)
		r.broadcastLocked(Event{
			Type:        EventPublisherChanged,
			DocTitle:    r.doc.Title(),
			SessionID:   next.ID,
			UserID:      next.UserID,
			Username:    next.Username,
			IsPublisher: true,
		}, 0)
	}
}

// Submit runs one transaction through the document and, on acceptance,
// broadcasts it to every other session inside the same serialized step, so
// broadcast order always equals log append order. The audit event is
// best-effort and never fails the transaction.
func (r *Route) Submit(ctx context.Context, sess *Session, txn Transaction) (AppliedTxn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.sessions[sess.ID] != sess {
		return AppliedTxn{}, ErrNotAttached
	}

	applied, err := r.doc.Apply(sess, txn)
	if err != nil {
		return AppliedTxn{}, err
	}

	r.broadcastLocked(Event{
		Type:      EventNewTransaction,
		DocTitle:  r.doc.Title(),
		Revision:  applied.Revision,
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Username:  sess.Username,
		Ops:       applied.Ops,
	}, sess.ID)

	if r.dispatcher != nil {
		_ = r.dispatcher.Enqueue(ctx, collab.TxnEvent{
			EventType: "TXN_ACCEPTED",
			DocTitle:  r.doc.Title(),
			Revision:  applied.Revision,
			SessionID: applied.SessionID,
			UserID:    applied.UserID,
			ClientID:  applied.ClientID,
			ClientSeq: applied.ClientSeq,
			Ops:       applied.Ops,
			AppliedAt: applied.AppliedAt,
		})
	}

	return applied, nil
}

// Broadcast sends an event to every attached session except excludeID
// (0 = nobody excluded).
func (r *Route) Broadcast(evt Event, excludeID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(evt, excludeID)
}

func (r *Route) broadcastLocked(evt Event, excludeID uint64) {
	for _, id := range r.order {
		if id == excludeID {
			continue
		}
		if s := r.sessions[id]; s != nil && s.emitter != nil {
			s.emitter.Emit(evt)
		}
	}
}

// Members lists attached sessions in join order.
func (r *Route) Members() []Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	pub := r.doc.Publisher()
	out := make([]Member, 0, len(r.order))
	for _, id := range r.order {
		s := r.sessions[id]
		if s == nil {
			continue
		}
		out = append(out, Member{
			SessionID:   s.ID,
			UserID:      s.UserID,
			Username:    s.Username,
			IsPublisher: s.ID == pub,
		})
	}
	return out
}

// IsPublisher reports whether the session currently holds publish rights.
func (r *Route) IsPublisher(sess *Session) bool {
	return sess != nil && r.doc.Publisher() == sess.ID
}

func (r *Route) sessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

package ws

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"collabRouter/backend/internal/cache"
	"collabRouter/backend/internal/collab"
	"collabRouter/backend/internal/session"
)

const (
	presenceTTL    = 600 * time.Second
	cursorTTL      = 60 * time.Second
	submitDeadline = 200 * time.Millisecond
)

// Error codes reported to the originating connection. Never broadcast.
const (
	codeNotPublisher   = "NOT_PUBLISHER"
	codeInvalidTxn     = "INVALID_TRANSACTION"
	codeCreationFailed = "CREATION_FAILED"
	codeUnjoined       = "UNJOINED_OPERATION"
	codeInternal       = "INTERNAL"
)

// Conn adapts one client socket to the session core: it decodes protocol
// events, forwards them to the registry/route, and relays route broadcasts
// back out. State beyond the current session reference lives elsewhere.
type Conn struct {
	ws       *websocket.Conn
	registry *session.Registry
	presence cache.PresenceCache
	fetch    session.FetchFunc
	sem      *collab.SemaphoreControl

	userID   uint64
	username string

	// Joined state: nil route/sess means Unjoined.
	docTitle string
	route    *session.Route
	sess     *session.Session

	send chan OutboundMessage
}

func NewConn(ws *websocket.Conn, registry *session.Registry, presence cache.PresenceCache, fetch session.FetchFunc, sem *collab.SemaphoreControl, userID uint64, username string) *Conn {
	return &Conn{
		ws:       ws,
		registry: registry,
		presence: presence,
		fetch:    fetch,
		sem:      sem,
		userID:   userID,
		username: username,
		send:     make(chan OutboundMessage, 32),
	}
}

// Emit implements session.Emitter. Route broadcasts run inside the document's
// serialized step, so this must never block; a client that cannot drain its
// queue loses messages and is expected to resync.
func (c *Conn) Emit(evt session.Event) {
	c.enqueue(EventMessage(evt))
}

func (c *Conn) enqueue(msg OutboundMessage) {
	select {
	case c.send <- msg:
	default:
		// queue full, drop
	}
}

func (c *Conn) readLoop(ctx context.Context) {
	defer close(c.send)
	defer c.teardown(ctx)

	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			log.Printf("read json error (user=%d, doc=%s): %v", c.userID, c.docTitle, err)
			return
		}

		switch msg.Type {
		case "join":
			c.handleJoin(ctx, msg)

		case "submit-transaction":
			c.handleSubmit(ctx, msg)

		case "sync":
			c.handleSync(msg)

		case "leave":
			if c.sess == nil {
				c.enqueue(ErrorMessage{Type: "error", Code: codeUnjoined, Message: "leave without join"})
				continue
			}
			title := c.docTitle
			c.teardown(ctx)
			c.enqueue(ServerMessage{Type: "left", DocTitle: title})

		case "heartbeat":
			c.handleHeartbeat(ctx)

		case "cursor":
			c.handleCursor(ctx, msg)

		default:
			c.enqueue(ServerMessage{Type: "ignored", Content: "Unknown message type"})
		}
	}
}

func (c *Conn) writeLoop() {
	for msg := range c.send {
		_ = c.ws.WriteJSON(msg)
	}
}

// handleJoin attaches this connection to the document's route, creating the
// document on first join. Joining while already attached switches rooms.
func (c *Conn) handleJoin(ctx context.Context, msg ClientMessage) {
	if msg.DocTitle == "" {
		c.enqueue(ErrorMessage{Type: "error", Code: codeInternal, Message: "missing docTitle"})
		return
	}
	if c.sess != nil {
		c.teardown(ctx)
	}

	route, sess, granted, err := c.registry.Join(ctx, msg.DocTitle, c.userID, c.username, c, c.fetch)
	if err != nil {
		log.Printf("join failed (user=%d, doc=%s): %v", c.userID, msg.DocTitle, err)
		c.enqueue(ErrorMessage{Type: "error", Code: errorCode(err), Message: err.Error()})
		return
	}
	c.docTitle = msg.DocTitle
	c.route = route
	c.sess = sess

	if err := c.presence.AddMember(ctx, c.docTitle, c.userID, c.username, presenceTTL); err != nil {
		log.Printf("add member error: %v", err)
	}

	snapshot, revision := route.Document().Snapshot()
	c.enqueue(JoinedMessage{
		Type:      "joined",
		DocTitle:  c.docTitle,
		SessionID: sess.ID,
		Granted:   granted,
		Revision:  revision,
		Snapshot:  snapshot,
		Members:   route.Members(),
	})
}

func (c *Conn) handleSubmit(ctx context.Context, msg ClientMessage) {
	if c.sess == nil {
		c.enqueue(ErrorMessage{Type: "error", Code: codeUnjoined, Message: "submit-transaction without join"})
		return
	}

	submitCtx, cancel := context.WithTimeout(ctx, submitDeadline)
	defer cancel()

	if err := c.sem.Acquire(submitCtx); err != nil {
		c.enqueue(ErrorMessage{Type: "error", Code: codeInternal, Message: err.Error()})
		return
	}
	defer c.sem.Release()

	applied, err := c.route.Submit(submitCtx, c.sess, session.Transaction{
		ClientID:  msg.ClientID,
		ClientSeq: msg.ClientSeq,
		Ops:       msg.Ops,
	})
	if err != nil {
		c.enqueue(ErrorMessage{Type: "error", Code: errorCode(err), Message: err.Error()})
		return
	}

	c.enqueue(TxnAcceptedMessage{
		Type:      "txn-accepted",
		DocTitle:  c.docTitle,
		Revision:  applied.Revision,
		ClientID:  msg.ClientID,
		ClientSeq: msg.ClientSeq,
	})
}

func (c *Conn) handleSync(msg ClientMessage) {
	if c.sess == nil {
		c.enqueue(ErrorMessage{Type: "error", Code: codeUnjoined, Message: "sync without join"})
		return
	}
	doc := c.route.Document()
	txns := doc.TxnsSince(msg.SinceRevision, 0)
	payload := make([]TxnPayload, 0, len(txns))
	for _, t := range txns {
		payload = append(payload, TxnPayload{Revision: t.Revision, UserID: t.UserID, Ops: t.Ops})
	}
	c.enqueue(SyncMessage{
		Type:     "sync",
		DocTitle: c.docTitle,
		Revision: doc.Revision(),
		Txns:     payload,
	})
}

func (c *Conn) handleHeartbeat(ctx context.Context) {
	if c.sess == nil {
		c.enqueue(ServerMessage{Type: "feedback", Content: "Heartbeat received"})
		return
	}
	if err := c.presence.AddMember(ctx, c.docTitle, c.userID, c.username, presenceTTL); err != nil {
		log.Printf("add member error: %v", err)
	}
	members, err := c.presence.GetAliveMembersWithNames(ctx, c.docTitle)
	if err != nil {
		log.Printf("get members error: %v", err)
	}
	out := make([]PresenceMember, 0, len(members))
	for _, m := range members {
		out = append(out, PresenceMember{UserID: m.UserID, Username: m.Username})
	}
	c.enqueue(PresenceMessage{Type: "presence", DocTitle: c.docTitle, Members: out})
	c.enqueue(ServerMessage{Type: "feedback", Content: "Heartbeat received"})
}

func (c *Conn) handleCursor(ctx context.Context, msg ClientMessage) {
	if c.sess == nil {
		c.enqueue(ErrorMessage{Type: "error", Code: codeUnjoined, Message: "cursor without join"})
		return
	}
	if err := c.presence.SetCursor(ctx, c.docTitle, c.userID, msg.Cursor, cursorTTL); err != nil {
		log.Printf("set cursor error: %v", err)
	}
	c.route.Broadcast(session.Event{
		Type:     session.EventCursor,
		DocTitle: c.docTitle,
		UserID:   c.userID,
		Username: c.username,
		Cursor:   msg.Cursor,
	}, c.sess.ID)
}

// teardown detaches from the current route (triggering publisher
// re-arbitration and, for the last member, route removal) and clears the
// joined state. Safe to call when unjoined.
func (c *Conn) teardown(ctx context.Context) {
	if c.sess == nil {
		return
	}
	c.route.Detach(c.sess.ID)
	// The request context is already canceled when the socket dropped; the
	// presence cleanup still has to go out.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := c.presence.RemoveMember(ctx, c.docTitle, c.userID); err != nil {
		log.Printf("remove member error: %v", err)
	}
	c.docTitle = ""
	c.route = nil
	c.sess = nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrNotPublisher):
		return codeNotPublisher
	case errors.Is(err, session.ErrDuplicateOrOutOfOrder),
		errors.Is(err, collab.ErrDeltaOutOfRange):
		return codeInvalidTxn
	case errors.Is(err, session.ErrCreationFailed):
		return codeCreationFailed
	case errors.Is(err, session.ErrNotAttached):
		return codeUnjoined
	default:
		return codeInternal
	}
}

package session

import (
	"encoding/json"

	"collabRouter/backend/internal/ot/delta"
)

// Event names sent to sibling sessions on a route. The ws layer relays them
// verbatim as the message type.
const (
	EventNewTransaction   = "new-transaction"
	EventMemberJoined     = "member-joined"
	EventMemberLeft       = "member-left"
	EventPublisherChanged = "publisher-changed"
	EventCursor           = "cursor"
)

// Event is a transport-agnostic notification from a Route to a Session.
// Only successfully accepted transactions and membership/publisher changes
// are ever broadcast; errors go to the originating connection alone.
type Event struct {
	Type        string      `json:"type"`
	DocTitle    string      `json:"docTitle"`
	Revision    uint64      `json:"revision,omitempty"`
	SessionID   uint64      `json:"sessionId,omitempty"`
	UserID      uint64      `json:"userId,omitempty"`
	Username    string      `json:"username,omitempty"`
	IsPublisher bool        `json:"isPublisher,omitempty"`
	Ops         delta.Delta `json:"ops,omitempty"`
	// Cursor is an opaque blob relayed between clients, not interpreted here.
	Cursor json.RawMessage `json:"cursor,omitempty"`
}

// Emitter is the outbound side of a session. The ws connection implements it
// with a buffered send channel; the core never blocks on a slow client.
type Emitter interface {
	Emit(evt Event)
}

// Member describes one attached session, as reported in join replies and
// member listings.
type Member struct {
	SessionID   uint64 `json:"sessionId"`
	UserID      uint64 `json:"userId"`
	Username    string `json:"username,omitempty"`
	IsPublisher bool   `json:"isPublisher"`
}

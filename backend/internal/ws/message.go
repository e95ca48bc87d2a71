package ws

import (
	"encoding/json"

	"collabRouter/backend/internal/ot/delta"
	"collabRouter/backend/internal/session"
)

type ClientMessage struct {
	Type          string          `json:"type"`
	DocTitle      string          `json:"docTitle,omitempty"`
	ClientID      string          `json:"clientId,omitempty"`
	ClientSeq     uint64          `json:"clientSeq,omitempty"`
	SinceRevision uint64          `json:"sinceRevision,omitempty"`
	Ops           delta.Delta     `json:"ops,omitempty"`
	Cursor        json.RawMessage `json:"cursor,omitempty"`
}

// OutboundMessage is anything the write loop can ship to the client.
type OutboundMessage interface {
	MessageType() string
}

func (m ServerMessage) MessageType() string      { return m.Type }
func (m JoinedMessage) MessageType() string      { return m.Type }
func (m TxnAcceptedMessage) MessageType() string { return m.Type }
func (m ErrorMessage) MessageType() string       { return m.Type }
func (m SyncMessage) MessageType() string        { return m.Type }
func (m PresenceMessage) MessageType() string    { return m.Type }
func (m EventMessage) MessageType() string       { return m.Type }

// EventMessage relays a route event to the client unchanged; the event name
// is the wire type.
type EventMessage session.Event

// ServerMessage covers the small informational replies (welcome, feedback,
// left, ignored).
type ServerMessage struct {
	Type     string `json:"type"`
	DocTitle string `json:"docTitle,omitempty"`
	Content  string `json:"content,omitempty"`
}

// JoinedMessage answers a join: the initial snapshot, whether publish rights
// were granted, and who is attached right now.
type JoinedMessage struct {
	Type      string           `json:"type"` // fixed "joined"
	DocTitle  string           `json:"docTitle"`
	SessionID uint64           `json:"sessionId"`
	Granted   bool             `json:"granted"`
	Revision  uint64           `json:"revision"`
	Snapshot  string           `json:"snapshot"`
	Members   []session.Member `json:"members"`
}

// TxnAcceptedMessage acks an accepted transaction to its sender only; the
// sender already applied it locally and is not re-broadcast to.
type TxnAcceptedMessage struct {
	Type      string `json:"type"` // fixed "txn-accepted"
	DocTitle  string `json:"docTitle"`
	Revision  uint64 `json:"revision"`
	ClientID  string `json:"clientId,omitempty"`
	ClientSeq uint64 `json:"clientSeq,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // fixed "error"
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// SyncMessage replays transactions the client missed, oldest first.
type SyncMessage struct {
	Type     string       `json:"type"` // fixed "sync"
	DocTitle string       `json:"docTitle"`
	Revision uint64       `json:"revision"`
	Txns     []TxnPayload `json:"txns"`
}

type TxnPayload struct {
	Revision uint64      `json:"revision"`
	UserID   uint64      `json:"userId"`
	Ops      delta.Delta `json:"ops"`
}

type PresenceMember struct {
	UserID   uint64 `json:"userId"`
	Username string `json:"username,omitempty"`
}

type PresenceMessage struct {
	Type     string           `json:"type"` // fixed "presence"
	DocTitle string           `json:"docTitle"`
	Members  []PresenceMember `json:"members"`
}

package ws

import (
	"errors"
	"fmt"
	"testing"

	"collabRouter/backend/internal/collab"
	"collabRouter/backend/internal/session"
)

func TestErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{session.ErrNotPublisher, codeNotPublisher},
		{session.ErrDuplicateOrOutOfOrder, codeInvalidTxn},
		{collab.ErrDeltaOutOfRange, codeInvalidTxn},
		{fmt.Errorf("%w: boom", session.ErrCreationFailed), codeCreationFailed},
		{session.ErrNotAttached, codeUnjoined},
		{errors.New("something else"), codeInternal},
	}
	for _, c := range cases {
		if got := errorCode(c.err); got != c.want {
			t.Fatalf("errorCode(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}

func TestEventMessageKeepsWireType(t *testing.T) {
	m := EventMessage(session.Event{Type: session.EventNewTransaction, DocTitle: "Foo"})
	if got := m.MessageType(); got != "new-transaction" {
		t.Fatalf("MessageType() = %q, want %q", got, "new-transaction")
	}
}

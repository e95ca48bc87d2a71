package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

func testPresence(t *testing.T) (PresenceCache, string) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skip: redis not available: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })

	title := fmt.Sprintf("presence-test-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx := context.Background()
		rdb.Del(ctx, roomKey(title), namesKey(title), cursorKey(title, 1))
	})
	return NewRedisPresence(rdb), title
}

func TestAddAndListMembers(t *testing.T) {
	p, title := testPresence(t)
	ctx := context.Background()

	if err := p.AddMember(ctx, title, 1, "alice", time.Minute); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}
	if err := p.AddMember(ctx, title, 2, "bob", time.Minute); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}

	members, err := p.GetAliveMembersWithNames(ctx, title)
	if err != nil {
		t.Fatalf("GetAliveMembersWithNames error: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	byID := map[uint64]string{}
	for _, m := range members {
		byID[m.UserID] = m.Username
	}
	if byID[1] != "alice" || byID[2] != "bob" {
		t.Fatalf("members = %v", byID)
	}
}

func TestExpiredMembersSweptOut(t *testing.T) {
	p, title := testPresence(t)
	ctx := context.Background()

	if err := p.AddMember(ctx, title, 1, "alice", -time.Second); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}
	if err := p.AddMember(ctx, title, 2, "bob", time.Minute); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}

	members, err := p.GetAliveMembersWithNames(ctx, title)
	if err != nil {
		t.Fatalf("GetAliveMembersWithNames error: %v", err)
	}
	if len(members) != 1 || members[0].UserID != 2 {
		t.Fatalf("members = %v, want only bob", members)
	}
}

func TestRemoveMember(t *testing.T) {
	p, title := testPresence(t)
	ctx := context.Background()

	if err := p.AddMember(ctx, title, 1, "alice", time.Minute); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}
	if err := p.RemoveMember(ctx, title, 1); err != nil {
		t.Fatalf("RemoveMember error: %v", err)
	}

	members, err := p.GetAliveMembersWithNames(ctx, title)
	if err != nil {
		t.Fatalf("GetAliveMembersWithNames error: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("members = %v after remove, want none", members)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	p, title := testPresence(t)
	ctx := context.Background()

	payload := []byte(`{"pos":12}`)
	if err := p.SetCursor(ctx, title, 1, payload, time.Minute); err != nil {
		t.Fatalf("SetCursor error: %v", err)
	}
	got, err := p.GetCursor(ctx, title, 1)
	if err != nil {
		t.Fatalf("GetCursor error: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("GetCursor = %s, want %s", got, payload)
	}
}

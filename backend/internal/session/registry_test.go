package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func staticFetch(content string) FetchFunc {
	return func(ctx context.Context, title string) (string, error) {
		return content, nil
	}
}

func failingFetch(err error) FetchFunc {
	return func(ctx context.Context, title string) (string, error) {
		return "", err
	}
}

func TestResolveDeduplicatesConcurrentJoins(t *testing.T) {
	g := NewRegistry(RegistryOptions{})

	var fetches atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context, title string) (string, error) {
		fetches.Add(1)
		<-release
		return "hello", nil
	}

	const n = 8
	routes := make([]*Route, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			routes[i], errs[i] = g.Resolve(context.Background(), "Foo", fetch)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Resolve[%d] error = %v", i, errs[i])
		}
		if routes[i] != routes[0] {
			t.Fatalf("Resolve[%d] returned a different route", i)
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Fatalf("fetch ran %d times, want 1", got)
	}
	if got := g.RouteCount(); got != 1 {
		t.Fatalf("RouteCount() = %d, want 1", got)
	}
}

func TestResolveExistingRouteSkipsFetch(t *testing.T) {
	g := NewRegistry(RegistryOptions{})

	rt, err := g.Resolve(context.Background(), "Foo", staticFetch("v1"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// A second resolve must return the live route without fetching.
	again, err := g.Resolve(context.Background(), "Foo", failingFetch(errors.New("should not be called")))
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if again != rt {
		t.Fatalf("second Resolve() returned a different route")
	}
}

func TestCreationFailurePropagatesAndAllowsRetry(t *testing.T) {
	g := NewRegistry(RegistryOptions{})

	boom := errors.New("fetch exploded")
	const n = 4
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = g.Resolve(context.Background(), "Foo", failingFetch(boom))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if !errors.Is(errs[i], ErrCreationFailed) {
			t.Fatalf("Resolve[%d] error = %v, want ErrCreationFailed", i, errs[i])
		}
	}
	if got := g.RouteCount(); got != 0 {
		t.Fatalf("RouteCount() = %d after failed creation, want 0", got)
	}

	// The title stays unclaimed, so a later join can retry and succeed.
	rt, err := g.Resolve(context.Background(), "Foo", staticFetch("recovered"))
	if err != nil {
		t.Fatalf("retry Resolve() error = %v", err)
	}
	if snap, _ := rt.Document().Snapshot(); snap != "recovered" {
		t.Fatalf("Snapshot() = %q, want %q", snap, "recovered")
	}
}

func TestFetchTimeoutClearsPendingCreation(t *testing.T) {
	g := NewRegistry(RegistryOptions{FetchTimeout: 30 * time.Millisecond})

	hang := func(ctx context.Context, title string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	_, err := g.Resolve(context.Background(), "Foo", hang)
	if !errors.Is(err, ErrCreationFailed) {
		t.Fatalf("Resolve() error = %v, want ErrCreationFailed", err)
	}

	rt, err := g.Resolve(context.Background(), "Foo", staticFetch("fresh"))
	if err != nil {
		t.Fatalf("Resolve() after timeout error = %v", err)
	}
	if rt == nil {
		t.Fatalf("Resolve() after timeout returned nil route")
	}
}

func TestLastDetachRemovesRoute(t *testing.T) {
	g := NewRegistry(RegistryOptions{})

	rt, sess, granted, err := g.Join(context.Background(), "Foo", 1, "alice", &recorder{}, staticFetch(""))
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if !granted {
		t.Fatalf("first join not granted publish rights")
	}

	rt.Detach(sess.ID)
	if got := g.RouteCount(); got != 0 {
		t.Fatalf("RouteCount() = %d after last detach, want 0", got)
	}
	if g.Lookup("Foo") != nil {
		t.Fatalf("Lookup() returned a route after teardown")
	}

	// A fresh join recreates the document from a new fetch.
	rt2, _, granted, err := g.Join(context.Background(), "Foo", 2, "bob", &recorder{}, staticFetch("new content"))
	if err != nil {
		t.Fatalf("rejoin error = %v", err)
	}
	if !granted {
		t.Fatalf("rejoin not granted publish rights")
	}
	if rt2 == rt {
		t.Fatalf("rejoin returned the torn-down route")
	}
}

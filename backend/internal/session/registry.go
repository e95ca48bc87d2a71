package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"collabRouter/backend/internal/collab"
)

// FetchFunc loads initial document content for a title. It is invoked at most
// once per title per creation attempt, never once per joiner.
type FetchFunc func(ctx context.Context, title string) (string, error)

// NewStateFunc builds the content state for a freshly created document.
type NewStateFunc func(content string) collab.State

const defaultFetchTimeout = 10 * time.Second

// Registry maps document titles to live routes. Creation is deduplicated with
// a singleflight group: when N joins race before the first document exists,
// one fetch runs and every waiter receives the same route (or the same
// error, leaving the title unclaimed for a retry).
type Registry struct {
	mu     sync.RWMutex
	routes map[string]*Route

	creations singleflight.Group

	fetchTimeout time.Duration
	newState     NewStateFunc
	dispatcher   *collab.KafkaDispatcher
}

type RegistryOptions struct {
	// FetchTimeout bounds the content fetch during first join so a hung
	// fetch cannot wedge a title. Zero means the default.
	FetchTimeout time.Duration
	// NewState defaults to the piece table implementation.
	NewState NewStateFunc
	// Dispatcher, when set, receives an audit event per accepted transaction.
	Dispatcher *collab.KafkaDispatcher
}

func NewRegistry(opt RegistryOptions) *Registry {
	if opt.FetchTimeout <= 0 {
		opt.FetchTimeout = defaultFetchTimeout
	}
	if opt.NewState == nil {
		opt.NewState = func(content string) collab.State { return collab.NewPieceTable(content) }
	}
	return &Registry{
		routes:       make(map[string]*Route),
		fetchTimeout: opt.FetchTimeout,
		newState:     opt.NewState,
		dispatcher:   opt.Dispatcher,
	}
}

// Resolve returns the live route for title, creating it if needed. An
// existing route is returned without fetching. Concurrent first joins share
// one in-flight creation; a fetch error is propagated to all of them.
func (g *Registry) Resolve(ctx context.Context, title string, fetch FetchFunc) (*Route, error) {
	g.mu.RLock()
	rt := g.routes[title]
	g.mu.RUnlock()
	if rt != nil {
		return rt, nil
	}

	v, err, _ := g.creations.Do(title, func() (any, error) {
		// A just-finished flight may already have installed the route.
		g.mu.RLock()
		rt := g.routes[title]
		g.mu.RUnlock()
		if rt != nil {
			return rt, nil
		}

		// The fetch runs detached from any single caller: a canceled joiner
		// must not fail the waiters queued behind it.
		fctx, cancel := context.WithTimeout(context.Background(), g.fetchTimeout)
		defer cancel()

		content, err := fetch(fctx, title)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCreationFailed, err)
		}

		rt = newRoute(NewDocument(title, g.newState(content)), g.dispatcher, g.removeEmpty)
		g.mu.Lock()
		if _, dup := g.routes[title]; dup {
			g.mu.Unlock()
			// Creation is single-flighted, so a second live document for the
			// same title is a programming error, not a runtime condition.
			panic(fmt.Sprintf("duplicate live document for title %q", title))
		}
		g.routes[title] = rt
		g.mu.Unlock()
		return rt, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Route), nil
}

// Join resolves the route and attaches in one step, retrying when the
// resolved route closed between resolve and attach (last member left in the
// meantime).
func (g *Registry) Join(ctx context.Context, title string, userID uint64, username string, em Emitter, fetch FetchFunc) (*Route, *Session, bool, error) {
	for {
		rt, err := g.Resolve(ctx, title, fetch)
		if err != nil {
			return nil, nil, false, err
		}
		sess, granted, err := rt.Attach(userID, username, em)
		if errors.Is(err, ErrRouteClosed) {
			continue
		}
		if err != nil {
			return nil, nil, false, err
		}
		return rt, sess, granted, nil
	}
}

// Lookup returns the live route for title, nil if none.
func (g *Registry) Lookup(title string) *Route {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.routes[title]
}

// RouteCount reports the number of live routes.
func (g *Registry) RouteCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.routes)
}

// removeEmpty drops the route when its last session detached. The identity
// check guards against removing a newer route that already replaced it.
func (g *Registry) removeEmpty(rt *Route) {
	title := rt.Document().Title()
	g.mu.Lock()
	if g.routes[title] == rt {
		delete(g.routes, title)
	}
	g.mu.Unlock()
}

package ws

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"collabRouter/backend/internal/cache"
	"collabRouter/backend/internal/collab"
	"collabRouter/backend/internal/session"
)

// Allow local development origins; some environments omit Origin entirely.
var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return true
	}
	allowedPrefixes := []string{
		"http://localhost",
		"http://127.0.0.1",
		"https://localhost",
		"https://127.0.0.1",
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}}

type Manager struct {
	registry *session.Registry
	presence cache.PresenceCache
	fetch    session.FetchFunc
	sem      *collab.SemaphoreControl
}

func NewManager(registry *session.Registry, presence cache.PresenceCache, fetch session.FetchFunc, sem *collab.SemaphoreControl) *Manager {
	return &Manager{registry: registry, presence: presence, fetch: fetch, sem: sem}
}

// WebSocketConnect upgrades the request and runs the connection until the
// socket closes. Identity comes from the auth middleware.
func (m *Manager) WebSocketConnect(c *gin.Context) {
	userID := c.GetUint64("userId")
	username := c.GetString("username")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}
	defer conn.Close()

	wsConn := NewConn(conn, m.registry, m.presence, m.fetch, m.sem, userID, username)

	// Start the writer first so the welcome and anything after it drains.
	go wsConn.writeLoop()
	wsConn.enqueue(ServerMessage{Type: "welcome", Content: "connected"})

	// Blocks until the connection drops; teardown happens inside.
	wsConn.readLoop(c.Request.Context())
}

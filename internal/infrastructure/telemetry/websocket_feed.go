package telemetry

import (
	"net/http"
	"sync"
	"time"

	"abrflow/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketFeed broadcasts quality decisions to subscribed clients. It
// implements ports.DecisionPublisher.
type WebSocketFeed struct {
	// clients maps a connection to its session filter; empty means all
	// sessions.
	clients map[*websocket.Conn]domain.SessionID
	mu      sync.RWMutex

	// pubMu serializes writers; gorilla connections support one writer at a
	// time.
	pubMu sync.Mutex

	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

func NewWebSocketFeed(logger *zap.SugaredLogger) *WebSocketFeed {
	return &WebSocketFeed{
		clients:      make(map[*websocket.Conn]domain.SessionID),
		writeTimeout: 10 * time.Second,
		logger:       logger,
	}
}

// HandleWebSocket upgrades the connection and registers it as a decision
// subscriber. The optional session_id query parameter filters the feed to a
// single session.
func (f *WebSocketFeed) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	filter := domain.SessionID(r.URL.Query().Get("session_id"))

	f.mu.Lock()
	f.clients[conn] = filter
	f.mu.Unlock()

	f.logger.Infow("decision feed subscriber connected",
		"remote_addr", r.RemoteAddr,
		"session_filter", filter,
	)

	// Subscribers are read-only; the read loop only detects disconnects.
	go f.readLoop(conn)
}

func (f *WebSocketFeed) readLoop(conn *websocket.Conn) {
	defer f.remove(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish broadcasts a decision event to all matching subscribers. Clients
// that cannot keep up are dropped.
func (f *WebSocketFeed) Publish(event domain.DecisionEvent) {
	f.pubMu.Lock()
	defer f.pubMu.Unlock()

	f.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(f.clients))
	for conn, filter := range f.clients {
		if filter == "" || filter == event.SessionID {
			conns = append(conns, conn)
		}
	}
	f.mu.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
		if err := conn.WriteJSON(event); err != nil {
			f.logger.Warnw("dropping slow decision feed subscriber", "error", err)
			f.remove(conn)
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (f *WebSocketFeed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

func (f *WebSocketFeed) remove(conn *websocket.Conn) {
	f.mu.Lock()
	_, ok := f.clients[conn]
	delete(f.clients, conn)
	f.mu.Unlock()

	if ok {
		conn.Close()
	}
}

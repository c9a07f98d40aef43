package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"sim-portal/project-portal/project-portal-backend/internal/auth"
	"sim-portal/project-portal/project-portal-backend/internal/notifications"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

// Manager streams committed events to connected portal clients. It is a
// notifications.Publisher, so the dispatcher treats it like any other sink.
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// Connection is one subscribed client. An empty project set receives
// every event.
type Connection struct {
	ID          string
	UserID      uuid.UUID
	ProjectIDs  map[uuid.UUID]struct{}
	Conn        *websocket.Conn
	Send        chan notifications.Event
	ConnectedAt time.Time
	closeOnce   sync.Once
}

// NewManager creates a manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the gateway in front of the API enforces origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// RegisterRoutes mounts the event stream.
func (m *Manager) RegisterRoutes(r *gin.RouterGroup, authn *auth.Middleware) {
	r.GET("/events/ws", authn.RequireActor(), m.handleStream)
}

func (m *Manager) handleStream(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)

	projectIDs := make(map[uuid.UUID]struct{})
	for _, raw := range c.QueryArray("project_id") {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project_id " + raw})
			return
		}
		projectIDs[id] = struct{}{}
	}

	if _, err := m.HandleConnection(c.Writer, c.Request, actor.ID, projectIDs); err != nil {
		m.logger.Warn("WebSocket upgrade failed", zap.Error(err))
	}
}

// HandleConnection upgrades the request and starts the client's pumps.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userID uuid.UUID, projectIDs map[uuid.UUID]struct{}) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		ProjectIDs:  projectIDs,
		Conn:        conn,
		Send:        make(chan notifications.Event, sendBuffer),
		ConnectedAt: time.Now(),
	}

	m.mu.Lock()
	m.connections[connection.ID] = connection
	m.mu.Unlock()

	m.logger.Info("Event stream connected",
		zap.String("connection_id", connection.ID),
		zap.String("user_id", userID.String()),
		zap.Int("projects", len(projectIDs)))

	go m.readPump(connection)
	go m.writePump(connection)

	return connection, nil
}

// Publish queues event for every interested connection. A client whose
// buffer is full is dropped rather than allowed to stall delivery.
func (m *Manager) Publish(_ context.Context, event notifications.Event) error {
	m.mu.RLock()
	var slow []*Connection
	for _, conn := range m.connections {
		if !conn.wants(event) {
			continue
		}
		select {
		case conn.Send <- event:
		default:
			slow = append(slow, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range slow {
		m.logger.Warn("Dropping slow event stream client", zap.String("connection_id", conn.ID))
		m.remove(conn)
	}
	return nil
}

// ConnectionCount returns the number of open streams.
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Close disconnects every client.
func (m *Manager) Close() {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		m.remove(conn)
	}
}

func (c *Connection) wants(event notifications.Event) bool {
	if len(c.ProjectIDs) == 0 {
		return true
	}
	if event.ProjectID == nil {
		return false
	}
	_, ok := c.ProjectIDs[*event.ProjectID]
	return ok
}

func (m *Manager) remove(conn *Connection) {
	m.mu.Lock()
	_, ok := m.connections[conn.ID]
	delete(m.connections, conn.ID)
	m.mu.Unlock()

	if ok {
		conn.closeOnce.Do(func() { close(conn.Send) })
	}
}

// readPump only services control frames; clients do not send events.
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		m.remove(conn)
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Debug("Event stream closed", zap.String("connection_id", conn.ID), zap.Error(err))
			}
			return
		}
	}
}

func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

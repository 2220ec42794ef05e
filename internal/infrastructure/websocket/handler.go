package websocket

import (
	"net/http"
	"sync"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the frame pushed to clients.
type Message struct {
	Type         string               `json:"type"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

// GatewayHandler accepts websocket sessions and relays notifications to
// them.
type GatewayHandler struct {
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewGatewayHandler(connManager domain.ConnectionManager, log logger.Logger) *GatewayHandler {
	return &GatewayHandler{
		connManager: connManager,
		log:         log,
	}
}

// HandleConnection upgrades the request to a websocket session for the user
// named by the user_id query parameter.
func (h *GatewayHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewConnection(conn, userID)
	if err := h.connManager.RegisterConnection(userID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		_ = conn.Close()
		return
	}

	go h.readLoop(wsConn)
}

// readLoop keeps the session alive until the client goes away.
func (h *GatewayHandler) readLoop(conn *Connection) {
	defer func() {
		_ = h.connManager.UnregisterConnection(conn.UserID(), conn)
		_ = conn.Close()
	}()

	for {
		var msg map[string]interface{}
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Connection closed unexpectedly", "user_id", conn.UserID(), "error", err)
			}
			return
		}

		if msgType, _ := msg["type"].(string); msgType == "ping" {
			if err := conn.Send(Message{Type: "pong"}); err != nil {
				return
			}
		}
	}
}

// Deliver pushes a notification to its user's sessions. It has the
// domain.NotificationHandler signature so it can be fed by a subscriber.
func (h *GatewayHandler) Deliver(notification *domain.Notification) error {
	return h.connManager.NotifyUser(notification.UserID, Message{
		Type:         "notification",
		Notification: notification,
	})
}

// Connection is one websocket session. gorilla/websocket allows a single
// concurrent writer, so writes are serialized.
type Connection struct {
	conn   *websocket.Conn
	userID string
	mu     sync.Mutex
}

func NewConnection(conn *websocket.Conn, userID string) *Connection {
	return &Connection{
		conn:   conn,
		userID: userID,
	}
}

func (c *Connection) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(message)
}

func (c *Connection) Close() error {
	return c.conn.Close()
}

func (c *Connection) UserID() string {
	return c.userID
}

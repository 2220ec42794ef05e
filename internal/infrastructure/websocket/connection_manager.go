package websocket

import (
	"sync"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
)

// ConnectionManager tracks the open websocket sessions of each user. A user
// may have several sessions, one per open tab or device.
type ConnectionManager struct {
	userConns map[string][]domain.WebSocketConnection // userID -> connections
	mutex     sync.RWMutex
	log       logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		userConns: make(map[string][]domain.WebSocketConnection),
		log:       log,
	}
}

func (cm *ConnectionManager) RegisterConnection(userID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.userConns[userID] = append(cm.userConns[userID], conn)

	cm.log.Info("Connection registered", "user_id", userID, "sessions", len(cm.userConns[userID]))
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(userID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	userConnections, exists := cm.userConns[userID]
	if !exists {
		return nil
	}

	var newConns []domain.WebSocketConnection
	for _, existingConn := range userConnections {
		if existingConn != conn {
			newConns = append(newConns, existingConn)
		}
	}

	if len(newConns) == 0 {
		delete(cm.userConns, userID)
	} else {
		cm.userConns[userID] = newConns
	}

	cm.log.Info("Connection unregistered", "user_id", userID)
	return nil
}

func (cm *ConnectionManager) GetConnectionsForUser(userID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	connections := cm.userConns[userID]
	out := make([]domain.WebSocketConnection, len(connections))
	copy(out, connections)
	return out
}

// NotifyUser sends message to every session of the user. A failing session
// does not stop delivery to the others.
func (cm *ConnectionManager) NotifyUser(userID string, message interface{}) error {
	for _, conn := range cm.GetConnectionsForUser(userID) {
		if err := conn.Send(message); err != nil {
			cm.log.Error("Failed to send message", "user_id", userID, "error", err)
		}
	}
	return nil
}

func (cm *ConnectionManager) CloseAll() error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	for userID, connections := range cm.userConns {
		for _, conn := range connections {
			if err := conn.Close(); err != nil {
				cm.log.Error("Failed to close connection", "user_id", userID, "error", err)
			}
		}
	}
	cm.userConns = make(map[string][]domain.WebSocketConnection)
	return nil
}

var _ domain.ConnectionManager = (*ConnectionManager)(nil)

package broadcaster

import (
	"sync"

	"go.uber.org/zap"
)

// Registry maps rooms to the connections subscribed to them. A room with no
// members does not exist.
type Registry interface {
	Join(room string, connection *Connection)
	Leave(room string, connection *Connection)
	Members(room string) []*Connection
	RemoveConnectionEverywhere(connection *Connection)
	RoomCount() int
}

type InMemoryRegistry struct {
	logger *zap.Logger
	mu     sync.RWMutex

	connectionsByRoom map[string]map[string]*Connection
}

func NewInMemoryRegistry(
	logger *zap.Logger,
) *InMemoryRegistry {
	return &InMemoryRegistry{
		logger:            logger,
		connectionsByRoom: make(map[string]map[string]*Connection),
	}
}

func (r *InMemoryRegistry) Join(room string, connection *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if connection.IsClosed() {
		return
	}

	roomConnections, ok := r.connectionsByRoom[room]
	if !ok {
		roomConnections = make(map[string]*Connection)
		r.connectionsByRoom[room] = roomConnections
	}

	roomConnections[connection.Id] = connection
	connection.addRoom(room)
}

func (r *InMemoryRegistry) Leave(room string, connection *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(room, connection)
}

// Members returns a snapshot, so callers may close connections while
// iterating it.
func (r *InMemoryRegistry) Members(room string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomConnections, ok := r.connectionsByRoom[room]
	if !ok {
		return nil
	}

	members := make([]*Connection, 0, len(roomConnections))
	for _, connection := range roomConnections {
		members = append(members, connection)
	}

	return members
}

// RemoveConnectionEverywhere walks only the rooms the connection joined.
func (r *InMemoryRegistry) RemoveConnectionEverywhere(connection *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, room := range connection.clearRooms() {
		r.deleteMemberLocked(room, connection.Id)
	}
}

func (r *InMemoryRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connectionsByRoom)
}

// IMPORTANT: It must be called only when a write lock is already held.
func (r *InMemoryRegistry) leaveLocked(room string, connection *Connection) {
	connection.removeRoom(room)
	r.deleteMemberLocked(room, connection.Id)
}

// IMPORTANT: It must be called only when a write lock is already held.
func (r *InMemoryRegistry) deleteMemberLocked(room string, connectionId string) {
	roomConnections, ok := r.connectionsByRoom[room]
	if !ok {
		return
	}

	delete(roomConnections, connectionId)
	if len(roomConnections) == 0 {
		delete(r.connectionsByRoom, room)

		r.logger.Debug("room emptied",
			zap.String("room", room))
	}
}

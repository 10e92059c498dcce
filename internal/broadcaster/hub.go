package broadcaster

import (
	"sync"
	"time"

	"github.com/goevery/tracker/pkg/wire"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultSendBufferSize    = 64
)

type HubOptions struct {
	HeartbeatInterval time.Duration
	SendBufferSize    int
	Now               func() time.Time
}

// Hub owns every open push channel of the process. Writes are non-blocking:
// a connection whose buffer is full is treated as dead and closed.
type Hub struct {
	logger   *zap.Logger
	registry Registry
	options  HubOptions

	mu          sync.RWMutex
	connections map[string]*Connection
}

func NewHub(logger *zap.Logger, registry Registry, options HubOptions) *Hub {
	if options.HeartbeatInterval <= 0 {
		options.HeartbeatInterval = DefaultHeartbeatInterval
	}

	if options.SendBufferSize <= 0 {
		options.SendBufferSize = DefaultSendBufferSize
	}

	if options.Now == nil {
		options.Now = time.Now
	}

	return &Hub{
		logger:      logger,
		registry:    registry,
		options:     options,
		connections: make(map[string]*Connection),
	}
}

// Open creates a connection for the subscriber, queues the connected frame,
// joins the subscriber's personal room and starts its heartbeat.
func (h *Hub) Open(subscriberId string) *Connection {
	now := h.options.Now()
	connection := newConnection(gonanoid.Must(), subscriberId, h.options.SendBufferSize, now)

	connection.push(wire.NewConnectedFrame(subscriberId, now))

	h.mu.Lock()
	h.connections[connection.Id] = connection
	h.mu.Unlock()

	h.registry.Join(wire.UserRoom(subscriberId), connection)

	go h.heartbeat(connection)

	h.logger.Info("connection opened",
		zap.String("connectionId", connection.Id),
		zap.String("subscriberId", subscriberId))

	return connection
}

// Close is idempotent. It stops the heartbeat and scrubs the connection from
// every room it joined.
func (h *Hub) Close(connection *Connection) {
	if !connection.markClosed() {
		return
	}

	h.registry.RemoveConnectionEverywhere(connection)

	h.mu.Lock()
	delete(h.connections, connection.Id)
	h.mu.Unlock()

	h.logger.Info("connection closed",
		zap.String("connectionId", connection.Id),
		zap.String("subscriberId", connection.SubscriberId))
}

// CloseAll discards every open connection, ending their streams.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	connections := make([]*Connection, 0, len(h.connections))
	for _, connection := range h.connections {
		connections = append(connections, connection)
	}
	h.mu.RUnlock()

	for _, connection := range connections {
		h.Close(connection)
	}
}

// Dispatch writes an event frame to every member of the room and returns how
// many writes succeeded. A failed write closes that connection.
func (h *Hub) Dispatch(room string, event string, payload any) int {
	members := h.registry.Members(room)
	if len(members) == 0 {
		return 0
	}

	frame, err := wire.NewEventFrame(gonanoid.Must(), room, event, payload, h.options.Now())
	if err != nil {
		h.logger.Error("failed to encode event payload",
			zap.String("room", room),
			zap.String("event", event),
			zap.Error(err))

		return 0
	}

	delivered := 0
	var stale []*Connection

	for _, connection := range members {
		if connection.push(frame) {
			delivered++

			continue
		}

		stale = append(stale, connection)
	}

	for _, connection := range stale {
		if connection.IsClosed() {
			continue
		}

		h.logger.Warn("connection send buffer is full, closing connection",
			zap.String("connectionId", connection.Id),
			zap.String("room", room))

		h.Close(connection)
	}

	return delivered
}

// Join adds the connection to the room unless it has been closed.
func (h *Hub) Join(room string, connection *Connection) {
	h.registry.Join(room, connection)
}

func (h *Hub) Leave(room string, connection *Connection) {
	h.registry.Leave(room, connection)
}

// JoinUser joins every open connection of the subscriber to the room and
// returns how many were joined.
func (h *Hub) JoinUser(subscriberId string, room string) int {
	connections := h.registry.Members(wire.UserRoom(subscriberId))
	for _, connection := range connections {
		h.registry.Join(room, connection)
	}

	return len(connections)
}

func (h *Hub) LeaveUser(subscriberId string, room string) int {
	connections := h.registry.Members(wire.UserRoom(subscriberId))
	for _, connection := range connections {
		h.registry.Leave(room, connection)
	}

	return len(connections)
}

// Touch records a client heartbeat on the connection.
func (h *Hub) Touch(connection *Connection) {
	connection.touch(h.options.Now())
}

func (h *Hub) Members(room string) []*Connection {
	return h.registry.Members(room)
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.connections)
}

func (h *Hub) RoomCount() int {
	return h.registry.RoomCount()
}

func (h *Hub) heartbeat(connection *Connection) {
	ticker := time.NewTicker(h.options.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-connection.Done():
			return
		case <-ticker.C:
			now := h.options.Now()
			if !connection.push(wire.NewHeartbeatFrame(now)) {
				h.logger.Warn("heartbeat write failed, closing connection",
					zap.String("connectionId", connection.Id))

				h.Close(connection)

				return
			}

			connection.touch(now)
		}
	}
}

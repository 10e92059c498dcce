package broadcaster

import (
	"context"
	"sync"
	"time"

	"github.com/goevery/tracker/pkg/wire"
)

// Connection is one subscriber's open push channel. Frames are queued on a
// bounded buffer and drained by the transport; a full buffer counts as a
// failed write.
type Connection struct {
	Id           string
	SubscriberId string

	send      chan wire.Frame
	done      chan struct{}
	closeOnce sync.Once

	mu            sync.RWMutex
	rooms         map[string]struct{}
	lastHeartbeat time.Time
}

func newConnection(id string, subscriberId string, bufferSize int, now time.Time) *Connection {
	return &Connection{
		Id:            id,
		SubscriberId:  subscriberId,
		send:          make(chan wire.Frame, bufferSize),
		done:          make(chan struct{}),
		rooms:         make(map[string]struct{}),
		lastHeartbeat: now,
	}
}

// Frames is drained by the transport that owns the client socket.
func (c *Connection) Frames() <-chan wire.Frame {
	return c.send
}

// Done is closed once the hub has discarded the connection.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) IsClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Rooms returns a copy of the rooms the connection has joined.
func (c *Connection) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}

	return rooms
}

func (c *Connection) InRoom(room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.rooms[room]

	return ok
}

func (c *Connection) LastHeartbeat() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastHeartbeat
}

func (c *Connection) touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastHeartbeat = now
}

func (c *Connection) addRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rooms[room] = struct{}{}
}

func (c *Connection) removeRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.rooms, room)
}

// clearRooms empties the joined set and returns what it held.
func (c *Connection) clearRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.rooms = make(map[string]struct{})

	return rooms
}

// push never blocks. It reports false when the connection is closed or its
// buffer is full.
func (c *Connection) push(frame wire.Frame) bool {
	if c.IsClosed() {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Connection) markClosed() bool {
	closed := false
	c.closeOnce.Do(func() {
		close(c.done)
		closed = true
	})

	return closed
}

type contextKey string

const connectionKey contextKey = "connection"

func WithConnection(ctx context.Context, conn *Connection) context.Context {
	return context.WithValue(ctx, connectionKey, conn)
}

func ConnectionFromContext(ctx context.Context) (*Connection, bool) {
	conn, ok := ctx.Value(connectionKey).(*Connection)

	return conn, ok
}

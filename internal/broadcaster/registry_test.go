package broadcaster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testConnection(id string) *Connection {
	return newConnection(id, "subscriber-"+id, 4, time.Now())
}

func TestInMemoryRegistry_JoinIsIdempotent(t *testing.T) {
	registry := NewInMemoryRegistry(zap.NewNop())
	connection := testConnection("c1")

	registry.Join("order_O1", connection)
	registry.Join("order_O1", connection)

	assert.Len(t, registry.Members("order_O1"), 1)
	assert.Equal(t, []string{"order_O1"}, connection.Rooms())
}

func TestInMemoryRegistry_LeavePrunesEmptyRooms(t *testing.T) {
	registry := NewInMemoryRegistry(zap.NewNop())
	c1 := testConnection("c1")
	c2 := testConnection("c2")

	registry.Join("restaurant_R1", c1)
	registry.Join("restaurant_R1", c2)
	assert.Equal(t, 1, registry.RoomCount())

	registry.Leave("restaurant_R1", c1)
	registry.Leave("restaurant_R1", c1)
	assert.Len(t, registry.Members("restaurant_R1"), 1)

	registry.Leave("restaurant_R1", c2)
	assert.Empty(t, registry.Members("restaurant_R1"))
	assert.Equal(t, 0, registry.RoomCount())
	assert.False(t, c2.InRoom("restaurant_R1"))
}

func TestInMemoryRegistry_LeaveUnknownRoom(t *testing.T) {
	registry := NewInMemoryRegistry(zap.NewNop())

	assert.NotPanics(t, func() {
		registry.Leave("missing", testConnection("c1"))
	})
}

func TestInMemoryRegistry_RemoveConnectionEverywhere(t *testing.T) {
	registry := NewInMemoryRegistry(zap.NewNop())
	c1 := testConnection("c1")
	c2 := testConnection("c2")

	rooms := []string{"user_U1", "order_O1", "drivers"}
	for _, room := range rooms {
		registry.Join(room, c1)
	}
	registry.Join("drivers", c2)

	registry.RemoveConnectionEverywhere(c1)

	for _, room := range rooms {
		for _, member := range registry.Members(room) {
			assert.NotEqual(t, c1.Id, member.Id, "room %s still holds the connection", room)
		}
	}
	assert.Empty(t, c1.Rooms())
	assert.Len(t, registry.Members("drivers"), 1)
	assert.Equal(t, 1, registry.RoomCount())
}

func TestInMemoryRegistry_MembersIsSnapshot(t *testing.T) {
	registry := NewInMemoryRegistry(zap.NewNop())
	c1 := testConnection("c1")
	c2 := testConnection("c2")
	registry.Join("drivers", c1)
	registry.Join("drivers", c2)

	members := registry.Members("drivers")
	for _, member := range members {
		registry.RemoveConnectionEverywhere(member)
	}

	assert.Len(t, members, 2)
	assert.Empty(t, registry.Members("drivers"))
}

func TestInMemoryRegistry_JoinClosedConnection(t *testing.T) {
	registry := NewInMemoryRegistry(zap.NewNop())
	connection := testConnection("c1")
	connection.markClosed()

	registry.Join("drivers", connection)

	assert.Empty(t, registry.Members("drivers"))
}

package broadcaster

import (
	"sync"
	"testing"
	"time"

	"github.com/goevery/tracker/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(options HubOptions) *Hub {
	logger := zap.NewNop()

	return NewHub(logger, NewInMemoryRegistry(logger), options)
}

func readFrame(t *testing.T, connection *Connection) wire.Frame {
	t.Helper()

	select {
	case frame := <-connection.Frames():
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")

		return wire.Frame{}
	}
}

func TestHub_OpenQueuesConnectedFrameAndJoinsUserRoom(t *testing.T) {
	hub := newTestHub(HubOptions{HeartbeatInterval: time.Hour})
	connection := hub.Open("U1")
	defer hub.Close(connection)

	frame := readFrame(t, connection)
	assert.Equal(t, wire.FrameTypeConnected, frame.Type)
	assert.Equal(t, "U1", frame.UserId)

	assert.True(t, connection.InRoom("user_U1"))
	assert.Len(t, hub.Members("user_U1"), 1)
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestHub_DispatchToEmptyRoom(t *testing.T) {
	hub := newTestHub(HubOptions{})

	assert.Equal(t, 0, hub.Dispatch("restaurant_R9", "order_notification", map[string]string{}))
}

func TestHub_DispatchDeliversExactlyOneFrame(t *testing.T) {
	hub := newTestHub(HubOptions{HeartbeatInterval: time.Hour})
	connection := hub.Open("U1")
	defer hub.Close(connection)
	readFrame(t, connection)

	hub.Join("order_O1", connection)

	delivered := hub.Dispatch("order_O1", "order_notification", map[string]string{"status": "PREPARING"})
	assert.Equal(t, 1, delivered)

	frame := readFrame(t, connection)
	assert.Equal(t, wire.FrameTypeEvent, frame.Type)
	assert.Equal(t, "order_notification", frame.Event)
	assert.Equal(t, "order_O1", frame.Room)
	assert.NotEmpty(t, frame.Id)
	assert.JSONEq(t, `{"status":"PREPARING"}`, string(frame.Data))

	select {
	case extra := <-connection.Frames():
		t.Fatalf("unexpected extra frame %+v", extra)
	default:
	}
}

func TestHub_DispatchPreservesPublishOrder(t *testing.T) {
	hub := newTestHub(HubOptions{HeartbeatInterval: time.Hour, SendBufferSize: 16})
	connection := hub.Open("U1")
	defer hub.Close(connection)
	readFrame(t, connection)

	for i := 0; i < 5; i++ {
		hub.Dispatch("user_U1", "tick", i)
	}

	for i := 0; i < 5; i++ {
		var got int
		require.NoError(t, readFrame(t, connection).Decode(&got))
		assert.Equal(t, i, got)
	}
}

func TestHub_DispatchClosesConnectionWithFullBuffer(t *testing.T) {
	hub := newTestHub(HubOptions{HeartbeatInterval: time.Hour, SendBufferSize: 1})
	slow := hub.Open("U1")
	fast := hub.Open("U2")
	defer hub.Close(fast)

	// slow keeps its connected frame buffered, so its next write fails.
	readFrame(t, fast)
	hub.Join("drivers", slow)
	hub.Join("drivers", fast)

	delivered := hub.Dispatch("drivers", "new_order_available", "O1")

	assert.Equal(t, 1, delivered)
	assert.True(t, slow.IsClosed())
	assert.Empty(t, slow.Rooms())
	assert.Len(t, hub.Members("drivers"), 1)
	assert.Empty(t, hub.Members("user_U1"))
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestHub_CloseRemovesConnectionFromEveryRoom(t *testing.T) {
	hub := newTestHub(HubOptions{HeartbeatInterval: time.Hour})
	connection := hub.Open("U1")
	rooms := []string{"restaurant_R1", "order_O1", "drivers"}
	for _, room := range rooms {
		hub.Join(room, connection)
	}

	hub.Close(connection)
	hub.Close(connection)

	for _, room := range append(rooms, "user_U1") {
		assert.Empty(t, hub.Members(room), room)
	}
	assert.Equal(t, 0, hub.RoomCount())
	assert.Equal(t, 0, hub.ConnectionCount())

	select {
	case <-connection.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestHub_JoinUserAndLeaveUser(t *testing.T) {
	hub := newTestHub(HubOptions{HeartbeatInterval: time.Hour})
	tab1 := hub.Open("U1")
	tab2 := hub.Open("U1")
	other := hub.Open("U2")
	defer hub.CloseAll()

	assert.Equal(t, 2, hub.JoinUser("U1", "order_O1"))
	assert.Len(t, hub.Members("order_O1"), 2)
	assert.False(t, other.InRoom("order_O1"))

	assert.Equal(t, 2, hub.LeaveUser("U1", "order_O1"))
	assert.False(t, tab1.InRoom("order_O1"))
	assert.False(t, tab2.InRoom("order_O1"))

	assert.Equal(t, 0, hub.JoinUser("nobody", "order_O1"))
}

func TestHub_Heartbeat(t *testing.T) {
	hub := newTestHub(HubOptions{HeartbeatInterval: 10 * time.Millisecond})
	connection := hub.Open("U1")
	defer hub.Close(connection)
	opened := connection.LastHeartbeat()

	readFrame(t, connection)
	frame := readFrame(t, connection)

	assert.Equal(t, wire.FrameTypeHeartbeat, frame.Type)
	assert.Eventually(t, func() bool {
		return connection.LastHeartbeat().After(opened)
	}, time.Second, 5*time.Millisecond)
}

func TestHub_HeartbeatFailureClosesConnection(t *testing.T) {
	hub := newTestHub(HubOptions{HeartbeatInterval: 5 * time.Millisecond, SendBufferSize: 1})
	connection := hub.Open("U1")

	assert.Eventually(t, connection.IsClosed, time.Second, 5*time.Millisecond)
	assert.Empty(t, hub.Members("user_U1"))
}

func TestHub_ConcurrentDispatchAndClose(t *testing.T) {
	hub := newTestHub(HubOptions{HeartbeatInterval: time.Hour, SendBufferSize: 2})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		connection := hub.Open("U1")
		hub.Join("drivers", connection)

		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Dispatch("drivers", "new_order_available", "O1")
		}()
		go func() {
			defer wg.Done()
			hub.Close(connection)
		}()
	}
	wg.Wait()

	hub.CloseAll()
	assert.Equal(t, 0, hub.ConnectionCount())
	assert.Equal(t, 0, hub.RoomCount())
}

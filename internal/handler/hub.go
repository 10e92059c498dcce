package handler

import "github.com/goevery/tracker/internal/broadcaster"

// RoomHub is the part of the connection hub the room handlers mutate.
type RoomHub interface {
	Join(room string, connection *broadcaster.Connection)
	Leave(room string, connection *broadcaster.Connection)
	JoinUser(subscriberId string, room string) int
	LeaveUser(subscriberId string, room string) int
}

// Package wire holds the frames pushed from the tracker to its subscribers
// and the names of the rooms they can be routed to.
package wire

import (
	"encoding/json"
	"time"
)

type FrameType string

const (
	FrameTypeConnected FrameType = "connected"
	FrameTypeHeartbeat FrameType = "heartbeat"
	FrameTypeEvent     FrameType = "event"
)

// Frame is the unit written to a push channel. Connected frames carry UserId,
// heartbeat frames only Timestamp, and event frames Event, Data and Room.
type Frame struct {
	Type      FrameType       `json:"type"`
	Id        string          `json:"id,omitempty"`
	UserId    string          `json:"userId,omitempty"`
	Event     string          `json:"event,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Room      string          `json:"room,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewConnectedFrame(userId string, now time.Time) Frame {
	return Frame{
		Type:      FrameTypeConnected,
		UserId:    userId,
		Timestamp: now,
	}
}

func NewHeartbeatFrame(now time.Time) Frame {
	return Frame{
		Type:      FrameTypeHeartbeat,
		Timestamp: now,
	}
}

// NewEventFrame marshals data once so the same frame can be written to every
// member of a room.
func NewEventFrame(id string, room string, event string, data any, now time.Time) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}

	return Frame{
		Type:      FrameTypeEvent,
		Id:        id,
		Event:     event,
		Data:      raw,
		Room:      room,
		Timestamp: now,
	}, nil
}

// Decode unmarshals the event data into v.
func (f Frame) Decode(v any) error {
	if len(f.Data) == 0 {
		return nil
	}

	return json.Unmarshal(f.Data, v)
}

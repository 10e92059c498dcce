package handler

import (
	"context"
	"time"

	"github.com/goevery/tracker/internal/broadcaster"
)

type HeartbeatRecorder interface {
	Touch(connection *broadcaster.Connection)
}

type HeartbeatResponse struct {
	Timestamp time.Time `json:"timestamp"`
}

type HeartbeatHandlerInterface interface {
	Handle(ctx context.Context) HeartbeatResponse
}

// HeartbeatHandler answers client pings and refreshes the connection's
// liveness mark when the ping arrived on one.
type HeartbeatHandler struct {
	recorder HeartbeatRecorder
}

func NewHeartbeatHandler(recorder HeartbeatRecorder) *HeartbeatHandler {
	return &HeartbeatHandler{
		recorder,
	}
}

func (h *HeartbeatHandler) Handle(ctx context.Context) HeartbeatResponse {
	if connection, ok := broadcaster.ConnectionFromContext(ctx); ok {
		h.recorder.Touch(connection)
	}

	return HeartbeatResponse{
		Timestamp: time.Now(),
	}
}

package handler

import (
	"context"
	"errors"
	"time"

	"github.com/goevery/tracker/internal/broadcaster"
	"github.com/goevery/tracker/internal/ierr"
)

type JoinRequest struct {
	Room string `json:"room"`
}

type JoinResponse struct {
	Room      string    `json:"room"`
	Timestamp time.Time `json:"timestamp"`
}

type JoinHandlerInterface interface {
	Handle(ctx context.Context, req JoinRequest) (JoinResponse, error)
}

// JoinHandler joins the connection the request arrived on.
type JoinHandler struct {
	nameValidator *NameValidator
	hub           RoomHub
}

func NewJoinHandler(
	nameValidator *NameValidator,
	hub RoomHub,
) *JoinHandler {
	return &JoinHandler{
		nameValidator,
		hub,
	}
}

func (h *JoinHandler) Handle(ctx context.Context, req JoinRequest) (JoinResponse, error) {
	err := h.nameValidator.ValidateRoom(req.Room)
	if err != nil {
		return JoinResponse{}, err
	}

	connection, ok := broadcaster.ConnectionFromContext(ctx)
	if !ok {
		return JoinResponse{}, errors.New("connection not found in context")
	}

	if connection.IsClosed() {
		return JoinResponse{}, ierr.New(ierr.ErrorCodeFailedPrecondition, errors.New("connection is closed"))
	}

	h.hub.Join(req.Room, connection)

	return JoinResponse{
		Room:      req.Room,
		Timestamp: time.Now(),
	}, nil
}

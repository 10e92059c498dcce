package handler

import (
	"context"
	"errors"

	"github.com/goevery/tracker/internal/broadcaster"
	"github.com/goevery/tracker/internal/ierr"
	"github.com/goevery/tracker/pkg/wire"
)

type LeaveRequest struct {
	Room string `json:"room"`
}

type LeaveResponse struct {
	Success bool `json:"success"`
}

type LeaveHandlerInterface interface {
	Handle(ctx context.Context, req LeaveRequest) (LeaveResponse, error)
}

type LeaveHandler struct {
	nameValidator *NameValidator
	hub           RoomHub
}

func NewLeaveHandler(
	nameValidator *NameValidator,
	hub RoomHub,
) *LeaveHandler {
	return &LeaveHandler{
		nameValidator,
		hub,
	}
}

func (h *LeaveHandler) Handle(ctx context.Context, req LeaveRequest) (LeaveResponse, error) {
	err := h.nameValidator.ValidateRoom(req.Room)
	if err != nil {
		return LeaveResponse{}, err
	}

	connection, ok := broadcaster.ConnectionFromContext(ctx)
	if !ok {
		return LeaveResponse{}, errors.New("connection not found in context")
	}

	if req.Room == wire.UserRoom(connection.SubscriberId) {
		return LeaveResponse{},
			ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("personal room cannot be left"))
	}

	h.hub.Leave(req.Room, connection)

	return LeaveResponse{
		Success: true,
	}, nil
}

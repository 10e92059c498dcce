package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/goevery/tracker/internal/ierr"
	"github.com/goevery/tracker/pkg/wire"
)

const (
	RoomActionJoin  = "join"
	RoomActionLeave = "leave"
)

type RoomsRequest struct {
	Action string `json:"action"`
	UserId string `json:"userId"`
	Room   string `json:"room"`
}

type RoomsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type RoomsHandlerInterface interface {
	Handle(ctx context.Context, req RoomsRequest) (RoomsResponse, error)
}

// RoomsHandler changes room membership for every open connection of a user.
type RoomsHandler struct {
	nameValidator *NameValidator
	hub           RoomHub
}

func NewRoomsHandler(
	nameValidator *NameValidator,
	hub RoomHub,
) *RoomsHandler {
	return &RoomsHandler{
		nameValidator,
		hub,
	}
}

func (h *RoomsHandler) Handle(ctx context.Context, req RoomsRequest) (RoomsResponse, error) {
	if err := h.nameValidator.ValidateUserId(req.UserId); err != nil {
		return RoomsResponse{}, err
	}

	if err := h.nameValidator.ValidateRoom(req.Room); err != nil {
		return RoomsResponse{}, err
	}

	var connections int

	switch req.Action {
	case RoomActionJoin:
		connections = h.hub.JoinUser(req.UserId, req.Room)
	case RoomActionLeave:
		if req.Room == wire.UserRoom(req.UserId) {
			return RoomsResponse{},
				ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("personal room cannot be left"))
		}

		connections = h.hub.LeaveUser(req.UserId, req.Room)
	default:
		return RoomsResponse{},
			ierr.New(ierr.ErrorCodeInvalidArgument, fmt.Errorf("unknown action %q", req.Action))
	}

	if connections == 0 {
		return RoomsResponse{},
			ierr.New(ierr.ErrorCodeNotFound, fmt.Errorf("user %s has no open connection", req.UserId))
	}

	return RoomsResponse{
		Success: true,
		Message: fmt.Sprintf("%s %s on %d connection(s)", pastTense(req.Action), req.Room, connections),
	}, nil
}

func pastTense(action string) string {
	if action == RoomActionJoin {
		return "joined"
	}

	return "left"
}

package handler

import (
	"context"
	"errors"

	"github.com/goevery/tracker/internal/auth"
	"github.com/goevery/tracker/internal/ierr"
	"github.com/goevery/tracker/internal/publisher"
)

type EmitRequest struct {
	Room  string `json:"room"`
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type EmitResponse struct {
	Success         bool `json:"success"`
	ConnectionCount int  `json:"connectionCount"`
}

type EmitHandlerInterface interface {
	Handle(ctx context.Context, req EmitRequest) (EmitResponse, error)
}

type EmitHandler struct {
	nameValidator *NameValidator
	publisher     publisher.Publisher
}

func NewEmitHandler(
	nameValidator *NameValidator,
	publisher publisher.Publisher,
) *EmitHandler {
	return &EmitHandler{
		nameValidator,
		publisher,
	}
}

// Handle succeeds with a zero count when nobody is in the room.
func (h *EmitHandler) Handle(ctx context.Context, req EmitRequest) (EmitResponse, error) {
	if err := requirePublisher(ctx); err != nil {
		return EmitResponse{}, err
	}

	if err := h.nameValidator.ValidateRoom(req.Room); err != nil {
		return EmitResponse{}, err
	}

	if err := h.nameValidator.ValidateEvent(req.Event); err != nil {
		return EmitResponse{}, err
	}

	connectionCount, err := h.publisher.Publish(ctx, req.Room, req.Event, req.Data)
	if err != nil {
		return EmitResponse{}, err
	}

	return EmitResponse{
		Success:         true,
		ConnectionCount: connectionCount,
	}, nil
}

func requirePublisher(ctx context.Context) error {
	authentication, ok := auth.AuthenticationFromContext(ctx)
	if !ok {
		return ierr.New(ierr.ErrorCodeUnauthenticated, errors.New("internal secret required"))
	}

	if !authentication.IsPublisher() {
		return ierr.New(ierr.ErrorCodePermissionDenied, errors.New("not authorized to publish events"))
	}

	return nil
}

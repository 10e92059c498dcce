package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/goevery/tracker/internal/ierr"
	"github.com/goevery/tracker/internal/lifecycle"
	"github.com/goevery/tracker/internal/store"
	"go.uber.org/zap"
)

type OrderController interface {
	Apply(ctx context.Context, order lifecycle.Order, newStatus lifecycle.Status, driver *lifecycle.Driver) (lifecycle.Outcome, error)
	LocationPing(ctx context.Context, order lifecycle.Order, driver lifecycle.Driver) (lifecycle.Outcome, bool)
}

type TransitionRequest struct {
	OrderId string `json:"-"`
	From    string `json:"from"`
	To      string `json:"to"`
}

type TransitionResponse struct {
	Success         bool     `json:"success"`
	Publications    int      `json:"publications"`
	TargetRooms     []string `json:"targetRooms"`
	ConnectionCount int      `json:"connectionCount"`
}

type TransitionHandlerInterface interface {
	Handle(ctx context.Context, req TransitionRequest) (TransitionResponse, error)
}

// TransitionHandler is called by the main application after it has committed
// a status change, so the stored order must already carry the new status.
type TransitionHandler struct {
	logger     *zap.Logger
	store      store.Store
	controller OrderController
}

func NewTransitionHandler(
	logger *zap.Logger,
	store store.Store,
	controller OrderController,
) *TransitionHandler {
	return &TransitionHandler{
		logger,
		store,
		controller,
	}
}

func (h *TransitionHandler) Handle(ctx context.Context, req TransitionRequest) (TransitionResponse, error) {
	if err := requirePublisher(ctx); err != nil {
		return TransitionResponse{}, err
	}

	if req.OrderId == "" {
		return TransitionResponse{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("orderId is required"))
	}

	from, err := lifecycle.ParseStatus(req.From)
	if err != nil {
		return TransitionResponse{}, err
	}

	to, err := lifecycle.ParseStatus(req.To)
	if err != nil {
		return TransitionResponse{}, err
	}

	order, err := h.store.GetOrder(ctx, req.OrderId)
	if err != nil {
		return TransitionResponse{}, err
	}

	if order.Status != to {
		return TransitionResponse{}, ierr.New(ierr.ErrorCodeFailedPrecondition,
			fmt.Errorf("order %s is %s in the store, expected %s", order.Id, order.Status, to))
	}

	driver, err := h.loadDriver(ctx, order.DriverId)
	if err != nil {
		return TransitionResponse{}, err
	}

	order.Status = from

	outcome, err := h.controller.Apply(ctx, order, to, driver)
	if err != nil {
		return TransitionResponse{}, err
	}

	return TransitionResponse{
		Success:         true,
		Publications:    len(outcome.Plan.Publications),
		TargetRooms:     outcome.Plan.TargetRooms,
		ConnectionCount: outcome.ConnectionCount,
	}, nil
}

// loadDriver tolerates a dangling driver reference; the events that need a
// driver are skipped by the controller instead.
func (h *TransitionHandler) loadDriver(ctx context.Context, driverId string) (*lifecycle.Driver, error) {
	if driverId == "" {
		return nil, nil
	}

	driver, err := h.store.GetDriver(ctx, driverId)
	if ierr.HasCode(err, ierr.ErrorCodeNotFound) {
		h.logger.Warn("assigned driver not found", zap.String("driverId", driverId))

		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &driver, nil
}

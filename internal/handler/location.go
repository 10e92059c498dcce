package handler

import (
	"context"
	"errors"

	"github.com/goevery/tracker/internal/ierr"
	"github.com/goevery/tracker/internal/store"
)

type LocationRequest struct {
	DriverId string `json:"-"`
}

type LocationResponse struct {
	Success         bool `json:"success"`
	Orders          int  `json:"orders"`
	ConnectionCount int  `json:"connectionCount"`
}

type LocationHandlerInterface interface {
	Handle(ctx context.Context, req LocationRequest) (LocationResponse, error)
}

// LocationHandler pushes the driver's stored position to every order the
// driver is delivering. Orders whose position did not move are skipped.
type LocationHandler struct {
	store      store.Store
	controller OrderController
}

func NewLocationHandler(
	store store.Store,
	controller OrderController,
) *LocationHandler {
	return &LocationHandler{
		store,
		controller,
	}
}

func (h *LocationHandler) Handle(ctx context.Context, req LocationRequest) (LocationResponse, error) {
	if err := requirePublisher(ctx); err != nil {
		return LocationResponse{}, err
	}

	if req.DriverId == "" {
		return LocationResponse{}, ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("driverId is required"))
	}

	driver, err := h.store.GetDriver(ctx, req.DriverId)
	if err != nil {
		return LocationResponse{}, err
	}

	if driver.Location == nil {
		return LocationResponse{Success: true}, nil
	}

	orders, err := h.store.ActiveDeliveries(ctx, driver.Id)
	if err != nil {
		return LocationResponse{}, err
	}

	response := LocationResponse{Success: true}
	for _, order := range orders {
		outcome, published := h.controller.LocationPing(ctx, order, driver)
		if !published {
			continue
		}

		response.Orders++
		response.ConnectionCount += outcome.ConnectionCount
	}

	return response, nil
}

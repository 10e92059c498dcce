// Package store reads the order and driver records owned by the main
// application. The tracker never writes to it.
package store

import (
	"context"

	"github.com/goevery/tracker/internal/lifecycle"
)

type Store interface {
	GetOrder(ctx context.Context, orderId string) (lifecycle.Order, error)
	GetDriver(ctx context.Context, driverId string) (lifecycle.Driver, error)
	// ActiveDeliveries lists the orders the driver is currently delivering.
	ActiveDeliveries(ctx context.Context, driverId string) ([]lifecycle.Order, error)
}

package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/goevery/tracker/internal/publisher"
	"go.uber.org/zap"
)

type Outcome struct {
	Plan            Plan
	ConnectionCount int
}

// Controller publishes the plans computed by Transition and LocationUpdate.
// It must be called after the data store has committed the change.
type Controller struct {
	logger    *zap.Logger
	publisher publisher.Publisher
	now       func() time.Time

	mu            sync.Mutex
	lastLocations map[string]Coordinates
}

func NewController(logger *zap.Logger, publisher publisher.Publisher) *Controller {
	return &Controller{
		logger:        logger,
		publisher:     publisher,
		now:           time.Now,
		lastLocations: make(map[string]Coordinates),
	}
}

// Apply validates the transition of order to newStatus and publishes every
// event it implies.
func (c *Controller) Apply(ctx context.Context, order Order, newStatus Status, driver *Driver) (Outcome, error) {
	plan, err := Transition(order, newStatus, driver, c.now())
	if err != nil {
		return Outcome{}, err
	}

	switch {
	case newStatus.IsTerminal():
		c.forgetLocation(order.Id)
	case newStatus == StatusOutForDelivery && driver != nil && driver.Location != nil:
		c.rememberLocation(order.Id, *driver.Location)
	}

	outcome := Outcome{
		Plan:            plan,
		ConnectionCount: c.publish(ctx, plan),
	}

	c.logger.Info("order transition published",
		zap.String("orderId", order.Id),
		zap.String("from", string(order.Status)),
		zap.String("to", string(newStatus)),
		zap.Int("publications", len(plan.Publications)),
		zap.Int("connectionCount", outcome.ConnectionCount))

	return outcome, nil
}

// LocationPing publishes the driver's position for an order out for
// delivery, unless it matches the last position published for that order.
func (c *Controller) LocationPing(ctx context.Context, order Order, driver Driver) (Outcome, bool) {
	plan := LocationUpdate(order, driver, c.now())
	if len(plan.Publications) == 0 {
		return Outcome{}, false
	}

	if !c.rememberLocation(order.Id, *driver.Location) {
		return Outcome{}, false
	}

	return Outcome{
		Plan:            plan,
		ConnectionCount: c.publish(ctx, plan),
	}, true
}

func (c *Controller) publish(ctx context.Context, plan Plan) int {
	delivered := 0

	for _, publication := range plan.Publications {
		count, err := c.publisher.Publish(ctx, publication.Room, publication.Event, publication.Data)
		if err != nil {
			c.logger.Warn("failed to publish event",
				zap.String("room", publication.Room),
				zap.String("event", publication.Event),
				zap.Error(err))

			continue
		}

		delivered += count
	}

	return delivered
}

// rememberLocation reports whether the coordinates differ from the last ones
// recorded for the order.
func (c *Controller) rememberLocation(orderId string, location Coordinates) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.lastLocations[orderId]; ok && last == location {
		return false
	}

	c.lastLocations[orderId] = location

	return true
}

func (c *Controller) forgetLocation(orderId string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.lastLocations, orderId)
}

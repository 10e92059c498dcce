// Package publisher is the narrow entry point business logic uses to put an
// event into a room. Delivery is best-effort: the returned count is the
// number of local connections written to, never an acknowledgment.
package publisher

import (
	"context"

	"github.com/goevery/tracker/internal/broadcaster"
)

type Publisher interface {
	Publish(ctx context.Context, room string, event string, data any) (int, error)
}

type Dispatcher interface {
	Dispatch(room string, event string, payload any) int
}

// Local publishes into the hub of the current process.
type Local struct {
	dispatcher Dispatcher
}

func NewLocal(hub *broadcaster.Hub) *Local {
	return &Local{
		dispatcher: hub,
	}
}

func NewLocalWithDispatcher(dispatcher Dispatcher) *Local {
	return &Local{
		dispatcher: dispatcher,
	}
}

func (p *Local) Publish(ctx context.Context, room string, event string, data any) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return p.dispatcher.Dispatch(room, event, data), nil
}

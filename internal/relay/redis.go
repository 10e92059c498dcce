// Package relay fans published events out to every tracker process through
// Redis pub/sub. Each process keeps its own in-memory rooms; the relay only
// carries events between them.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/goevery/tracker/internal/publisher"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultChannelPrefix = "tracker:"

type redisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	PSubscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type envelope struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Relay dispatches to the local hub first and then forwards the event, so
// the returned count covers local connections only.
type Relay struct {
	logger     *zap.Logger
	client     redisClient
	dispatcher publisher.Dispatcher
	prefix     string
	origin     string
}

func NewRelay(
	logger *zap.Logger,
	client redisClient,
	dispatcher publisher.Dispatcher,
	prefix string,
) *Relay {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}

	origin := uuid.NewString()

	return &Relay{
		logger:     logger.With(zap.String("component", "relay"), zap.String("origin", origin)),
		client:     client,
		dispatcher: dispatcher,
		prefix:     prefix,
		origin:     origin,
	}
}

func (r *Relay) Origin() string {
	return r.origin
}

func (r *Relay) Publish(ctx context.Context, room string, event string, data any) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return 0, err
	}

	delivered := r.dispatcher.Dispatch(room, event, json.RawMessage(raw))

	payload, err := json.Marshal(envelope{
		Origin: r.origin,
		Room:   room,
		Event:  event,
		Data:   raw,
	})
	if err != nil {
		return delivered, err
	}

	// Remote delivery failures are logged only.
	if err := r.client.Publish(ctx, r.prefix+room, payload).Err(); err != nil {
		r.logger.Warn("failed to relay event",
			zap.String("room", room),
			zap.String("event", event),
			zap.Error(err))
	}

	return delivered, nil
}

// Run consumes events relayed by other processes until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	r.logger.Info("relay subscribed",
		zap.String("pattern", r.prefix+"*"))

	messages := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case message, ok := <-messages:
			if !ok {
				return errors.New("relay subscription closed")
			}

			r.handle(message)
		}
	}
}

func (r *Relay) handle(message *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(message.Payload), &env); err != nil {
		r.logger.Warn("dropping malformed relayed event",
			zap.String("channel", message.Channel),
			zap.Error(err))

		return
	}

	if env.Origin == r.origin {
		return
	}

	if env.Room == "" {
		env.Room = strings.TrimPrefix(message.Channel, r.prefix)
	}

	delivered := r.dispatcher.Dispatch(env.Room, env.Event, env.Data)

	r.logger.Debug("relayed event dispatched",
		zap.String("room", env.Room),
		zap.String("event", env.Event),
		zap.Int("connectionCount", delivered))
}

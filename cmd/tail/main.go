// Command tail subscribes to a tracker as one user and logs every event the
// user receives.
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/goevery/tracker/pkg/subscriber"
	"github.com/goevery/tracker/pkg/wire"
	"go.uber.org/zap"
)

type Settings struct {
	TrackerURL string `env:"TRACKER_URL,default=http://localhost:8000"`
	UserId     string `env:"TRACKER_USER_ID,required=true"`
	Rooms      string `env:"TRACKER_ROOMS"`
	Events     string `env:"TRACKER_EVENTS"`

	LogEncoding string `env:"LOG_ENCODING,default=console"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
}

var defaultEvents = []string{
	"order_notification",
	"new_order_available",
	"order_taken",
	"driver_assigned",
	"driver_location_update",
}

func main() {
	var settings Settings
	_, err := env.UnmarshalFromEnviron(&settings)
	if err != nil {
		panic(fmt.Sprintf("failed to parse settings from environment: %v", err))
	}

	logger, err := newLogger(settings.LogEncoding, settings.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	manager := subscriber.NewManager(
		settings.UserId,
		subscriber.NewHTTPTransport(settings.TrackerURL, nil),
		subscriber.Options{
			Logger: logger,
			OnStateChange: func(state subscriber.State) {
				logger.Info("state changed", zap.String("state", string(state)))
			},
		},
	)

	events := splitList(settings.Events)
	if len(events) == 0 {
		events = defaultEvents
	}

	for _, event := range events {
		manager.AddEventListener(event, func(frame wire.Frame) {
			logger.Info(fmt.Sprintf("%s on %s", frame.Event, frame.Room),
				zap.String("id", frame.Id),
				zap.ByteString("data", frame.Data),
				zap.Time("timestamp", frame.Timestamp))
		})
	}

	for _, room := range splitList(settings.Rooms) {
		if err := manager.Join(ctx, room); err != nil {
			logger.Fatal("failed to join room", zap.String("room", room), zap.Error(err))
		}
	}

	err = manager.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("subscription ended", zap.Error(err))
	}
}

// newLogger writes events to stderr, as JSON lines when encoding is "json".
func newLogger(encoding string, level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	config := zap.NewDevelopmentConfig()
	if encoding == "json" {
		config = zap.NewProductionConfig()
		config.Sampling = nil
	}
	config.Level = atomicLevel
	config.DisableStacktrace = true

	return config.Build()
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}

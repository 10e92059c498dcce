package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/goevery/tracker/internal/auth"
	"github.com/goevery/tracker/internal/broadcaster"
	"github.com/goevery/tracker/internal/handler"
	"github.com/goevery/tracker/internal/lifecycle"
	"github.com/goevery/tracker/internal/publisher"
	"github.com/goevery/tracker/internal/relay"
	"github.com/goevery/tracker/internal/server"
	"github.com/goevery/tracker/internal/store/mongodb"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	logger   *zap.Logger
	settings Settings

	hub             *broadcaster.Hub
	relay           *relay.Relay
	websocketServer *server.WebSocketServer
	sseServer       *server.SSEServer
	restServer      *server.RESTServer

	closers []func(ctx context.Context) error
}

func NewApp(ctx context.Context, logger *zap.Logger, settings Settings) (*App, error) {
	app := &App{
		logger:   logger,
		settings: settings,
	}

	registry := broadcaster.NewInMemoryRegistry(logger)
	hub := broadcaster.NewHub(logger, registry, broadcaster.HubOptions{
		HeartbeatInterval: settings.HeartbeatInterval(),
		SendBufferSize:    settings.SendBufferSize,
	})
	app.hub = hub

	var pub publisher.Publisher = publisher.NewLocal(hub)

	if settings.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     settings.RedisAddr,
			Password: settings.RedisPassword,
		})
		app.closers = append(app.closers, func(context.Context) error { return redisClient.Close() })

		app.relay = relay.NewRelay(logger, redisClient, hub, settings.RedisChannelPrefix)
		pub = app.relay

		logger.Info("redis relay enabled",
			zap.String("address", settings.RedisAddr),
			zap.String("origin", app.relay.Origin()))
	}

	authenticator := auth.NewAuthenticator(settings.InternalSecret)
	nameValidator := handler.NewNameValidator()

	app.restServer = server.NewRESTServer(
		logger,
		authenticator,
		hub,
		handler.NewEmitHandler(nameValidator, pub),
		handler.NewRoomsHandler(nameValidator, hub),
	)

	if settings.MongoURI != "" {
		mongoClient, err := mongo.Connect(options.Client().ApplyURI(settings.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		app.closers = append(app.closers, mongoClient.Disconnect)

		if err := mongoClient.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to ping mongodb: %w", err)
		}

		orderStore := mongodb.NewStore(mongoClient, settings.MongoDatabase)
		controller := lifecycle.NewController(logger, pub)

		app.restServer.WithOrderHandlers(
			handler.NewTransitionHandler(logger, orderStore, controller),
			handler.NewLocationHandler(orderStore, controller),
		)

		logger.Info("order endpoints enabled",
			zap.String("database", settings.MongoDatabase))
	}

	originChecker := server.NewOriginChecker(settings.Origins())
	websocketUpgrader := &websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CheckOrigin:       originChecker.Check,
		EnableCompression: true,
	}

	router := server.NewRouter(
		logger,
		handler.NewHeartbeatHandler(hub),
		handler.NewJoinHandler(nameValidator, hub),
		handler.NewLeaveHandler(nameValidator, hub),
	)

	app.websocketServer = server.NewWebSocketServer(logger, websocketUpgrader, hub, nameValidator, router)
	app.sseServer = server.NewSSEServer(logger, hub, nameValidator)

	return app, nil
}

// Run serves until SIGTERM or SIGINT, then drains open streams and shuts the
// http server down.
func (a *App) Run(ctx context.Context) error {
	notifyCtx, notifyCtxCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer notifyCtxCancel()

	group, groupCtx := errgroup.WithContext(notifyCtx)

	if a.relay != nil {
		group.Go(func() error {
			return a.relay.Run(groupCtx)
		})
	}

	group.Go(func() error {
		return a.serveHttp(groupCtx)
	})

	err := group.Wait()

	a.close()

	return err
}

func (a *App) serveHttp(ctx context.Context) error {
	address := fmt.Sprintf("0.0.0.0:%d", a.settings.Port)

	router := mux.NewRouter()
	if a.settings.BasePath != "" {
		router = router.PathPrefix(a.settings.BasePath).Subrouter()
	}

	a.restServer.Register(router)
	a.sseServer.Register(router)
	a.websocketServer.Register(router)

	httpServer := &http.Server{
		Addr:    address,
		Handler: router,
	}

	a.logger.Info("starting http server",
		zap.String("address", address))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	a.logger.Info("stopping http server",
		zap.Int("connections", a.hub.ConnectionCount()))

	// Streams never end on their own, so they are released before Shutdown
	// waits for in-flight requests.
	a.hub.CloseAll()

	shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), a.settings.ShutdownTimeout())
	defer shutdownCtxCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	a.logger.Info("http server stopped")

	return nil
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.settings.ShutdownTimeout())
	defer cancel()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("failed to release resource", zap.Error(err))
		}
	}
}

func main() {
	ctx := context.Background()

	var settings Settings
	_, err := env.UnmarshalFromEnviron(&settings)
	if err != nil {
		panic(fmt.Sprintf("failed to parse settings from environment: %v", err))
	}

	logger, err := buildZapLogger(settings.LogEncoding, settings.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	defer logger.Sync()

	app, err := NewApp(ctx, logger, settings)
	if err != nil {
		logger.Fatal("failed to setup", zap.Error(err))
	}

	if err := app.Run(ctx); err != nil {
		logger.Fatal("tracker stopped with error", zap.Error(err))
	}
}

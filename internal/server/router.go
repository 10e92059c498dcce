package server

import (
	"context"
	"fmt"

	"github.com/goevery/tracker/internal/broadcaster"
	"github.com/goevery/tracker/internal/handler"
	"github.com/goevery/tracker/internal/ierr"
	"go.uber.org/zap"
)

type method func(ctx context.Context, request handler.Request) (any, error)

// Router dispatches the requests a websocket client sends over its socket.
type Router struct {
	logger  *zap.Logger
	methods map[string]method
}

func NewRouter(
	logger *zap.Logger,
	heartbeatHandler handler.HeartbeatHandlerInterface,
	joinHandler handler.JoinHandlerInterface,
	leaveHandler handler.LeaveHandlerInterface,
) *Router {
	return &Router{
		logger: logger,
		methods: map[string]method{
			handler.MethodHeartbeat: func(ctx context.Context, _ handler.Request) (any, error) {
				return heartbeatHandler.Handle(ctx), nil
			},
			handler.MethodJoin: func(ctx context.Context, request handler.Request) (any, error) {
				var params handler.JoinRequest
				if err := request.DecodeParams(&params); err != nil {
					return nil, err
				}

				return joinHandler.Handle(ctx, params)
			},
			handler.MethodLeave: func(ctx context.Context, request handler.Request) (any, error) {
				var params handler.LeaveRequest
				if err := request.DecodeParams(&params); err != nil {
					return nil, err
				}

				return leaveHandler.Handle(ctx, params)
			},
		},
	}
}

// RouteRequest returns nil for notifications.
func (r *Router) RouteRequest(ctx context.Context, request handler.Request) *handler.Response {
	logger := r.logger.With(zap.String("method", request.Method))
	if connection, ok := broadcaster.ConnectionFromContext(ctx); ok {
		logger = logger.With(zap.String("connectionId", connection.Id))
	}

	result, err := r.Handle(ctx, request)

	if !request.ReplyExpected() {
		if err != nil {
			logger.Debug("notification failed", zap.Error(err))
		}

		return nil
	}

	var response handler.Response
	if err == nil {
		response, err = request.Reply(result)
	}
	if err != nil {
		response = request.ReplyWithError(toRPCError(logger, err))
	}

	return &response
}

func (r *Router) Handle(ctx context.Context, request handler.Request) (any, error) {
	call, ok := r.methods[request.Method]
	if !ok {
		return nil, ierr.New(ierr.ErrorCodeNotFound, fmt.Errorf("method not found: %s", request.Method))
	}

	return call(ctx, request)
}

func toRPCError(logger *zap.Logger, err error) ierr.Error {
	if known, ok := ierr.As(err); ok {
		return known
	}

	logger.Error("websocket request failed", zap.Error(err))

	return ierr.New(ierr.ErrorCodeInternal, fmt.Errorf("internal error"))
}

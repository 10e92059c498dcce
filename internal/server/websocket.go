package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/goevery/tracker/internal/broadcaster"
	"github.com/goevery/tracker/internal/handler"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	websocketReadLimit    = 4096
	websocketWriteTimeout = 10 * time.Second
)

// WebSocketServer carries the same frames as the SSE stream and also accepts
// JSON-RPC requests from the client.
type WebSocketServer struct {
	logger        *zap.Logger
	upgrader      *websocket.Upgrader
	hub           *broadcaster.Hub
	nameValidator *handler.NameValidator
	router        *Router
}

func NewWebSocketServer(
	logger *zap.Logger,
	upgrader *websocket.Upgrader,
	hub *broadcaster.Hub,
	nameValidator *handler.NameValidator,
	router *Router,
) *WebSocketServer {
	return &WebSocketServer{
		logger,
		upgrader,
		hub,
		nameValidator,
		router,
	}
}

func (s *WebSocketServer) Register(router *mux.Router) {
	router.HandleFunc("/websocket/{userId}", s.serve).Methods("GET")
}

func (s *WebSocketServer) serve(w http.ResponseWriter, r *http.Request) {
	userId := mux.Vars(r)["userId"]
	if err := s.nameValidator.ValidateUserId(userId); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(websocketReadLimit)

	connection := s.hub.Open(userId)
	defer s.hub.Close(connection)

	logger := s.logger.With(
		zap.String("connectionId", connection.Id),
		zap.String("subscriberId", userId))

	writer := &socketWriter{conn: conn}

	ctx, cancel := context.WithCancel(broadcaster.WithConnection(context.Background(), connection))
	defer cancel()

	go s.pump(ctx, logger, connection, writer)

	for {
		var request handler.Request
		err := conn.ReadJSON(&request)
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				logger.Debug("invalid websocket message, closing connection", zap.Error(err))
				writer.close(websocket.CloseUnsupportedData, "invalid message")
			}

			return
		}

		response := s.router.RouteRequest(ctx, request)
		if response == nil {
			continue
		}

		if err := writer.writeJSON(response); err != nil {
			logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

// pump forwards hub frames to the socket until the read loop ends or the
// hub discards the connection.
func (s *WebSocketServer) pump(
	ctx context.Context,
	logger *zap.Logger,
	connection *broadcaster.Connection,
	writer *socketWriter,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-connection.Done():
			writer.close(websocket.CloseGoingAway, "connection closed")
			return
		case frame := <-connection.Frames():
			if err := writer.writeJSON(frame); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				s.hub.Close(connection)
				return
			}
		}
	}
}

// socketWriter serializes writes; gorilla connections allow one writer at a
// time.
type socketWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *socketWriter) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_ = w.conn.SetWriteDeadline(time.Now().Add(websocketWriteTimeout))

	return w.conn.WriteJSON(v)
}

func (w *socketWriter) close(code int, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	_ = w.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(time.Second),
	)
}

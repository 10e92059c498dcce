package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/goevery/tracker/internal/broadcaster"
	"github.com/goevery/tracker/internal/handler"
	"github.com/goevery/tracker/internal/ierr"
	"github.com/goevery/tracker/pkg/wire"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SSEServer streams a subscriber's frames as a text/event-stream response.
type SSEServer struct {
	logger        *zap.Logger
	hub           *broadcaster.Hub
	nameValidator *handler.NameValidator
}

func NewSSEServer(
	logger *zap.Logger,
	hub *broadcaster.Hub,
	nameValidator *handler.NameValidator,
) *SSEServer {
	return &SSEServer{
		logger,
		hub,
		nameValidator,
	}
}

func (s *SSEServer) Register(router *mux.Router) {
	router.HandleFunc("/sse/{userId}", s.serve).Methods("GET")
}

func (s *SSEServer) serve(w http.ResponseWriter, r *http.Request) {
	userId := mux.Vars(r)["userId"]
	if err := s.nameValidator.ValidateUserId(userId); err != nil {
		writeError(s.logger, w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(s.logger, w, r, ierr.New(ierr.ErrorCodeInternal, errors.New("streaming unsupported")))
		return
	}

	connection := s.hub.Open(userId)
	defer s.hub.Close(connection)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := s.logger.With(
		zap.String("connectionId", connection.Id),
		zap.String("subscriberId", userId))

	for {
		select {
		case <-r.Context().Done():
			logger.Debug("sse client went away")
			return
		case <-connection.Done():
			return
		case frame := <-connection.Frames():
			if err := writeSSEFrame(w, frame); err != nil {
				logger.Debug("sse write failed", zap.Error(err))
				return
			}

			flusher.Flush()
		}
	}
}

func writeSSEFrame(w http.ResponseWriter, frame wire.Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)

	return err
}

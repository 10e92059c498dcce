package server

import (
	"net/http"

	"github.com/goevery/tracker/internal/auth"
	"github.com/goevery/tracker/internal/handler"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Stats interface {
	ConnectionCount() int
	RoomCount() int
}

type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
}

type RESTServer struct {
	logger        *zap.Logger
	authenticator *auth.Authenticator
	stats         Stats

	emitHandler       handler.EmitHandlerInterface
	roomsHandler      handler.RoomsHandlerInterface
	transitionHandler handler.TransitionHandlerInterface
	locationHandler   handler.LocationHandlerInterface
}

func NewRESTServer(
	logger *zap.Logger,
	authenticator *auth.Authenticator,
	stats Stats,
	emitHandler handler.EmitHandlerInterface,
	roomsHandler handler.RoomsHandlerInterface,
) *RESTServer {
	return &RESTServer{
		logger:        logger,
		authenticator: authenticator,
		stats:         stats,
		emitHandler:   emitHandler,
		roomsHandler:  roomsHandler,
	}
}

// WithOrderHandlers enables the order transition and driver location
// endpoints. They need a store, so they are off by default.
func (s *RESTServer) WithOrderHandlers(
	transitionHandler handler.TransitionHandlerInterface,
	locationHandler handler.LocationHandlerInterface,
) *RESTServer {
	s.transitionHandler = transitionHandler
	s.locationHandler = locationHandler

	return s
}

func (s *RESTServer) Register(router *mux.Router) {
	router.HandleFunc("/healthz", s.health).Methods("GET")

	router.Handle("/rooms", allowCORS(http.HandlerFunc(s.rooms))).Methods("POST", "OPTIONS")

	internal := router.NewRoute().Subrouter()
	internal.Use(s.authenticator.Middleware(s.onError))

	internal.HandleFunc("/emit", s.emit).Methods("POST")

	if s.transitionHandler != nil {
		internal.HandleFunc("/orders/{orderId}/transitions", s.transition).Methods("POST")
	}

	if s.locationHandler != nil {
		internal.HandleFunc("/drivers/{driverId}/location", s.location).Methods("POST")
	}
}

func (s *RESTServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Connections: s.stats.ConnectionCount(),
		Rooms:       s.stats.RoomCount(),
	})
}

func (s *RESTServer) emit(w http.ResponseWriter, r *http.Request) {
	var emitRequest handler.EmitRequest
	if err := decodeBody(r, &emitRequest); err != nil {
		s.onError(w, r, err)
		return
	}

	emitResponse, err := s.emitHandler.Handle(r.Context(), emitRequest)
	if err != nil {
		s.onError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, emitResponse)
}

func (s *RESTServer) rooms(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		return
	}

	var roomsRequest handler.RoomsRequest
	if err := decodeBody(r, &roomsRequest); err != nil {
		s.onError(w, r, err)
		return
	}

	roomsResponse, err := s.roomsHandler.Handle(r.Context(), roomsRequest)
	if err != nil {
		s.onError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, roomsResponse)
}

func (s *RESTServer) transition(w http.ResponseWriter, r *http.Request) {
	var transitionRequest handler.TransitionRequest
	if err := decodeBody(r, &transitionRequest); err != nil {
		s.onError(w, r, err)
		return
	}
	transitionRequest.OrderId = mux.Vars(r)["orderId"]

	transitionResponse, err := s.transitionHandler.Handle(r.Context(), transitionRequest)
	if err != nil {
		s.onError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, transitionResponse)
}

func (s *RESTServer) location(w http.ResponseWriter, r *http.Request) {
	locationResponse, err := s.locationHandler.Handle(r.Context(), handler.LocationRequest{
		DriverId: mux.Vars(r)["driverId"],
	})
	if err != nil {
		s.onError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, locationResponse)
}

func (s *RESTServer) onError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(s.logger, w, r, err)
}

func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		next.ServeHTTP(w, r)
	})
}

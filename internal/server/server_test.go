package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goevery/tracker/internal/auth"
	"github.com/goevery/tracker/internal/broadcaster"
	"github.com/goevery/tracker/internal/handler"
	"github.com/goevery/tracker/internal/lifecycle"
	"github.com/goevery/tracker/internal/publisher"
	"github.com/goevery/tracker/internal/store"
	"github.com/goevery/tracker/pkg/wire"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type testEnv struct {
	hub    *broadcaster.Hub
	store  *store.MockStore
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	hub := broadcaster.NewHub(logger, broadcaster.NewInMemoryRegistry(logger), broadcaster.HubOptions{
		HeartbeatInterval: time.Hour,
	})

	authenticator := auth.NewAuthenticator(testSecret)
	nameValidator := handler.NewNameValidator()
	pub := publisher.NewLocal(hub)
	controller := lifecycle.NewController(logger, pub)
	orderStore := store.NewMockStore(t)

	restServer := NewRESTServer(
		logger,
		authenticator,
		hub,
		handler.NewEmitHandler(nameValidator, pub),
		handler.NewRoomsHandler(nameValidator, hub),
	).WithOrderHandlers(
		handler.NewTransitionHandler(logger, orderStore, controller),
		handler.NewLocationHandler(orderStore, controller),
	)

	rpcRouter := NewRouter(
		logger,
		handler.NewHeartbeatHandler(hub),
		handler.NewJoinHandler(nameValidator, hub),
		handler.NewLeaveHandler(nameValidator, hub),
	)

	websocketServer := NewWebSocketServer(logger, &websocket.Upgrader{}, hub, nameValidator, rpcRouter)
	sseServer := NewSSEServer(logger, hub, nameValidator)

	router := mux.NewRouter()
	restServer.Register(router)
	sseServer.Register(router)
	websocketServer.Register(router)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.CloseAll()
		server.Close()
	})

	return &testEnv{
		hub,
		orderStore,
		server,
	}
}

func (e *testEnv) post(t *testing.T, path string, secret string, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest("POST", e.server.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(auth.SecretHeader, secret)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))

	return resp, decoded
}

type sseStream struct {
	frames chan wire.Frame
}

func (e *testEnv) openSSE(t *testing.T, userId string) *sseStream {
	t.Helper()

	resp, err := http.Get(e.server.URL + "/sse/" + userId)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	stream := &sseStream{frames: make(chan wire.Frame, 16)}

	go func() {
		defer close(stream.frames)

		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}

			payload, ok := strings.CutPrefix(strings.TrimRight(line, "\n"), "data: ")
			if !ok {
				continue
			}

			var frame wire.Frame
			if json.Unmarshal([]byte(payload), &frame) == nil {
				stream.frames <- frame
			}
		}
	}()

	t.Cleanup(func() { _ = resp.Body.Close() })

	return stream
}

func (s *sseStream) next(t *testing.T) wire.Frame {
	t.Helper()

	select {
	case frame, ok := <-s.frames:
		require.True(t, ok, "stream ended")

		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sse frame")

		return wire.Frame{}
	}
}

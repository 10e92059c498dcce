package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/goevery/tracker/internal/ierr"
	"github.com/goevery/tracker/internal/lifecycle"
	"github.com/goevery/tracker/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRESTServer_Emit(t *testing.T) {
	env := newTestEnv(t)
	connection := env.hub.Open("U1")

	t.Run("valid secret", func(t *testing.T) {
		resp, body := env.post(t, "/emit", testSecret,
			`{"room":"user_U1","event":"order_notification","data":{"orderId":"O1"}}`)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(1), body["connectionCount"])

		<-connection.Frames()
		frame := <-connection.Frames()
		assert.Equal(t, "order_notification", frame.Event)
		assert.JSONEq(t, `{"orderId":"O1"}`, string(frame.Data))
	})

	t.Run("empty room", func(t *testing.T) {
		resp, body := env.post(t, "/emit", testSecret, `{"room":"restaurant_R2","event":"order_notification"}`)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(0), body["connectionCount"])
	})

	t.Run("invalid secret", func(t *testing.T) {
		resp, body := env.post(t, "/emit", "nope", `{"room":"user_U1","event":"order_notification"}`)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, false, body["success"])
	})

	t.Run("missing secret", func(t *testing.T) {
		resp, _ := env.post(t, "/emit", "", `{"room":"user_U1","event":"order_notification"}`)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing event", func(t *testing.T) {
		resp, body := env.post(t, "/emit", testSecret, `{"room":"user_U1"}`)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, string(ierr.ErrorCodeInvalidArgument), body["code"])
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, _ := env.post(t, "/emit", testSecret, `{"room":`)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRESTServer_Rooms(t *testing.T) {
	env := newTestEnv(t)
	connection := env.hub.Open("U1")

	resp, body := env.post(t, "/rooms", "", `{"action":"join","userId":"U1","room":"order_O1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["message"])
	assert.True(t, connection.InRoom("order_O1"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, body = env.post(t, "/rooms", "", `{"action":"join","userId":"U404","room":"order_O1"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	resp, _ = env.post(t, "/rooms", "", `{"action":"leave","userId":"U1","room":"user_U1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.post(t, "/rooms", "", `{"action":"leave","userId":"U1","room":"order_O1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, connection.InRoom("order_O1"))
}

func TestRESTServer_Health(t *testing.T) {
	env := newTestEnv(t)
	env.hub.Open("U1")
	env.hub.Open("U2")

	resp, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))

	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Connections)
	assert.Equal(t, 2, health.Rooms)
}

func TestRESTServer_Transitions(t *testing.T) {
	order := lifecycle.Order{Id: "O1", CustomerId: "U1", RestaurantId: "R1"}

	t.Run("publishes the committed transition", func(t *testing.T) {
		env := newTestEnv(t)
		customer := env.hub.Open("U1")
		<-customer.Frames()

		stored := order
		stored.Status = lifecycle.StatusReadyForPickup
		env.store.On("GetOrder", mock.Anything, "O1").Return(stored, nil).Once()

		resp, body := env.post(t, "/orders/O1/transitions", testSecret, `{"from":"PREPARING","to":"READY_FOR_PICKUP"}`)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, float64(4), body["publications"])
		assert.Equal(t, float64(1), body["connectionCount"])

		frame := <-customer.Frames()
		assert.Equal(t, wire.UserRoom("U1"), frame.Room)
		assert.Equal(t, lifecycle.EventOrderNotification, frame.Event)
	})

	t.Run("store not yet committed", func(t *testing.T) {
		env := newTestEnv(t)

		stored := order
		stored.Status = lifecycle.StatusPreparing
		env.store.On("GetOrder", mock.Anything, "O1").Return(stored, nil).Once()

		resp, body := env.post(t, "/orders/O1/transitions", testSecret, `{"from":"PREPARING","to":"READY_FOR_PICKUP"}`)

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, string(ierr.ErrorCodeFailedPrecondition), body["code"])
	})

	t.Run("illegal transition", func(t *testing.T) {
		env := newTestEnv(t)

		stored := order
		stored.Status = lifecycle.StatusDelivered
		env.store.On("GetOrder", mock.Anything, "O1").Return(stored, nil).Once()

		resp, _ := env.post(t, "/orders/O1/transitions", testSecret, `{"from":"PENDING","to":"DELIVERED"}`)

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("unknown order", func(t *testing.T) {
		env := newTestEnv(t)

		env.store.On("GetOrder", mock.Anything, "O404").
			Return(lifecycle.Order{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("order not found"))).Once()

		resp, _ := env.post(t, "/orders/O404/transitions", testSecret, `{"from":"PENDING","to":"CONFIRMED"}`)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("requires the secret", func(t *testing.T) {
		env := newTestEnv(t)

		resp, _ := env.post(t, "/orders/O1/transitions", "", `{"from":"PENDING","to":"CONFIRMED"}`)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		env := newTestEnv(t)

		env.store.On("GetOrder", mock.Anything, "O1").Return(lifecycle.Order{}, errors.New("connection refused")).Once()

		resp, body := env.post(t, "/orders/O1/transitions", testSecret, `{"from":"PENDING","to":"CONFIRMED"}`)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "internal error", body["message"])
	})
}

func TestRESTServer_DriverLocation(t *testing.T) {
	env := newTestEnv(t)
	customer := env.hub.Open("U1")
	<-customer.Frames()

	driver := lifecycle.Driver{
		Id:       "D1",
		Name:     "Dana",
		Location: &lifecycle.Coordinates{Latitude: 4.6, Longitude: -74.08},
	}
	delivery := lifecycle.Order{
		Id:           "O1",
		Status:       lifecycle.StatusOutForDelivery,
		CustomerId:   "U1",
		RestaurantId: "R1",
		DriverId:     "D1",
	}

	env.store.On("GetDriver", mock.Anything, "D1").Return(driver, nil).Twice()
	env.store.On("ActiveDeliveries", mock.Anything, "D1").Return([]lifecycle.Order{delivery}, nil).Twice()

	resp, body := env.post(t, "/drivers/D1/location", testSecret, `{}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["orders"])
	assert.Equal(t, float64(1), body["connectionCount"])

	frame := <-customer.Frames()
	assert.Equal(t, lifecycle.EventDriverLocationUpdate, frame.Event)

	resp, body = env.post(t, "/drivers/D1/location", testSecret, `{}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["orders"])
}

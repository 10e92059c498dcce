package handler

import (
	"context"
	"testing"
	"time"

	"github.com/goevery/tracker/internal/auth"
	"github.com/goevery/tracker/internal/broadcaster"
	"github.com/goevery/tracker/internal/lifecycle"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func authenticated() context.Context {
	return auth.WithAuthentication(context.Background(), &auth.Authentication{
		Subject: "internal",
		Scope:   []string{auth.ScopePublish},
	})
}

func newTestHub(t *testing.T) *broadcaster.Hub {
	t.Helper()

	logger := zap.NewNop()
	hub := broadcaster.NewHub(logger, broadcaster.NewInMemoryRegistry(logger), broadcaster.HubOptions{
		HeartbeatInterval: time.Hour,
	})
	t.Cleanup(hub.CloseAll)

	return hub
}

type mockController struct {
	mock.Mock
}

func (m *mockController) Apply(ctx context.Context, order lifecycle.Order, newStatus lifecycle.Status, driver *lifecycle.Driver) (lifecycle.Outcome, error) {
	args := m.Called(ctx, order, newStatus, driver)

	return args.Get(0).(lifecycle.Outcome), args.Error(1)
}

func (m *mockController) LocationPing(ctx context.Context, order lifecycle.Order, driver lifecycle.Driver) (lifecycle.Outcome, bool) {
	args := m.Called(ctx, order, driver)

	return args.Get(0).(lifecycle.Outcome), args.Bool(1)
}

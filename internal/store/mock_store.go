package store

import (
	"context"

	"github.com/goevery/tracker/internal/lifecycle"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	m := &MockStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockStore) GetOrder(ctx context.Context, orderId string) (lifecycle.Order, error) {
	args := m.Called(ctx, orderId)

	return args.Get(0).(lifecycle.Order), args.Error(1)
}

func (m *MockStore) GetDriver(ctx context.Context, driverId string) (lifecycle.Driver, error) {
	args := m.Called(ctx, driverId)

	return args.Get(0).(lifecycle.Driver), args.Error(1)
}

func (m *MockStore) ActiveDeliveries(ctx context.Context, driverId string) ([]lifecycle.Order, error) {
	args := m.Called(ctx, driverId)

	orders, _ := args.Get(0).([]lifecycle.Order)

	return orders, args.Error(1)
}

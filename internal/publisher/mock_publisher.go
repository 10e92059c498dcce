package publisher

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func NewMockPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPublisher {
	m := &MockPublisher{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockPublisher) Publish(ctx context.Context, room string, event string, data any) (int, error) {
	args := m.Called(ctx, room, event, data)

	return args.Int(0), args.Error(1)
}

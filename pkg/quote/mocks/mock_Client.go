// Package mocks provides test doubles for the quote client.
package mocks

import (
	"context"

	quote "github.com/sells-group/stock-researcher/pkg/quote"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Snapshot provides a mock function with given fields: ctx, symbol
func (_m *MockClient) Snapshot(ctx context.Context, symbol string) (*quote.Snapshot, error) {
	ret := _m.Called(ctx, symbol)

	if len(ret) == 0 {
		panic("no return value specified for Snapshot")
	}

	var r0 *quote.Snapshot
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*quote.Snapshot, error)); ok {
		return rf(ctx, symbol)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*quote.Snapshot)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

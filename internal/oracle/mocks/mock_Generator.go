// Package mocks provides test doubles for the oracle interfaces.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	oracle "github.com/sells-group/stock-researcher/internal/oracle"
)

// MockGenerator is a mock type for the Generator interface.
type MockGenerator struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, req
func (_m *MockGenerator) Generate(ctx context.Context, req oracle.GenerateRequest) (*oracle.Generation, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for Generate")
	}

	var r0 *oracle.Generation
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, oracle.GenerateRequest) (*oracle.Generation, error)); ok {
		return rf(ctx, req)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*oracle.Generation)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockGenerator creates a new instance of MockGenerator. It also registers a
// cleanup function to assert the mocks expectations.
func NewMockGenerator(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockGenerator {
	m := &MockGenerator{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	oracle "github.com/sells-group/stock-researcher/internal/oracle"
)

// MockSearcher is a mock type for the Searcher interface.
type MockSearcher struct {
	mock.Mock
}

// Search provides a mock function with given fields: ctx, req
func (_m *MockSearcher) Search(ctx context.Context, req oracle.SearchRequest) (*oracle.SearchResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for Search")
	}

	var r0 *oracle.SearchResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, oracle.SearchRequest) (*oracle.SearchResponse, error)); ok {
		return rf(ctx, req)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*oracle.SearchResponse)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockSearcher creates a new instance of MockSearcher. It also registers a
// cleanup function to assert the mocks expectations.
func NewMockSearcher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockSearcher {
	m := &MockSearcher{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

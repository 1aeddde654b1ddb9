package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	oracle "github.com/sells-group/stock-researcher/internal/oracle"
)

// MockScorer is a mock type for the Scorer interface.
type MockScorer struct {
	mock.Mock
}

// Score provides a mock function with given fields: ctx, req
func (_m *MockScorer) Score(ctx context.Context, req oracle.ScoreRequest) (*oracle.Score, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for Score")
	}

	var r0 *oracle.Score
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, oracle.ScoreRequest) (*oracle.Score, error)); ok {
		return rf(ctx, req)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*oracle.Score)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockScorer creates a new instance of MockScorer. It also registers a
// cleanup function to assert the mocks expectations.
func NewMockScorer(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockScorer {
	m := &MockScorer{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

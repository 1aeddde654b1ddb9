// Package mocks provides test doubles for the run history store.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/stock-researcher/internal/model"
	store "github.com/sells-group/stock-researcher/internal/store"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// CreateRun provides a mock function with given fields: ctx, query
func (_m *MockStore) CreateRun(ctx context.Context, query string) (*model.Run, error) {
	ret := _m.Called(ctx, query)

	if len(ret) == 0 {
		panic("no return value specified for CreateRun")
	}

	var r0 *model.Run
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.Run, error)); ok {
		return rf(ctx, query)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Run)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// UpdateRunStatus provides a mock function with given fields: ctx, runID, status, errMsg
func (_m *MockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	ret := _m.Called(ctx, runID, status, errMsg)

	if len(ret) == 0 {
		panic("no return value specified for UpdateRunStatus")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, model.RunStatus, string) error); ok {
		r0 = rf(ctx, runID, status, errMsg)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// UpdateRunResult provides a mock function with given fields: ctx, runID, status, result
func (_m *MockStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	ret := _m.Called(ctx, runID, status, result)

	if len(ret) == 0 {
		panic("no return value specified for UpdateRunResult")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string, model.RunStatus, *model.RunResult) error); ok {
		r0 = rf(ctx, runID, status, result)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetRun provides a mock function with given fields: ctx, runID
func (_m *MockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	ret := _m.Called(ctx, runID)

	if len(ret) == 0 {
		panic("no return value specified for GetRun")
	}

	var r0 *model.Run
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*model.Run, error)); ok {
		return rf(ctx, runID)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Run)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// ListRuns provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for ListRuns")
	}

	var r0 []model.Run
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, store.RunFilter) ([]model.Run, error)); ok {
		return rf(ctx, filter)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Run)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// RecordStage provides a mock function with given fields: ctx, rec
func (_m *MockStore) RecordStage(ctx context.Context, rec *model.StageRecord) error {
	ret := _m.Called(ctx, rec)

	if len(ret) == 0 {
		panic("no return value specified for RecordStage")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *model.StageRecord) error); ok {
		r0 = rf(ctx, rec)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// ListStages provides a mock function with given fields: ctx, runID
func (_m *MockStore) ListStages(ctx context.Context, runID string) ([]model.StageRecord, error) {
	ret := _m.Called(ctx, runID)

	if len(ret) == 0 {
		panic("no return value specified for ListStages")
	}

	var r0 []model.StageRecord
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]model.StageRecord, error)); ok {
		return rf(ctx, runID)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.StageRecord)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Migrate")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		r0 = rf(ctx)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func() error); ok {
		r0 = rf()
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockStore creates a new instance of MockStore. It also registers a
// cleanup function to assert the mocks expectations.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	m := &MockStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

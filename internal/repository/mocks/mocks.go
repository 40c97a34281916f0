package mocks

import (
	"context"
	"time"

	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/harvest"
	"github.com/stretchr/testify/mock"
)

// RecordRepository is a mock for record.Repository.
type RecordRepository struct {
	mock.Mock
}

func (m *RecordRepository) SaveOriginal(ctx context.Context, rec *record.OriginalRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *RecordRepository) GetOriginal(ctx context.Context, id string) (*record.OriginalRecord, error) {
	args := m.Called(ctx, id)
	if rec, ok := args.Get(0).(*record.OriginalRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecordRepository) SaveAggregation(ctx context.Context, agg *record.Aggregation) error {
	args := m.Called(ctx, agg)
	return args.Error(0)
}

func (m *RecordRepository) GetAggregation(ctx context.Context, id string) (*record.Aggregation, error) {
	args := m.Called(ctx, id)
	if agg, ok := args.Get(0).(*record.Aggregation); ok {
		return agg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecordRepository) Invalidate(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Create(ctx context.Context, a *activity.Activity) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *ActivityRepository) Get(ctx context.Context, id string) (*activity.Activity, error) {
	args := m.Called(ctx, id)
	if a, ok := args.Get(0).(*activity.Activity); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ActivityRepository) Update(ctx context.Context, a *activity.Activity) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *ActivityRepository) MarkStarted(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Activity, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.Activity); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ActivityRepository) Count(ctx context.Context, opts activity.ListOptions) (int, error) {
	args := m.Called(ctx, opts)
	return args.Int(0), args.Error(1)
}

// EntityStore is a mock for activity.EntityStore.
type EntityStore struct {
	mock.Mock
}

func (m *EntityStore) GetOriginal(ctx context.Context, id string) (*record.OriginalRecord, error) {
	args := m.Called(ctx, id)
	if rec, ok := args.Get(0).(*record.OriginalRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EntityStore) GetAggregation(ctx context.Context, id string) (*record.Aggregation, error) {
	args := m.Called(ctx, id)
	if agg, ok := args.Get(0).(*record.Aggregation); ok {
		return agg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *EntityStore) OriginalIDsGeneratedBy(ctx context.Context, activityID string, includeInvalidated bool) harvest.Iterator[string] {
	args := m.Called(ctx, activityID, includeInvalidated)
	return harvest.FromSlice(args.Get(0).([]string))
}

func (m *EntityStore) AggregationIDsGeneratedBy(ctx context.Context, activityID string, includeInvalidated bool) harvest.Iterator[string] {
	args := m.Called(ctx, activityID, includeInvalidated)
	return harvest.FromSlice(args.Get(0).([]string))
}

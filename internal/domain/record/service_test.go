package record_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/repository"
	"github.com/jlicht/krikri/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRecordService_SaveOriginal_SetsDefaults(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.RecordRepository{}
	repo.On("SaveOriginal", ctx, mock.Anything).Return(nil)

	svc := record.NewService(repo, nil)
	rec := &record.OriginalRecord{
		ID:       "abc",
		SourceID: "oai:example.org:1",
		Content:  "<record/>",
	}
	require.NoError(t, svc.SaveOriginal(ctx, rec))
	require.Equal(t, "text/xml", rec.ContentType)
	require.NotNil(t, rec.Record)
	require.False(t, rec.CreatedAt.IsZero())
	require.Nil(t, rec.InvalidatedAt)
	repo.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordService_SaveOriginal_DeletedInvalidates(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.RecordRepository{}
	repo.On("SaveOriginal", ctx, mock.Anything).Return(nil)
	repo.On("Invalidate", ctx, "abc", mock.Anything).Return(nil)

	svc := record.NewService(repo, nil)
	rec := &record.OriginalRecord{ID: "abc", SourceID: "oai:example.org:1", Deleted: true}
	require.NoError(t, svc.SaveOriginal(ctx, rec))
	require.True(t, rec.IsInvalidated())
	repo.AssertExpectations(t)
}

func TestRecordService_SaveOriginal_Invalid(t *testing.T) {
	svc := record.NewService(&mocks.RecordRepository{}, nil)
	err := svc.SaveOriginal(context.Background(), &record.OriginalRecord{ID: "abc"})
	require.ErrorIs(t, err, record.ErrInvalidInput)
}

func TestRecordService_SaveOriginal_WrapsRepositoryError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	repo := &mocks.RecordRepository{}
	repo.On("SaveOriginal", ctx, mock.Anything).Return(boom)

	svc := record.NewService(repo, nil)
	err := svc.SaveOriginal(ctx, &record.OriginalRecord{ID: "abc", SourceID: "s", Content: "<record/>"})
	require.ErrorIs(t, err, boom)
}

func TestRecordService_GetOriginal_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.RecordRepository{}
	repo.On("GetOriginal", ctx, "missing").Return(nil, repository.ErrNotFound)

	svc := record.NewService(repo, nil)
	_, err := svc.GetOriginal(ctx, "missing")
	require.ErrorIs(t, err, record.ErrEntityNotFound)
}

func TestRecordService_SaveAggregation(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.RecordRepository{}
	repo.On("SaveAggregation", ctx, mock.Anything).Return(nil)

	svc := record.NewService(repo, nil)
	require.ErrorIs(t, svc.SaveAggregation(ctx, &record.Aggregation{ID: "a"}), record.ErrInvalidInput)

	agg := &record.Aggregation{ID: "a", DerivedFrom: "abc", Record: record.New()}
	require.NoError(t, svc.SaveAggregation(ctx, agg))
	require.False(t, agg.ModifiedAt.IsZero())
}

func TestRecordService_Invalidate_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.RecordRepository{}
	repo.On("Invalidate", ctx, "missing", mock.Anything).Return(repository.ErrNotFound)

	svc := record.NewService(repo, nil)
	require.ErrorIs(t, svc.Invalidate(ctx, "missing", time.Now()), record.ErrEntityNotFound)
}

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/repository"
	"github.com/stretchr/testify/require"
)

func newActivity(id, agent string, created time.Time) *activity.Activity {
	return &activity.Activity{
		ID:        id,
		Agent:     agent,
		Opts:      []byte(`{"uri":"http://example.org/oai"}`),
		Queue:     "harvest",
		CreatedAt: created,
	}
}

func TestActivityRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewActivityRepository(db)

	created := time.Date(2015, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newActivity("a1", "agent.HarvestAgent", created)))
	require.ErrorIs(t, repo.Create(ctx, newActivity("a1", "agent.HarvestAgent", created)), repository.ErrConflict)

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "agent.HarvestAgent", got.Agent)
	require.Equal(t, "harvest", got.Queue)
	require.JSONEq(t, `{"uri":"http://example.org/oai"}`, string(got.Opts))
	require.True(t, created.Equal(got.CreatedAt))
	require.Equal(t, activity.PhaseCreated, got.Phase())

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestActivityRepository_Update(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewActivityRepository(db)

	a := newActivity("a1", "agent.HarvestAgent", time.Now())
	require.NoError(t, repo.Create(ctx, a))

	start := time.Now().UTC()
	end := start.Add(time.Minute)
	a.StartTime = &start
	a.EndTime = &end
	a.Status = activity.StatusFailed
	a.Error = "endpoint unreachable"
	a.Failures = []activity.ItemFailure{{EntityID: "r1", Message: "save failed"}}
	require.NoError(t, repo.Update(ctx, a))

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, activity.PhaseFailed, got.Phase())
	require.Equal(t, "endpoint unreachable", got.Error)
	require.True(t, start.Equal(*got.StartTime))
	require.Equal(t, a.Failures, got.Failures)

	require.ErrorIs(t, repo.Update(ctx, newActivity("missing", "x", time.Now())), repository.ErrNotFound)
}

func TestActivityRepository_ListAndCount(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewActivityRepository(db)

	base := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newActivity("a1", "agent.HarvestAgent", base)))
	require.NoError(t, repo.Create(ctx, newActivity("a2", "agent.EnrichmentAgent", base.Add(time.Hour))))
	running := newActivity("a3", "agent.HarvestAgent", base.Add(2*time.Hour))
	started := base.Add(2 * time.Hour)
	running.StartTime = &started
	require.NoError(t, repo.Create(ctx, running))

	list, err := repo.List(ctx, activity.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "a3", list[0].ID)
	require.Equal(t, "a1", list[2].ID)

	list, err = repo.List(ctx, activity.ListOptions{Agent: "agent.HarvestAgent", Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "a3", list[0].ID)

	list, err = repo.List(ctx, activity.ListOptions{Offset: 2})
	require.NoError(t, err)
	require.Len(t, list, 1)

	n, err := repo.Count(ctx, activity.ListOptions{Phase: activity.PhaseCreated})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = repo.Count(ctx, activity.ListOptions{Phase: activity.PhaseRunning})
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestActivityRepository_MarkStarted(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewActivityRepository(db)
	require.NoError(t, repo.Create(ctx, newActivity("a1", "agent.HarvestAgent", time.Now())))

	start := time.Date(2015, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkStarted(ctx, "a1", start))
	require.ErrorIs(t, repo.MarkStarted(ctx, "a1", start.Add(time.Minute)), repository.ErrConflict)
	require.ErrorIs(t, repo.MarkStarted(ctx, "missing", start), repository.ErrNotFound)

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got.StartTime)
	require.True(t, start.Equal(*got.StartTime))
}

func TestActivityRepository_MarkStartedAcrossConnections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "krikri.db")
	ctx := context.Background()

	handles := make([]*ActivityRepository, 2)
	for i := range handles {
		db, err := New(path)
		require.NoError(t, err)
		require.NoError(t, db.RunMigrations())
		t.Cleanup(func() { db.Close() })
		handles[i] = NewActivityRepository(db)
	}
	require.NoError(t, handles[0].Create(ctx, newActivity("a1", "agent.HarvestAgent", time.Now())))

	errs := make([]error, len(handles))
	var wg sync.WaitGroup
	for i, repo := range handles {
		wg.Add(1)
		go func(i int, repo *ActivityRepository) {
			defer wg.Done()
			errs[i] = repo.MarkStarted(ctx, "a1", time.Now().UTC())
		}(i, repo)
	}
	wg.Wait()

	var started, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			started++
		case errors.Is(err, repository.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, started)
	require.Equal(t, 1, conflicts)
}

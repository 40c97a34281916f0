package agent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlicht/krikri/internal/agent"
	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/harvest"
	"github.com/jlicht/krikri/internal/queue"
)

func harvestOpts() map[string]any {
	return map[string]any{
		"uri":             "http://example.org/oai",
		"metadata_prefix": "oai_dc",
		"set":             "dag",
	}
}

func TestDispatcher_EnqueueCreatesOneActivityAndOneJob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ok, err := env.dispatcher.Enqueue(ctx, "HarvestAgent", harvestOpts())
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 1, env.activityCount(t))
	assert.Equal(t, int64(1), env.queueSize(t, "harvestagent"))

	msg, err := env.queue.Pop(ctx, 0, "harvestagent")
	require.NoError(t, err)

	a, err := env.activities.Get(ctx, msg.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, "HarvestAgent", a.Agent)
	assert.Equal(t, "harvestagent", a.Queue)

	opts, err := a.Options()
	require.NoError(t, err)
	assert.Equal(t, "oai_dc", opts["metadata_prefix"])
}

type rejectingQueue struct {
	queue.Queue
}

func (rejectingQueue) Push(context.Context, string, queue.Message) error {
	return errors.New("connection refused")
}

func TestDispatcher_PushFailureFailsActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	d := agent.NewDispatcher(env.registry, env.activities, rejectingQueue{}, nil)

	_, err := d.Dispatch(ctx, "HarvestAgent", "", harvestOpts())
	require.ErrorContains(t, err, "connection refused")

	list, err := env.activities.List(ctx, activity.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, activity.PhaseFailed, list[0].Phase())
	assert.Contains(t, list[0].Error, "connection refused")

	// A failed activity is never picked up again.
	assert.False(t, env.job.Run(ctx, list[0].ID))
}

func TestDispatcher_QueueOverride(t *testing.T) {
	env := newTestEnv(t)

	ok, err := env.dispatcher.Enqueue(context.Background(), "harvest", "nightly", harvestOpts())
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, int64(1), env.queueSize(t, "nightly"))
	assert.Equal(t, int64(0), env.queueSize(t, "harvestagent"))
}

func TestDispatcher_MissingRequiredOptionCreatesNothing(t *testing.T) {
	env := newTestEnv(t)

	ok, err := env.dispatcher.Enqueue(context.Background(), "harvest", map[string]any{
		"uri": "http://example.org/oai",
		"set": "dag",
	})
	require.ErrorIs(t, err, harvest.ErrInvalidOptions)
	assert.False(t, ok)

	var verr *harvest.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems, "metadata_prefix is required")

	assert.Equal(t, 0, env.activityCount(t))
	assert.Equal(t, int64(0), env.queueSize(t, "harvestagent"))
}

func TestDispatcher_ArgumentErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.dispatcher.Enqueue(ctx, "harvest", "q", []string{"not", "a", "map"})
	require.ErrorIs(t, err, agent.ErrOptionsNotMapping)

	_, err = env.dispatcher.Enqueue(ctx, "harvest", "q", harvestOpts(), "extra")
	require.ErrorIs(t, err, agent.ErrUnexpectedArguments)

	_, err = env.dispatcher.Enqueue(ctx, "harvest", 42)
	require.ErrorIs(t, err, agent.ErrOptionsNotMapping)

	_, err = env.dispatcher.Enqueue(ctx, "Nope", harvestOpts())
	require.ErrorIs(t, err, agent.ErrUnknownAgent)

	assert.Equal(t, 0, env.activityCount(t))
}

func TestDispatcher_NoOptionsIsEmptyMapping(t *testing.T) {
	env := newTestEnv(t)

	// The enrichment agent requires source_activity, so empty options fail
	// validation rather than argument parsing.
	_, err := env.dispatcher.Enqueue(context.Background(), "enrich")
	require.ErrorIs(t, err, harvest.ErrInvalidOptions)
}

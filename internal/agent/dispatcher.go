package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jlicht/krikri/internal/domain/activity"
	"github.com/jlicht/krikri/internal/harvest"
	"github.com/jlicht/krikri/internal/queue"
)

// ActivityCreator records a new activity, and fails it when its job
// cannot be queued.
type ActivityCreator interface {
	Create(ctx context.Context, agentName, queue string, opts map[string]any) (*activity.Activity, error)
	Abandon(ctx context.Context, id string, cause error) (*activity.Activity, error)
}

// Dispatcher validates agent invocations, records their activity, and
// queues them for a worker.
type Dispatcher struct {
	registry   *Registry
	activities ActivityCreator
	queue      queue.Queue
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(registry *Registry, activities ActivityCreator, q queue.Queue, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:   registry,
		activities: activities,
		queue:      q,
		logger:     logger,
	}
}

// Enqueue dispatches agentName. args is an optional queue name followed by
// an optional options mapping. It returns true once the queue accepted the
// job.
func (d *Dispatcher) Enqueue(ctx context.Context, agentName string, args ...any) (bool, error) {
	queueName, opts, err := parseArgs(args)
	if err != nil {
		return false, err
	}
	if _, err := d.Dispatch(ctx, agentName, queueName, opts); err != nil {
		return false, err
	}
	return true, nil
}

// Dispatch is Enqueue with explicit arguments. An empty queueName selects
// the agent's default queue.
func (d *Dispatcher) Dispatch(ctx context.Context, agentName, queueName string, opts map[string]any) (*activity.Activity, error) {
	def, ok := d.registry.Lookup(agentName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentName)
	}
	if opts == nil {
		opts = map[string]any{}
	}
	if err := def.Schema.Validate(harvest.Options(opts)); err != nil {
		return nil, fmt.Errorf("validating %s options: %w", def.Name, err)
	}
	if queueName == "" {
		queueName = def.QueueName()
	}

	a, err := d.activities.Create(ctx, def.Name, queueName, opts)
	if err != nil {
		return nil, fmt.Errorf("dispatching %s: %w", def.Name, err)
	}
	if err := d.queue.Push(ctx, queueName, queue.Message{ActivityID: a.ID}); err != nil {
		err = fmt.Errorf("queueing activity %s: %w", a.ID, err)
		if _, abandonErr := d.activities.Abandon(ctx, a.ID, err); abandonErr != nil {
			d.logger.Error("activity created but not queued", "activity", a.ID, "queue", queueName, "error", abandonErr)
		}
		return nil, err
	}

	d.logger.Info("agent enqueued", "agent", def.Name, "activity", a.ID, "queue", queueName)
	return a, nil
}

func parseArgs(args []any) (string, map[string]any, error) {
	var queueName string
	if len(args) > 0 {
		if s, ok := args[0].(string); ok {
			queueName = s
			args = args[1:]
		}
	}

	var opts map[string]any
	if len(args) > 0 {
		switch v := args[0].(type) {
		case nil:
		case map[string]any:
			opts = v
		case harvest.Options:
			opts = v
		default:
			return "", nil, fmt.Errorf("%w: got %T", ErrOptionsNotMapping, args[0])
		}
		args = args[1:]
	}
	if len(args) > 0 {
		return "", nil, fmt.Errorf("%w: %d extra", ErrUnexpectedArguments, len(args))
	}
	return queueName, opts, nil
}

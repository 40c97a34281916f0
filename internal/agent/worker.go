package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jlicht/krikri/internal/queue"
)

// DefaultPollTimeout bounds each blocking pop so cancellation is noticed.
const DefaultPollTimeout = 5 * time.Second

// Delays between retries after the queue itself fails.
const (
	minRetryDelay = 100 * time.Millisecond
	maxRetryDelay = 30 * time.Second
)

// Worker pops activity ids from queues and runs them one at a time.
type Worker struct {
	ID          string
	queue       queue.Queue
	job         *Job
	queues      []string
	pollTimeout time.Duration
	retryDelay  time.Duration
	logger      *slog.Logger
}

// NewWorker creates a worker listening on queues, in priority order.
func NewWorker(q queue.Queue, job *Job, queues []string, pollTimeout time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	id := uuid.NewString()
	return &Worker{
		ID:          id,
		queue:       q,
		job:         job,
		queues:      queues,
		pollTimeout: pollTimeout,
		retryDelay:  minRetryDelay,
		logger:      logger.With("worker", id),
	}
}

// ProcessOne pops and runs a single job. It reports false with a nil error
// when nothing arrived before the poll timeout. A message that cannot be
// decoded is logged and dropped.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	msg, err := w.queue.Pop(ctx, w.pollTimeout, w.queues...)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrEmpty):
			return false, nil
		case errors.Is(err, queue.ErrMalformedMessage):
			w.logger.Warn("dropping malformed job", "error", err)
			return true, nil
		}
		return false, fmt.Errorf("popping job: %w", err)
	}

	w.logger.Info("job received", "activity", msg.ActivityID, "queue", msg.Queue)
	ok := w.job.Run(ctx, msg.ActivityID)
	w.logger.Info("job finished", "activity", msg.ActivityID, "succeeded", ok)
	return true, nil
}

// Work processes jobs until ctx is cancelled. Queue errors are logged and
// retried with a growing delay.
func (w *Worker) Work(ctx context.Context) error {
	if len(w.queues) == 0 {
		return errors.New("worker has no queues")
	}
	w.logger.Info("worker started", "queues", w.queues)
	defer w.logger.Info("worker stopped")

	delay := w.retryDelay
	for {
		if ctx.Err() != nil {
			return nil
		}
		_, err := w.ProcessOne(ctx)
		if err == nil {
			delay = w.retryDelay
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		w.logger.Error("queue unavailable", "error", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

// Package queue carries job messages between the dispatcher and workers.
package queue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmpty is returned by Pop when no message arrived before the timeout.
	ErrEmpty = errors.New("queue empty")

	// ErrMalformedMessage is returned by Pop when the popped payload could
	// not be decoded. The payload has already been removed from the queue.
	ErrMalformedMessage = errors.New("malformed queue message")
)

// Message names the activity a worker should run.
type Message struct {
	ActivityID string    `json:"activity_id"`
	Queue      string    `json:"queue"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is a set of named FIFO job queues.
type Queue interface {
	// Push appends a message to the named queue.
	Push(ctx context.Context, queue string, msg Message) error

	// Pop removes the oldest message from the first non-empty queue, in the
	// order given. It blocks up to timeout; zero blocks until ctx is done.
	Pop(ctx context.Context, timeout time.Duration, queues ...string) (*Message, error)

	// Size returns the number of waiting messages.
	Size(ctx context.Context, queue string) (int64, error)

	// Queues lists every queue a message was ever pushed to.
	Queues(ctx context.Context) ([]string, error)

	// Close releases the connection.
	Close() error
}

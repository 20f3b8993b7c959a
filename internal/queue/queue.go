// Package queue implements the bounded hand-off queue that sits between
// a source's producer loop and the rule-matching consumer, and again
// between the consumer and the sink. It mirrors
// infobserve/processing/queue.py's EventQueue contract, with a second,
// broker-backed implementation standing in for infobserve/common/queue.py's
// RedisQueue.
package queue

import (
	"context"
	"errors"
)

// ErrFull is returned by PutNonBlocking when the queue has no room,
// mirroring asyncio.QueueFull.
var ErrFull = errors.New("queue: full")

// ErrEmpty is returned by GetNonBlocking when the queue has nothing
// ready, mirroring asyncio.QueueEmpty.
var ErrEmpty = errors.New("queue: empty")

// Queue is the hand-off contract shared by the in-process and
// broker-backed implementations. Item is `any` because both raw events
// (Event) and processed events (*model.ProcessedEvent) flow through
// queues of this shape.
type Queue interface {
	// PutBlocking enqueues item, blocking until room is available or
	// ctx is canceled.
	PutBlocking(ctx context.Context, item any) error
	// PutNonBlocking enqueues item immediately or returns ErrFull.
	PutNonBlocking(item any) error
	// GetBlocking dequeues the next item, blocking until one is
	// available or ctx is canceled.
	GetBlocking(ctx context.Context) (any, error)
	// GetNonBlocking dequeues the next item immediately or returns
	// ErrEmpty.
	GetNonBlocking() (any, error)
	// Notify marks one previously-dequeued item as fully processed.
	// Every GetBlocking/GetNonBlocking call should be followed by one
	// Notify call.
	Notify()
	// Join blocks until every enqueued item has been Notified.
	Join(ctx context.Context) error
	// Depth returns the number of items not yet retrieved.
	Depth() int
	// MaxSize returns the configured capacity, or 0 for unbounded.
	MaxSize() int
}

package queue

import (
	"context"
	"sync"
)

// Simple is a channel-backed Queue for in-process hand-off, the Go
// analogue of EventQueue's wrapped asyncio.Queue. maxSize of 0 means
// unbounded, realized here as a large buffer since Go channels require
// a fixed capacity (closest honest mapping to Python's unbounded
// asyncio.Queue(0)).
type Simple struct {
	ch      chan any
	maxSize int

	mu        sync.Mutex
	pending   int
	doneCh    chan struct{}
	cond      *sync.Cond
}

const unboundedCapacity = 1 << 20

// NewSimple builds an in-process queue. maxSize <= 0 means unbounded.
func NewSimple(maxSize int) *Simple {
	capacity := maxSize
	if capacity <= 0 {
		capacity = unboundedCapacity
	}
	s := &Simple{ch: make(chan any, capacity), maxSize: maxSize}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Simple) PutBlocking(ctx context.Context, item any) error {
	select {
	case s.ch <- item:
		s.incPending()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simple) PutNonBlocking(item any) error {
	select {
	case s.ch <- item:
		s.incPending()
		return nil
	default:
		return ErrFull
	}
}

func (s *Simple) GetBlocking(ctx context.Context) (any, error) {
	select {
	case item := <-s.ch:
		return item, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Simple) GetNonBlocking() (any, error) {
	select {
	case item := <-s.ch:
		return item, nil
	default:
		return nil, ErrEmpty
	}
}

func (s *Simple) incPending() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

// Notify marks one item as processed; once pending drops to zero every
// Join waiter is released, mirroring asyncio.Queue.task_done/join.
func (s *Simple) Notify() {
	s.mu.Lock()
	if s.pending > 0 {
		s.pending--
	}
	if s.pending == 0 {
		s.cond.Broadcast()
	}
	s.mu.Unlock()
}

func (s *Simple) Join(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		for s.pending != 0 {
			s.cond.Wait()
		}
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simple) Depth() int { return len(s.ch) }

func (s *Simple) MaxSize() int { return s.maxSize }

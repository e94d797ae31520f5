package actor

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// PriorityMailbox is a Mailbox implementation backed by two channels: a
// high-priority lane and a normal lane. Receive always drains the
// high-priority lane first, yielding envelopes from the normal lane only when
// the high-priority lane is empty. This is what lets a registry-style actor
// guarantee that an internal liveness signal (a PriorityMessage) is always
// processed ahead of any client request already queued behind it.
//
// A message only takes the high-priority lane if it implements
// PriorityMessage and Priority() returns a positive value; everything else
// uses the normal lane.
type PriorityMailbox[M Message, R any] struct {
	high chan envelope[M, R]
	low  chan envelope[M, R]

	closed atomic.Bool
	mu     sync.RWMutex

	closeOnce sync.Once
	actorCtx  context.Context
}

// NewPriorityMailbox creates a new two-lane mailbox with the given capacity
// per lane.
func NewPriorityMailbox[M Message, R any](
	actorCtx context.Context, capacity int,
) *PriorityMailbox[M, R] {
	if capacity <= 0 {
		capacity = 1
	}

	return &PriorityMailbox[M, R]{
		high:     make(chan envelope[M, R], capacity),
		low:      make(chan envelope[M, R], capacity),
		actorCtx: actorCtx,
	}
}

func isHighPriority[M Message](msg M) bool {
	pm, ok := any(msg).(PriorityMessage)
	return ok && pm.Priority() > 0
}

// Send implements Mailbox.
func (m *PriorityMailbox[M, R]) Send(ctx context.Context, env envelope[M, R]) bool {
	if ctx.Err() != nil || m.actorCtx.Err() != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	ch := m.low
	if isHighPriority(env.message) {
		ch = m.high
	}

	select {
	case ch <- env:
		return true
	case <-ctx.Done():
		return false
	case <-m.actorCtx.Done():
		return false
	}
}

// TrySend implements Mailbox.
func (m *PriorityMailbox[M, R]) TrySend(env envelope[M, R]) bool {
	if m.actorCtx.Err() != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	ch := m.low
	if isHighPriority(env.message) {
		ch = m.high
	}

	select {
	case ch <- env:
		return true
	default:
		return false
	}
}

// Receive implements Mailbox. The high lane is always preferred: it is polled
// non-blockingly before every blocking select, so a burst of high-priority
// envelopes is fully drained before any normal-lane envelope is yielded.
func (m *PriorityMailbox[M, R]) Receive(ctx context.Context) iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		// high becomes nil once the high lane is closed and empty, so
		// the low lane is still read to its end after Close.
		high := m.high
		for {
			if ctx.Err() != nil {
				return
			}

			select {
			case env, ok := <-high:
				if ok {
					if !yield(env) {
						return
					}
					continue
				}
				high = nil
			default:
			}

			select {
			case env, ok := <-high:
				if !ok {
					high = nil
					continue
				}
				if !yield(env) {
					return
				}

			case env, ok := <-m.low:
				if !ok {
					return
				}
				if !yield(env) {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}

// Close implements Mailbox.
func (m *PriorityMailbox[M, R]) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.closed.Store(true)
		close(m.high)
		close(m.low)
	})
}

// IsClosed implements Mailbox.
func (m *PriorityMailbox[M, R]) IsClosed() bool {
	return m.closed.Load()
}

// Drain implements Mailbox, draining the high lane before the low lane.
func (m *PriorityMailbox[M, R]) Drain() iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		if !m.IsClosed() {
			return
		}

		for {
			select {
			case env, ok := <-m.high:
				if ok {
					if !yield(env) {
						return
					}
					continue
				}
			default:
			}

			select {
			case env, ok := <-m.low:
				if !ok {
					return
				}
				if !yield(env) {
					return
				}
			default:
				return
			}
		}
	}
}

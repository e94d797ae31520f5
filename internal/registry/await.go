package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var waiterCounter atomic.Uint64

// waiter is an ephemeral, non-actor Notifiable used by Await/AwaitTimeout so
// a caller can block on a single registration without running its own
// actor. It satisfies Notifiable[K] (and therefore actor.Watchable) with a
// minimal, single-purpose implementation: it is watched by the registry for
// the lifetime of one subscription, but it never itself terminates.
type waiter[K Keyable] struct {
	pid    actor.ProcessId
	events chan KeyMonitorNotification[K]

	mu       sync.Mutex
	nextH    atomic.Uint64
	watchers map[actor.MonitorHandle]actor.Watcher
}

func newWaiter[K Keyable]() *waiter[K] {
	id := waiterCounter.Add(1)
	return &waiter[K]{
		pid:      actor.ProcessId(fmt.Sprintf("await-waiter#%d", id)),
		events:   make(chan KeyMonitorNotification[K], 1),
		watchers: make(map[actor.MonitorHandle]actor.Watcher),
	}
}

func (w *waiter[K]) ID() string { return string(w.pid) }

func (w *waiter[K]) Pid() actor.ProcessId { return w.pid }

func (w *waiter[K]) Watch(watcher actor.Watcher) actor.MonitorHandle {
	w.mu.Lock()
	defer w.mu.Unlock()
	h := actor.MonitorHandle(w.nextH.Add(1))
	w.watchers[h] = watcher
	return h
}

func (w *waiter[K]) Unwatch(h actor.MonitorHandle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watchers, h)
}

// NotifyKeyEvent implements Notifiable. Non-blocking: the channel is
// buffered by one, which is all a single Await call ever needs.
func (w *waiter[K]) NotifyKeyEvent(n KeyMonitorNotification[K]) {
	select {
	case w.events <- n:
	default:
	}
}

// AwaitOutcome classifies how Await/AwaitTimeout resolved.
type AwaitOutcome int

const (
	// AwaitRegistered means the key became bound; Owner is set.
	AwaitRegistered AwaitOutcome = iota

	// AwaitServerUnreachable means the registry actor itself terminated
	// before the key was registered; Reason is set.
	AwaitServerUnreachable

	// AwaitTimedOut means AwaitTimeout's deadline elapsed first.
	AwaitTimedOut
)

// String renders the outcome for diagnostics.
func (o AwaitOutcome) String() string {
	switch o {
	case AwaitRegistered:
		return "registered"
	case AwaitServerUnreachable:
		return "server_unreachable"
	default:
		return "timed_out"
	}
}

// AwaitResult is the outcome of Await/AwaitTimeout.
type AwaitResult[K Keyable] struct {
	Outcome AwaitOutcome
	Owner   actor.ProcessId
	Reason  actor.DeathReason
}

// Await blocks until id is registered, the registry terminates, or ctx is
// cancelled. This is the client-side primitive described in SPEC_FULL.md
// §4.G: resolve the registry's address, install a liveness monitor on it so
// a dead registry is reported rather than hanging forever, subscribe for
// the key's Registered event, and race the two.
func Await[K Keyable](ctx context.Context, h *Handle[K], id K) (AwaitResult[K], error) {
	return awaitImpl(ctx, h, id, 0, false)
}

// AwaitTimeout is like Await but also gives up after d, reporting
// AwaitTimedOut.
func AwaitTimeout[K Keyable](ctx context.Context, h *Handle[K], id K, d time.Duration) (AwaitResult[K], error) {
	return awaitImpl(ctx, h, id, d, true)
}

func awaitImpl[K Keyable](ctx context.Context, h *Handle[K], id K, d time.Duration, useTimeout bool) (AwaitResult[K], error) {
	var addr Addressable = h
	if _, ok := addr.Resolve(); !ok {
		return AwaitResult[K]{}, ErrUnresolvableAddress
	}

	registryWatchable := h.Watchable()

	died := make(chan actor.DeathReason, 1)
	selfWatch := registryWatchable.Watch(actor.WatcherFunc(
		func(_ actor.ProcessId, _ actor.MonitorHandle, reason actor.DeathReason) {
			select {
			case died <- reason:
			default:
			}
		}))
	defer registryWatchable.Unwatch(selfWatch)

	w := newWaiter[K]()
	mref, err := Monitor(ctx, h, LookupKey(id), fn.Some(NewEventMaskSet(OnRegistered)), w)
	if err != nil {
		return AwaitResult[K]{}, err
	}

	var timeoutCh <-chan time.Time
	if useTimeout {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case n := <-w.events:
		_ = mref // the mask already guarantees n is a Registered event
		return AwaitResult[K]{Outcome: AwaitRegistered, Owner: n.Event.Owner}, nil

	case reason := <-died:
		return AwaitResult[K]{Outcome: AwaitServerUnreachable, Reason: reason}, nil

	case <-timeoutCh:
		return AwaitResult[K]{Outcome: AwaitTimedOut}, nil

	case <-ctx.Done():
		return AwaitResult[K]{}, ctx.Err()
	}
}

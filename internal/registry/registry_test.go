package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// recordingSink is an EventSink test double that records every event handed
// to it, for assertions that the diagnostic trail fires alongside every
// state mutation.
type recordingSink struct {
	mu     sync.Mutex
	events []KeyUpdateEvent
}

func (s *recordingSink) RecordKeyEvent(_ context.Context, _ string, _ actor.ProcessId, e KeyUpdateEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestRegistry_AddNameLookupUnregister(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	h := Start[nameKey](sink)
	defer h.Stop()

	owner := newFakeProcess("svc-owner")

	outcome, err := AddName(ctx, h, owner, nameKey("inventory"))
	require.NoError(t, err)
	require.Equal(t, RegisteredOk, outcome)

	pid, ok, err := LookupName(ctx, h, nameKey("inventory"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, owner.Pid(), pid)

	names, err := RegisteredNames(ctx, h, owner.Pid())
	require.NoError(t, err)
	require.Equal(t, []nameKey{"inventory"}, names)

	unregOutcome, err := UnregisterName(ctx, h, owner.Pid(), nameKey("inventory"))
	require.NoError(t, err)
	require.Equal(t, UnregisterOk, unregOutcome)

	_, ok, err = LookupName(ctx, h, nameKey("inventory"))
	require.NoError(t, err)
	require.False(t, ok)

	require.Eventually(t, func() bool { return sink.Count() == 2 }, time.Second, time.Millisecond)
}

func TestRegistry_FoldNamesSnapshot(t *testing.T) {
	ctx := context.Background()
	h := Start[nameKey](nil)
	defer h.Stop()

	owner := newFakeProcess("svc-owner")
	for _, n := range []nameKey{"alpha", "beta", "gamma"} {
		_, err := AddName(ctx, h, owner, n)
		require.NoError(t, err)
	}

	seen := map[nameKey]actor.ProcessId{}
	result, err := FoldNames(ctx, h, 0, func(acc int, k nameKey, p actor.ProcessId) int {
		seen[k] = p
		return acc + 1
	})
	require.NoError(t, err)
	require.Equal(t, 3, result)
	require.Len(t, seen, 3)
}

func TestRegistry_MonitorNameReplaysAndNotifiesOnDeath(t *testing.T) {
	ctx := context.Background()
	h := Start[nameKey](nil)
	defer h.Stop()

	owner := newFakeProcess("svc-owner")
	_, err := AddName(ctx, h, owner, nameKey("worker"))
	require.NoError(t, err)

	sub := newFakeSubscriber[nameKey]("svc-sub")
	_, err = MonitorName(ctx, h, nameKey("worker"), sub)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(sub.Events()) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, EventRegistered, sub.Events()[0].Event.Kind)

	owner.Kill(actor.ExceptionReason("crashed"))

	require.Eventually(t, func() bool { return len(sub.Events()) == 2 }, time.Second, time.Millisecond)
	require.Equal(t, EventOwnerDied, sub.Events()[1].Event.Kind)

	_, ok, err := LookupName(ctx, h, nameKey("worker"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRegistry_MonitorMaskFiltersEvents(t *testing.T) {
	ctx := context.Background()
	h := Start[nameKey](nil)
	defer h.Stop()

	owner := newFakeProcess("svc-owner")
	_, err := AddName(ctx, h, owner, nameKey("db"))
	require.NoError(t, err)

	sub := newFakeSubscriber[nameKey]("svc-sub")
	_, err = Monitor(ctx, h, LookupKey[nameKey]("db"),
		fn.Some(NewEventMaskSet(OnUnregistered)), sub)
	require.NoError(t, err)

	// Mask excludes OnRegistered, so the replay-on-subscribe step must
	// not fire.
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, sub.Events())

	_, err = UnregisterName(ctx, h, owner.Pid(), nameKey("db"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(sub.Events()) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, EventUnregistered, sub.Events()[0].Event.Kind)
}

func TestRegistry_CyclicOwnerSubscriberCleansUpOnce(t *testing.T) {
	ctx := context.Background()
	h := Start[nameKey](nil)
	defer h.Stop()

	both := newFakeSubscriber[nameKey]("svc-both")
	_, err := AddName(ctx, h, both, nameKey("self-watching"))
	require.NoError(t, err)

	_, err = MonitorName(ctx, h, nameKey("self-watching"), both)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(both.Events()) == 1 }, time.Second, time.Millisecond)

	both.Kill(actor.NormalExitReason())

	require.Eventually(t, func() bool {
		_, ok, err := LookupName(ctx, h, nameKey("self-watching"))
		return err == nil && !ok
	}, time.Second, time.Millisecond)
}

package eventlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
	"github.com/BirdseyeSoftware/distributed-process-platform/internal/registry"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "eventlog.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestStore_RecordAndRecentEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.RecordKeyEvent(ctx, "alias(queue)@owner-1", actor.ProcessId("owner-1"),
		registry.Registered(actor.ProcessId("owner-1")))
	s.RecordKeyEvent(ctx, "alias(queue)@owner-1", actor.ProcessId("owner-1"),
		registry.Unregistered())

	require.Eventually(t, func() bool {
		recs, err := s.RecentEvents(ctx, 10)
		require.NoError(t, err)
		return len(recs) == 2
	}, time.Second, time.Millisecond)

	recs, err := s.RecentEvents(ctx, 10)
	require.NoError(t, err)
	// Newest first.
	require.Equal(t, "unregistered", recs[0].EventKind)
	require.Equal(t, "registered", recs[1].EventKind)
}

func TestStore_EventsForKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.RecordKeyEvent(ctx, "alias(a)@p1", actor.ProcessId("p1"),
		registry.Registered(actor.ProcessId("p1")))
	s.RecordKeyEvent(ctx, "alias(b)@p2", actor.ProcessId("p2"),
		registry.Registered(actor.ProcessId("p2")))

	require.Eventually(t, func() bool {
		recs, err := s.EventsForKey(ctx, "alias(a)@p1", 10)
		require.NoError(t, err)
		return len(recs) == 1
	}, time.Second, time.Millisecond)

	recs, err := s.EventsForKey(ctx, "alias(b)@p2", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "p2", recs[0].OwnerPid)
}

func TestStore_OwnerDiedRecordsReason(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.RecordKeyEvent(ctx, "alias(worker)@p1", actor.ProcessId("p1"),
		registry.OwnerDied(actor.ExceptionReason("boom")))

	require.Eventually(t, func() bool {
		recs, err := s.EventsForKey(ctx, "alias(worker)@p1", 10)
		require.NoError(t, err)
		return len(recs) == 1
	}, time.Second, time.Millisecond)

	recs, err := s.EventsForKey(ctx, "alias(worker)@p1", 10)
	require.NoError(t, err)
	require.Equal(t, "owner_died", recs[0].EventKind)
	require.Contains(t, recs[0].Reason, "boom")
}

package registry

import (
	"context"
	"testing"

	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// bindFakeSelf wires a throwaway self-reference into svc so handlers that
// deliver processDownReq via deathWatcher have somewhere to Tell; tests that
// trigger a death exercise that path, not the real actor system.
func bindFakeSelf[K Keyable](t *testing.T, svc *Service[K]) *selfCollector[K] {
	t.Helper()
	sc := &selfCollector[K]{svc: svc}
	svc.bindSelf(sc)
	return sc
}

// selfCollector implements actor.ActorRef[Request[K], Response[K]] by
// feeding Tell calls straight back into the Service's Receive, synchronously.
// This mirrors what the real priority mailbox would eventually deliver,
// without needing an actual actor goroutine in these white-box tests.
type selfCollector[K Keyable] struct {
	svc *Service[K]
}

func (s *selfCollector[K]) ID() string { return "test-registry" }

func (s *selfCollector[K]) Tell(ctx context.Context, msg Request[K]) {
	s.svc.Receive(ctx, msg)
}

func (s *selfCollector[K]) Ask(ctx context.Context, msg Request[K]) actor.Future[Response[K]] {
	panic("unused in tests")
}

func TestService_RegisterLookupUnregister(t *testing.T) {
	ctx := context.Background()
	svc := NewService[nameKey](nil)
	bindFakeSelf(t, svc)

	owner := newFakeProcess("owner-1")

	regResp, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{
		Key:   AliasKeyFor(nameKey("alice"), owner.Pid()),
		Owner: owner,
	}).Unpack()
	require.NoError(t, err)
	require.Equal(t, RegisteredOk, regResp.(RegisterKeyReply).Outcome)

	lookupResp, err := svc.Receive(ctx, LookupKeyReq[nameKey]{
		Key: LookupKey[nameKey]("alice"),
	}).Unpack()
	require.NoError(t, err)
	require.True(t, lookupResp.(LookupKeyReply).Owner.IsSome())
	require.Equal(t, owner.Pid(), lookupResp.(LookupKeyReply).Owner.UnwrapOr(""))

	unregResp, err := svc.Receive(ctx, UnregisterKeyReq[nameKey]{
		Key: AliasKeyFor(nameKey("alice"), owner.Pid()),
	}).Unpack()
	require.NoError(t, err)
	require.Equal(t, UnregisterOk, unregResp.(UnregisterKeyReply).Outcome)

	lookupResp2, err := svc.Receive(ctx, LookupKeyReq[nameKey]{
		Key: LookupKey[nameKey]("alice"),
	}).Unpack()
	require.NoError(t, err)
	require.True(t, lookupResp2.(LookupKeyReply).Owner.IsNone())
}

func TestService_RegisterTwiceByDifferentOwnerFails(t *testing.T) {
	ctx := context.Background()
	svc := NewService[nameKey](nil)
	bindFakeSelf(t, svc)

	first := newFakeProcess("owner-1")
	second := newFakeProcess("owner-2")

	_, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{
		Key: AliasKeyFor(nameKey("bob"), first.Pid()), Owner: first,
	}).Unpack()
	require.NoError(t, err)

	resp, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{
		Key: AliasKeyFor(nameKey("bob"), second.Pid()), Owner: second,
	}).Unpack()
	require.NoError(t, err)
	require.Equal(t, AlreadyRegistered, resp.(RegisterKeyReply).Outcome)
}

func TestService_RegisterSameOwnerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewService[nameKey](nil)
	bindFakeSelf(t, svc)

	owner := newFakeProcess("owner-1")
	req := RegisterKeyReq[nameKey]{Key: AliasKeyFor(nameKey("carol"), owner.Pid()), Owner: owner}

	for i := 0; i < 2; i++ {
		resp, err := svc.Receive(ctx, req).Unpack()
		require.NoError(t, err)
		require.Equal(t, RegisteredOk, resp.(RegisterKeyReply).Outcome)
	}
}

func TestService_UnregisterWrongOwnerFails(t *testing.T) {
	ctx := context.Background()
	svc := NewService[nameKey](nil)
	bindFakeSelf(t, svc)

	owner := newFakeProcess("owner-1")
	intruder := newFakeProcess("owner-2")

	_, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{
		Key: AliasKeyFor(nameKey("dave"), owner.Pid()), Owner: owner,
	}).Unpack()
	require.NoError(t, err)

	resp, err := svc.Receive(ctx, UnregisterKeyReq[nameKey]{
		Key: AliasKeyFor(nameKey("dave"), intruder.Pid()),
	}).Unpack()
	require.NoError(t, err)
	require.Equal(t, UnregisterInvalidKey, resp.(UnregisterKeyReply).Outcome)
}

func TestService_UnregisterUnknownKeyFails(t *testing.T) {
	ctx := context.Background()
	svc := NewService[nameKey](nil)
	bindFakeSelf(t, svc)

	resp, err := svc.Receive(ctx, UnregisterKeyReq[nameKey]{
		Key: AliasKeyFor(nameKey("ghost"), actor.ProcessId("nobody")),
	}).Unpack()
	require.NoError(t, err)
	require.Equal(t, UnregisterKeyNotFound, resp.(UnregisterKeyReply).Outcome)
}

func TestService_PropertyKeyPreconditionRejected(t *testing.T) {
	ctx := context.Background()
	svc := NewService[nameKey](nil)
	bindFakeSelf(t, svc)

	owner := newFakeProcess("owner-1")
	key := Key[nameKey]{Identity: nameKey("prop"), Kind: PropertyKey, Scope: owner.Pid(), HasScope: true}

	_, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{Key: key, Owner: owner}).Unpack()
	require.ErrorIs(t, err, ErrBadPrecondition)
}

func TestService_MonitorReplaysRegisteredOnSubscribe(t *testing.T) {
	ctx := context.Background()
	svc := NewService[nameKey](nil)
	bindFakeSelf(t, svc)

	owner := newFakeProcess("owner-1")
	_, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{
		Key: AliasKeyFor(nameKey("erin"), owner.Pid()), Owner: owner,
	}).Unpack()
	require.NoError(t, err)

	sub := newFakeSubscriber[nameKey]("sub-1")
	_, err = svc.Receive(ctx, MonitorReq[nameKey]{
		Key:        LookupKey[nameKey]("erin"),
		Mask:       fn.None[EventMaskSet](),
		Subscriber: sub,
	}).Unpack()
	require.NoError(t, err)

	events := sub.Events()
	require.Len(t, events, 1)
	require.Equal(t, EventRegistered, events[0].Event.Kind)
	require.Equal(t, owner.Pid(), events[0].Event.Owner)
}

func TestService_MonitorThenNotifyOnUnregister(t *testing.T) {
	ctx := context.Background()
	svc := NewService[nameKey](nil)
	bindFakeSelf(t, svc)

	owner := newFakeProcess("owner-1")
	key := AliasKeyFor(nameKey("frank"), owner.Pid())
	_, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{Key: key, Owner: owner}).Unpack()
	require.NoError(t, err)

	sub := newFakeSubscriber[nameKey]("sub-1")
	_, err = svc.Receive(ctx, MonitorReq[nameKey]{
		Key:        LookupKey[nameKey]("frank"),
		Mask:       fn.None[EventMaskSet](),
		Subscriber: sub,
	}).Unpack()
	require.NoError(t, err)

	_, err = svc.Receive(ctx, UnregisterKeyReq[nameKey]{Key: key}).Unpack()
	require.NoError(t, err)

	events := sub.Events()
	require.Len(t, events, 2)
	require.Equal(t, EventUnregistered, events[1].Event.Kind)
}

func TestService_OwnerDeathReapsNamesAndNotifiesSubscriber(t *testing.T) {
	ctx := context.Background()
	svc := NewService[nameKey](nil)
	bindFakeSelf(t, svc)

	owner := newFakeProcess("owner-1")
	key := AliasKeyFor(nameKey("gina"), owner.Pid())
	_, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{Key: key, Owner: owner}).Unpack()
	require.NoError(t, err)

	sub := newFakeSubscriber[nameKey]("sub-1")
	_, err = svc.Receive(ctx, MonitorReq[nameKey]{
		Key:        LookupKey[nameKey]("gina"),
		Mask:       fn.Some(NewEventMaskSet(OnOwnershipChange)),
		Subscriber: sub,
	}).Unpack()
	require.NoError(t, err)

	owner.Kill(actor.ExceptionReason("boom"))

	lookupResp, err := svc.Receive(ctx, LookupKeyReq[nameKey]{Key: LookupKey[nameKey]("gina")}).Unpack()
	require.NoError(t, err)
	require.True(t, lookupResp.(LookupKeyReply).Owner.IsNone())

	events := sub.Events()
	require.Len(t, events, 1)
	require.Equal(t, EventOwnerDied, events[0].Event.Kind)
}

func TestService_SubscriberDeathPurgesMonitor(t *testing.T) {
	ctx := context.Background()
	svc := NewService[nameKey](nil)
	bindFakeSelf(t, svc)

	owner := newFakeProcess("owner-1")
	key := AliasKeyFor(nameKey("hank"), owner.Pid())
	_, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{Key: key, Owner: owner}).Unpack()
	require.NoError(t, err)

	sub := newFakeSubscriber[nameKey]("sub-1")
	_, err = svc.Receive(ctx, MonitorReq[nameKey]{
		Key: LookupKey[nameKey]("hank"), Mask: fn.None[EventMaskSet](), Subscriber: sub,
	}).Unpack()
	require.NoError(t, err)
	require.Len(t, sub.Events(), 1)

	sub.Kill(actor.NormalExitReason())

	// Unregistering now must not attempt to notify the dead subscriber
	// (it would have appended a second event if the monitor survived).
	_, err = svc.Receive(ctx, UnregisterKeyReq[nameKey]{Key: key}).Unpack()
	require.NoError(t, err)
	require.Len(t, sub.Events(), 1)
}

func TestService_RegisteredNamesAndSnapshot(t *testing.T) {
	ctx := context.Background()
	svc := NewService[nameKey](nil)
	bindFakeSelf(t, svc)

	owner := newFakeProcess("owner-1")
	for _, n := range []nameKey{"ann", "bea"} {
		_, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{
			Key: AliasKeyFor(n, owner.Pid()), Owner: owner,
		}).Unpack()
		require.NoError(t, err)
	}

	namesResp, err := svc.Receive(ctx, RegNamesReq[nameKey]{Owner: owner.Pid()}).Unpack()
	require.NoError(t, err)
	require.ElementsMatch(t, []nameKey{"ann", "bea"}, namesResp.(RegNamesReply[nameKey]).Keys)

	snapResp, err := svc.Receive(ctx, QueryDirectReq[nameKey]{Variant: QueryNames}).Unpack()
	require.NoError(t, err)
	snap := snapResp.(SnapshotReply[nameKey])
	require.NoError(t, snap.Err)
	require.Len(t, snap.Names, 2)

	propResp, err := svc.Receive(ctx, QueryDirectReq[nameKey]{Variant: QueryProperties}).Unpack()
	require.NoError(t, err)
	require.ErrorIs(t, propResp.(SnapshotReply[nameKey]).Err, ErrPropertiesNotImplemented)
}

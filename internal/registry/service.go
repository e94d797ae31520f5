package registry

import (
	"context"
	"fmt"

	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// EventSink optionally records every KeyUpdateEvent the registry emits, for
// diagnostics. It is never consulted to reconstruct registry state; see
// internal/registry/eventlog for the concrete sqlite-backed implementation.
type EventSink interface {
	RecordKeyEvent(ctx context.Context, keyID string, owner actor.ProcessId, event KeyUpdateEvent)
}

// kmRef is the internal bookkeeping record for one subscription.
type kmRef[K Keyable] struct {
	ref    MonitorRef
	mask   fn.Option[EventMaskSet]
	target Notifiable[K]
}

// wants reports whether this subscription should receive e.
func (r kmRef[K]) wants(e KeyUpdateEvent) bool {
	return r.wantsMask(maskFor(e))
}

// wantsMask reports whether this subscription's filter includes m. A None
// mask means "receive every event".
func (r kmRef[K]) wantsMask(m EventMask) bool {
	if r.mask.IsNone() {
		return true
	}
	return r.mask.UnwrapOr(EventMaskSet{}).Contains(m)
}

// ownerTracking tracks the shared liveness monitor installed on a process
// because it owns one or more names.
type ownerTracking struct {
	watchable actor.Watchable
	handle    actor.MonitorHandle
	count     int
}

// subscriberTracking tracks the shared liveness monitor installed on a
// process because it subscribes to one or more keys.
type subscriberTracking struct {
	watchable actor.Watchable
	handle    actor.MonitorHandle
	count     int
}

// Service is the ActorBehavior implementing the registry core. It owns all
// state tables exclusively; every field below is touched only from inside
// Receive, which the host actor runtime guarantees is never called
// concurrently with itself.
type Service[K Keyable] struct {
	names          map[K]actor.ProcessId
	monitors       map[K][]kmRef[K]
	registeredPids map[actor.ProcessId]*ownerTracking
	listeningPids  map[actor.ProcessId]*subscriberTracking
	monitorIDCount uint64

	// self is filled in by bindSelf once the actor wrapping this
	// behavior has started, so handlers can mint a Watcher that routes
	// ProcessDown signals back into this actor's own mailbox.
	self actor.ActorRef[Request[K], Response[K]]

	sink EventSink
}

// NewService creates an empty registry behavior for key type K.
func NewService[K Keyable](sink EventSink) *Service[K] {
	return &Service[K]{
		names:          make(map[K]actor.ProcessId),
		monitors:       make(map[K][]kmRef[K]),
		registeredPids: make(map[actor.ProcessId]*ownerTracking),
		listeningPids:  make(map[actor.ProcessId]*subscriberTracking),
		monitorIDCount: 1,
		sink:           sink,
	}
}

// bindSelf wires the actor's own reference into the behavior so ProcessDown
// signals raised by watched owners/subscribers can be delivered back onto
// this actor's priority mailbox lane.
func (s *Service[K]) bindSelf(ref actor.ActorRef[Request[K], Response[K]]) {
	s.self = ref
}

// deathWatcher returns an actor.Watcher that re-delivers a termination as a
// high-priority processDownReq on this registry's own mailbox.
func (s *Service[K]) deathWatcher() actor.Watcher {
	return actor.WatcherFunc(func(pid actor.ProcessId, _ actor.MonitorHandle, reason actor.DeathReason) {
		s.self.Tell(context.Background(), processDownReq[K]{Pid: pid, Reason: reason})
	})
}

// Receive implements actor.ActorBehavior. It demultiplexes to the six public
// handlers plus the internal processDownReq, enforcing the dispatcher's
// preconditions before handing off.
func (s *Service[K]) Receive(ctx context.Context, msg Request[K]) fn.Result[Response[K]] {
	switch req := msg.(type) {
	case processDownReq[K]:
		s.reap(ctx, req.Pid, req.Reason)
		return fn.Ok[Response[K]](RegisterKeyReply{})

	case RegisterKeyReq[K]:
		if req.Key.Kind != AliasKey || !req.Key.HasScope {
			// Precondition violation (SPEC_FULL.md §4.C/§7): the
			// request is answered at once with ErrBadPrecondition.
			return fn.Err[Response[K]](ErrBadPrecondition)
		}
		return fn.Ok[Response[K]](s.register(ctx, req.Key, req.Owner))

	case UnregisterKeyReq[K]:
		if req.Key.Kind != AliasKey || !req.Key.HasScope {
			return fn.Err[Response[K]](ErrBadPrecondition)
		}
		return fn.Ok[Response[K]](s.unregister(ctx, req.Key))

	case LookupKeyReq[K]:
		if req.Key.Kind != AliasKey {
			return fn.Err[Response[K]](ErrBadPrecondition)
		}
		return fn.Ok[Response[K]](s.lookup(req.Key))

	case RegNamesReq[K]:
		return fn.Ok[Response[K]](s.registeredNames(req.Owner))

	case MonitorReq[K]:
		return fn.Ok[Response[K]](s.monitor(ctx, req.Key, req.Mask, req.Subscriber))

	case QueryDirectReq[K]:
		return fn.Ok[Response[K]](s.queryDirect(req.Variant))

	default:
		return fn.Err[Response[K]](fmt.Errorf("registry: unrecognized request %T", msg))
	}
}

// register implements SPEC_FULL.md §4.D's register verb.
func (s *Service[K]) register(ctx context.Context, key Key[K], owner actor.Watchable) RegisterKeyReply {
	id := key.Identity
	newOwner := owner.Pid()

	if existing, ok := s.names[id]; ok {
		if existing == newOwner {
			return RegisterKeyReply{Outcome: RegisteredOk}
		}
		return RegisterKeyReply{Outcome: AlreadyRegistered}
	}

	s.watchOwner(newOwner, owner)
	s.names[id] = newOwner

	event := Registered(newOwner)
	s.notify(ctx, key, event)
	s.record(ctx, key, newOwner, event)

	return RegisterKeyReply{Outcome: RegisteredOk}
}

// unregister implements SPEC_FULL.md §4.D's unregister verb.
func (s *Service[K]) unregister(ctx context.Context, key Key[K]) UnregisterKeyReply {
	id := key.Identity

	existing, ok := s.names[id]
	if !ok {
		return UnregisterKeyReply{Outcome: UnregisterKeyNotFound}
	}
	if existing != key.Scope {
		return UnregisterKeyReply{Outcome: UnregisterInvalidKey}
	}

	event := Unregistered()
	s.notify(ctx, key, event)
	s.record(ctx, key, existing, event)

	delete(s.names, id)
	s.unwatchOwnerOne(existing)

	// Purge monitors[id] outright, per the explicitly preserved (if
	// debatable) source behavior; see SPEC_FULL.md §9.
	s.purgeMonitors(id)

	return UnregisterKeyReply{Outcome: UnregisterOk}
}

// lookup implements SPEC_FULL.md §4.D's lookup verb.
func (s *Service[K]) lookup(key Key[K]) LookupKeyReply {
	owner, ok := s.names[key.Identity]
	if !ok {
		return LookupKeyReply{Owner: fn.None[actor.ProcessId]()}
	}
	return LookupKeyReply{Owner: fn.Some(owner)}
}

// registeredNames implements SPEC_FULL.md §4.D's "registered names for p".
func (s *Service[K]) registeredNames(owner actor.ProcessId) RegNamesReply[K] {
	var keys []K
	for id, p := range s.names {
		if p == owner {
			keys = append(keys, id)
		}
	}
	return RegNamesReply[K]{Keys: keys}
}

// queryDirect implements the foldNames snapshot cast.
func (s *Service[K]) queryDirect(variant QueryVariant) SnapshotReply[K] {
	if variant == QueryProperties {
		return SnapshotReply[K]{Err: ErrPropertiesNotImplemented}
	}

	snapshot := make(map[K]actor.ProcessId, len(s.names))
	for id, p := range s.names {
		snapshot[id] = p
	}
	return SnapshotReply[K]{Names: snapshot}
}

// monitor implements SPEC_FULL.md §4.E's monitor verb, including
// replay-on-subscribe.
func (s *Service[K]) monitor(ctx context.Context, key Key[K], mask fn.Option[EventMaskSet],
	subscriber Notifiable[K]) MonitorReply {

	s.monitorIDCount++
	ref := MonitorRef{Subscriber: subscriber.Pid(), Counter: s.monitorIDCount}
	entry := kmRef[K]{ref: ref, mask: mask, target: subscriber}

	s.watchSubscriber(subscriber.Pid(), subscriber)

	if entry.wantsMask(OnRegistered) {
		if key.Kind == AliasKey {
			if owner, ok := s.names[key.Identity]; ok {
				subscriber.NotifyKeyEvent(KeyMonitorNotification[K]{
					Key:   key,
					Ref:   ref,
					Event: Registered(owner),
				})
			}
		}
		// Property replay is deferred; see SPEC_FULL.md §9.
	}

	s.monitors[key.Identity] = append(s.monitors[key.Identity], entry)

	return MonitorReply{Ref: ref}
}

// notify implements SPEC_FULL.md §4.E's notify step, fired after every
// mutation that changes key state.
func (s *Service[K]) notify(ctx context.Context, key Key[K], event KeyUpdateEvent) {
	for _, entry := range s.monitors[key.Identity] {
		if !entry.wants(event) {
			continue
		}
		entry.target.NotifyKeyEvent(KeyMonitorNotification[K]{
			Key:   key,
			Ref:   entry.ref,
			Event: event,
		})
	}
}

// record forwards an emitted event to the optional diagnostic sink.
func (s *Service[K]) record(ctx context.Context, key Key[K], owner actor.ProcessId, event KeyUpdateEvent) {
	if s.sink == nil {
		return
	}
	s.sink.RecordKeyEvent(ctx, key.String(), owner, event)
}

// reap implements SPEC_FULL.md §4.F, triggered by an internal processDownReq.
func (s *Service[K]) reap(ctx context.Context, pid actor.ProcessId, reason actor.DeathReason) {
	// 1. Subscriber cleanup.
	if _, ok := s.listeningPids[pid]; ok {
		delete(s.listeningPids, pid)
		for id, entries := range s.monitors {
			filtered := entries[:0]
			for _, e := range entries {
				if e.ref.Subscriber == pid {
					continue
				}
				filtered = append(filtered, e)
			}
			if len(filtered) == 0 {
				delete(s.monitors, id)
			} else {
				s.monitors[id] = filtered
			}
		}
	}

	// 2. Owner cleanup: every name this pid owned.
	var diedNames []K
	for id, owner := range s.names {
		if owner == pid {
			diedNames = append(diedNames, id)
		}
	}

	for _, id := range diedNames {
		key := Key[K]{Identity: id, Kind: AliasKey, Scope: pid, HasScope: true}

		for _, entry := range s.monitors[id] {
			var event KeyUpdateEvent
			switch {
			case entry.wants(OwnerDied(reason)):
				event = OwnerDied(reason)
			case entry.wants(Unregistered()):
				event = Unregistered()
			default:
				continue
			}
			entry.target.NotifyKeyEvent(KeyMonitorNotification[K]{
				Key:   key,
				Ref:   entry.ref,
				Event: event,
			})
			s.record(ctx, key, pid, event)
		}

		delete(s.names, id)
	}

	// Property cleanup is a no-op: property value storage is deferred,
	// so there is no properties table to clean.

	if _, ok := s.registeredPids[pid]; ok {
		delete(s.registeredPids, pid)
	}
}

// watchOwner ensures pid is monitored because it owns at least one name.
func (s *Service[K]) watchOwner(pid actor.ProcessId, w actor.Watchable) {
	if t, ok := s.registeredPids[pid]; ok {
		t.count++
		return
	}
	s.registeredPids[pid] = &ownerTracking{
		watchable: w,
		handle:    w.Watch(s.deathWatcher()),
		count:     1,
	}
}

// unwatchOwnerOne decrements pid's owner refcount, unwatching it entirely
// once it no longer owns anything.
func (s *Service[K]) unwatchOwnerOne(pid actor.ProcessId) {
	t, ok := s.registeredPids[pid]
	if !ok {
		return
	}
	t.count--
	if t.count <= 0 {
		t.watchable.Unwatch(t.handle)
		delete(s.registeredPids, pid)
	}
}

// watchSubscriber ensures pid is monitored because it subscribes to at
// least one key.
func (s *Service[K]) watchSubscriber(pid actor.ProcessId, w actor.Watchable) {
	if t, ok := s.listeningPids[pid]; ok {
		t.count++
		return
	}
	s.listeningPids[pid] = &subscriberTracking{
		watchable: w,
		handle:    w.Watch(s.deathWatcher()),
		count:     1,
	}
}

// purgeMonitors removes every subscription on id, releasing each
// subscriber's refcount.
func (s *Service[K]) purgeMonitors(id K) {
	entries := s.monitors[id]
	delete(s.monitors, id)

	for _, e := range entries {
		if t, ok := s.listeningPids[e.ref.Subscriber]; ok {
			t.count--
			if t.count <= 0 {
				t.watchable.Unwatch(t.handle)
				delete(s.listeningPids, e.ref.Subscriber)
			}
		}
	}
}

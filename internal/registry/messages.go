package registry

import (
	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// EventMaskSet is a small set of EventMask values, used to filter which
// events a subscriber receives.
type EventMaskSet map[EventMask]struct{}

// NewEventMaskSet builds a mask set from the given masks.
func NewEventMaskSet(masks ...EventMask) EventMaskSet {
	s := make(EventMaskSet, len(masks))
	for _, m := range masks {
		s[m] = struct{}{}
	}
	return s
}

// Contains reports whether m is in the set.
func (s EventMaskSet) Contains(m EventMask) bool {
	_, ok := s[m]
	return ok
}

// Notifiable is implemented by anything that can receive registry
// notifications and be monitored for liveness. Real callers typically
// implement NotifyKeyEvent by enqueuing the event onto their own actor's
// mailbox (wrapping it in their own message type); the registry's await
// helper implements it with a small internal waiter (see await.go).
type Notifiable[K Keyable] interface {
	actor.Watchable

	// NotifyKeyEvent delivers a single fan-out notification. Must not
	// block; implementations are expected to enqueue and return, the
	// same non-blocking-send discipline the rest of this codebase's
	// pub/sub hubs use.
	NotifyKeyEvent(KeyMonitorNotification[K])
}

// Request is the sealed interface for the registry actor's six inbound
// message families, plus the internal seventh (processDownReq).
type Request[K Keyable] interface {
	actor.Message
	isRegistryRequest()
}

// RegisterKeyReq asks the registry to bind Key.Identity to Owner.Pid().
type RegisterKeyReq[K Keyable] struct {
	actor.BaseMessage
	Key   Key[K]
	Owner actor.Watchable
}

func (RegisterKeyReq[K]) isRegistryRequest()   {}
func (RegisterKeyReq[K]) MessageType() string { return "registry.RegisterKeyReq" }

// UnregisterKeyReq asks the registry to release Key.Identity, which must
// currently be owned by Key.Scope.
type UnregisterKeyReq[K Keyable] struct {
	actor.BaseMessage
	Key Key[K]
}

func (UnregisterKeyReq[K]) isRegistryRequest()   {}
func (UnregisterKeyReq[K]) MessageType() string { return "registry.UnregisterKeyReq" }

// LookupKeyReq asks for the current owner of Key.Identity, if any.
type LookupKeyReq[K Keyable] struct {
	actor.BaseMessage
	Key Key[K]
}

func (LookupKeyReq[K]) isRegistryRequest()   {}
func (LookupKeyReq[K]) MessageType() string { return "registry.LookupKeyReq" }

// RegNamesReq asks for every Alias key currently owned by Owner.
type RegNamesReq[K Keyable] struct {
	actor.BaseMessage
	Owner actor.ProcessId
}

func (RegNamesReq[K]) isRegistryRequest()   {}
func (RegNamesReq[K]) MessageType() string { return "registry.RegNamesReq" }

// MonitorReq asks the registry to start delivering KeyUpdateEvents for Key
// to Subscriber, filtered by Mask (None means "every event").
type MonitorReq[K Keyable] struct {
	actor.BaseMessage
	Key        Key[K]
	Mask       fn.Option[EventMaskSet]
	Subscriber Notifiable[K]
}

func (MonitorReq[K]) isRegistryRequest()   {}
func (MonitorReq[K]) MessageType() string { return "registry.MonitorReq" }

// QueryDirectReq asks the registry for a point-in-time snapshot of its name
// table (property snapshots are not implemented, see §9 of SPEC_FULL.md).
type QueryDirectReq[K Keyable] struct {
	actor.BaseMessage
	Variant QueryVariant
}

// QueryVariant selects what QueryDirectReq snapshots.
type QueryVariant int

const (
	// QueryNames snapshots the Alias name table.
	QueryNames QueryVariant = iota

	// QueryProperties would snapshot the property table; deferred (see
	// DESIGN.md), handling it returns a domain error.
	QueryProperties
)

func (QueryDirectReq[K]) isRegistryRequest()   {}
func (QueryDirectReq[K]) MessageType() string { return "registry.QueryDirectReq" }

// processDownReq is the internal, high-priority signal delivered when a
// watched owner or subscriber terminates. It is never sent by clients.
type processDownReq[K Keyable] struct {
	actor.BaseMessage
	Pid    actor.ProcessId
	Reason actor.DeathReason
}

func (processDownReq[K]) isRegistryRequest()   {}
func (processDownReq[K]) MessageType() string { return "registry.processDownReq" }

// Priority implements actor.PriorityMessage: ProcessDown always outranks
// ordinary client requests so a dead owner is reaped before any client can
// observe a stale binding.
func (processDownReq[K]) Priority() int { return 1 }

// Response is the sealed interface for every reply the registry actor can
// produce. The marker method carries no type parameter, so a single
// non-generic reply type (e.g. RegisterKeyReply) satisfies Response[K] for
// every K; only replies that actually carry K-typed payloads need to be
// generic themselves (RegNamesReply, SnapshotReply).
type Response[K Keyable] interface {
	isRegistryResponse()
}

// RegisterOutcome is the result of a register call.
type RegisterOutcome int

const (
	RegisteredOk RegisterOutcome = iota
	AlreadyRegistered
)

func (o RegisterOutcome) String() string {
	if o == RegisteredOk {
		return "RegisteredOk"
	}
	return "AlreadyRegistered"
}

// RegisterKeyReply answers a RegisterKeyReq.
type RegisterKeyReply struct {
	Outcome RegisterOutcome
}

func (RegisterKeyReply) isRegistryResponse() {}

// UnregisterOutcome is the result of an unregister call.
type UnregisterOutcome int

const (
	UnregisterOk UnregisterOutcome = iota
	UnregisterInvalidKey
	UnregisterKeyNotFound
)

func (o UnregisterOutcome) String() string {
	switch o {
	case UnregisterOk:
		return "UnregisterOk"
	case UnregisterInvalidKey:
		return "UnregisterInvalidKey"
	default:
		return "UnregisterKeyNotFound"
	}
}

// UnregisterKeyReply answers an UnregisterKeyReq.
type UnregisterKeyReply struct {
	Outcome UnregisterOutcome
}

func (UnregisterKeyReply) isRegistryResponse() {}

// LookupKeyReply answers a LookupKeyReq.
type LookupKeyReply struct {
	Owner fn.Option[actor.ProcessId]
}

func (LookupKeyReply) isRegistryResponse() {}

// RegNamesReply answers a RegNamesReq with every key owned by the requested
// process.
type RegNamesReply[K Keyable] struct {
	Keys []K
}

func (RegNamesReply[K]) isRegistryResponse() {}

// MonitorReply answers a MonitorReq with the newly minted MonitorRef.
type MonitorReply struct {
	Ref MonitorRef
}

func (MonitorReply) isRegistryResponse() {}

// SnapshotReply answers a QueryDirectReq.
type SnapshotReply[K Keyable] struct {
	// Names is nil and Err is set if the snapshot could not be produced
	// (e.g. QueryProperties, which is not implemented).
	Names map[K]actor.ProcessId
	Err   error
}

func (SnapshotReply[K]) isRegistryResponse() {}

package registry

import (
	"fmt"

	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
)

// EventMask is one of the four filterable event categories a subscriber can
// opt into.
type EventMask int

const (
	// OnRegistered fires when a key becomes bound to an owner.
	OnRegistered EventMask = iota

	// OnUnregistered fires when an owner voluntarily releases a key.
	OnUnregistered

	// OnOwnershipChange fires when a key's owner changes or dies. Both
	// OwnerDied and OwnerChanged map here.
	OnOwnershipChange

	// OnLeaseExpiry fires when a leased key's lease expires. No timer in
	// this implementation ever drives this event (see Non-goals); the
	// mask value exists so the taxonomy is complete and future lease
	// support does not require a wire-format change.
	OnLeaseExpiry
)

// String renders the mask for diagnostics.
func (m EventMask) String() string {
	switch m {
	case OnRegistered:
		return "on_registered"
	case OnUnregistered:
		return "on_unregistered"
	case OnOwnershipChange:
		return "on_ownership_change"
	case OnLeaseExpiry:
		return "on_lease_expiry"
	default:
		return "unknown_mask"
	}
}

// EventKind enumerates the five KeyUpdateEvent constructors.
type EventKind int

const (
	EventRegistered EventKind = iota
	EventUnregistered
	EventLeaseExpired
	EventOwnerDied
	EventOwnerChanged
)

// KeyUpdateEvent is the payload carried in a notification to a subscriber.
// Exactly one of the fields below is meaningful, selected by Kind.
type KeyUpdateEvent struct {
	Kind EventKind

	// Owner is set for Registered.
	Owner actor.ProcessId

	// Reason is set for OwnerDied.
	Reason actor.DeathReason

	// Prev/New are set for OwnerChanged.
	Prev actor.ProcessId
	New  actor.ProcessId
}

// Registered builds a Registered event.
func Registered(owner actor.ProcessId) KeyUpdateEvent {
	return KeyUpdateEvent{Kind: EventRegistered, Owner: owner}
}

// Unregistered builds an Unregistered event.
func Unregistered() KeyUpdateEvent {
	return KeyUpdateEvent{Kind: EventUnregistered}
}

// OwnerDied builds an OwnerDied event.
func OwnerDied(reason actor.DeathReason) KeyUpdateEvent {
	return KeyUpdateEvent{Kind: EventOwnerDied, Reason: reason}
}

// OwnerChanged builds an OwnerChanged event.
func OwnerChanged(prev, next actor.ProcessId) KeyUpdateEvent {
	return KeyUpdateEvent{Kind: EventOwnerChanged, Prev: prev, New: next}
}

// String renders the event for diagnostics.
func (e KeyUpdateEvent) String() string {
	switch e.Kind {
	case EventRegistered:
		return fmt.Sprintf("Registered(%s)", e.Owner)
	case EventUnregistered:
		return "Unregistered"
	case EventLeaseExpired:
		return "LeaseExpired"
	case EventOwnerDied:
		return fmt.Sprintf("OwnerDied(%s)", e.Reason)
	case EventOwnerChanged:
		return fmt.Sprintf("OwnerChanged(%s -> %s)", e.Prev, e.New)
	default:
		return "UnknownEvent"
	}
}

// maskFor deterministically folds the five event constructors into the four
// mask values.
func maskFor(e KeyUpdateEvent) EventMask {
	switch e.Kind {
	case EventRegistered:
		return OnRegistered
	case EventUnregistered:
		return OnUnregistered
	case EventLeaseExpired:
		return OnLeaseExpiry
	case EventOwnerDied, EventOwnerChanged:
		return OnOwnershipChange
	default:
		panic(fmt.Sprintf("registry: unhandled event kind %d in maskFor", e.Kind))
	}
}

// MonitorRef is the opaque handle returned by monitor, unique across the
// lifetime of a registry instance.
type MonitorRef struct {
	Subscriber actor.ProcessId
	Counter    uint64
}

// String renders the ref for diagnostics.
func (r MonitorRef) String() string {
	return fmt.Sprintf("mref(%s,#%d)", r.Subscriber, r.Counter)
}

// KeyMonitorNotification is the fan-out message delivered to a subscriber
// when a mutation it is watching occurs.
type KeyMonitorNotification[K Keyable] struct {
	Key   Key[K]
	Ref   MonitorRef
	Event KeyUpdateEvent
}

// Package registry implements an in-memory process registry: a single
// actor that binds application-defined keys to live actor process
// identities, with subscription-based change notification and automatic
// cleanup when a bound process dies.
package registry

import (
	"fmt"

	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
)

// Keyable is the capability bundle required of any type used as a key
// identity: it must be usable as a Go map key (comparable, which also gives
// us equality and hashability for free) and printable for diagnostics.
// Wire serialization is not layered on top of this constraint: no codec
// library survived the retrieval pack for this repository (see DESIGN.md),
// and the registry never crosses a process boundary on its own, so adding a
// serialization requirement here would be speculative.
type Keyable interface {
	comparable
	fmt.Stringer
}

// KeyKind distinguishes registry-unique Alias keys from per-owner Property
// keys.
type KeyKind int

const (
	// AliasKey identifies a name intended to have exactly one owner
	// process at a time, unique across the whole registry.
	AliasKey KeyKind = iota

	// PropertyKey identifies a (process, name) pair; uniqueness is only
	// enforced per owning process. Property value storage is deferred
	// (see DESIGN.md); only the interface surface exists today.
	PropertyKey
)

// String renders the key kind for diagnostics and log output.
func (k KeyKind) String() string {
	switch k {
	case AliasKey:
		return "alias"
	case PropertyKey:
		return "property"
	default:
		return "unknown"
	}
}

// Key is the value type clients register, look up, and monitor. Hashing,
// when a Key is used as a table index, is by Identity alone; Kind and Scope
// are carried alongside for precondition checks and ownership tracking, not
// folded into the map index.
type Key[K Keyable] struct {
	// Identity is the application-defined name or property name.
	Identity K

	// Kind distinguishes Alias from Property keys.
	Kind KeyKind

	// Scope names the owner at registration/unregistration time. It is
	// unset on pure lookups and on subscriptions to a not-yet-registered
	// key.
	Scope actor.ProcessId

	// HasScope reports whether Scope is meaningful. A zero-value
	// actor.ProcessId ("") is a valid-looking string but never a real
	// minted process id (see actor.NewActor), so this flag disambiguates
	// "no scope supplied" from any hypothetical zero value.
	HasScope bool
}

// AliasKeyFor builds an Alias key scoped to the given owner, the shape
// required by register/unregister.
func AliasKeyFor[K Keyable](id K, owner actor.ProcessId) Key[K] {
	return Key[K]{Identity: id, Kind: AliasKey, Scope: owner, HasScope: true}
}

// LookupKey builds an unscoped Alias key, the shape required by lookup and
// by monitor's replay-on-subscribe check.
func LookupKey[K Keyable](id K) Key[K] {
	return Key[K]{Identity: id, Kind: AliasKey}
}

// String renders the key for diagnostics.
func (k Key[K]) String() string {
	if k.HasScope {
		return fmt.Sprintf("%s(%s)@%s", k.Kind, k.Identity, k.Scope)
	}
	return fmt.Sprintf("%s(%s)", k.Kind, k.Identity)
}

// Addressable is anything that can be resolved to a live ProcessId. Await
// and AwaitTimeout resolve their registry Handle through this capability
// before doing anything else, so an unresolvable or nil address fails fast
// with ErrUnresolvableAddress rather than hanging or panicking.
type Addressable interface {
	// Resolve returns the process identity this address currently points
	// to, or ok=false if it cannot be resolved.
	Resolve() (actor.ProcessId, bool)
}

package registry

import "errors"

// ErrPropertiesNotImplemented is returned for a property snapshot request
// (QueryDirectReq with QueryProperties). Property value storage is deferred
// (see SPEC_FULL.md §9 and the Non-goals in §1); register, unregister and
// lookup reject Property keys with ErrBadPrecondition instead.
var ErrPropertiesNotImplemented = errors.New("registry: property value storage is not implemented")

// ErrBadPrecondition is the error reply of the registry actor itself (see
// SPEC_FULL.md §7) to a request that violates a precondition the dispatcher
// enforces, such as registering a Property key or registering without a
// scope.
var ErrBadPrecondition = errors.New("registry: precondition violation")

// ErrUnresolvableAddress is returned by the await helper when the registry's
// address cannot be resolved to a live ProcessId.
var ErrUnresolvableAddress = errors.New("registry: address could not be resolved")

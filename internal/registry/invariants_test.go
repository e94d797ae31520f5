package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// newRapidService returns a fresh registry Service and a synchronous self
// reference, suitable for single-threaded property checks: every Receive
// call here is driven directly from the property's own goroutine, so there
// is no interleaving to reason about beyond what each property explores.
func newRapidService(t *rapid.T) (*Service[nameKey], context.Context) {
	svc := NewService[nameKey](nil)
	svc.bindSelf(&selfCollector[nameKey]{svc: svc})
	return svc, context.Background()
}

// TestInvariant_RegisterThenLookupRoundTrips checks the round-trip law: for
// any distinct key registered by some owner, an immediate lookup returns
// that exact owner.
func TestInvariant_RegisterThenLookupRoundTrips(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		svc, ctx := newRapidService(rt)

		numOwners := rapid.IntRange(1, 20).Draw(rt, "numOwners")
		for i := 0; i < numOwners; i++ {
			owner := newFakeProcess(fmt.Sprintf("owner-%d", i))
			key := nameKey(fmt.Sprintf("name-%d", i))

			resp, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{
				Key: AliasKeyFor(key, owner.Pid()), Owner: owner,
			}).Unpack()
			require.NoError(rt, err)
			require.Equal(rt, RegisteredOk, resp.(RegisterKeyReply).Outcome)

			lookupResp, err := svc.Receive(ctx, LookupKeyReq[nameKey]{Key: LookupKey[nameKey](key)}).Unpack()
			require.NoError(rt, err)
			require.True(rt, lookupResp.(LookupKeyReply).Owner.IsSome())
			require.Equal(rt, owner.Pid(), lookupResp.(LookupKeyReply).Owner.UnwrapOr(""))
		}
	})
}

// TestInvariant_UnregisterThenLookupIsAbsent checks the second round-trip
// law: register followed by unregister always leaves a key unresolvable.
func TestInvariant_UnregisterThenLookupIsAbsent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		svc, ctx := newRapidService(rt)

		owner := newFakeProcess("owner")
		key := nameKey("ephemeral")

		_, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{
			Key: AliasKeyFor(key, owner.Pid()), Owner: owner,
		}).Unpack()
		require.NoError(rt, err)

		_, err = svc.Receive(ctx, UnregisterKeyReq[nameKey]{
			Key: AliasKeyFor(key, owner.Pid()),
		}).Unpack()
		require.NoError(rt, err)

		lookupResp, err := svc.Receive(ctx, LookupKeyReq[nameKey]{Key: LookupKey[nameKey](key)}).Unpack()
		require.NoError(rt, err)
		require.True(rt, lookupResp.(LookupKeyReply).Owner.IsNone())
	})
}

// TestInvariant_NoKeyHasTwoOwners checks that across any sequence of
// register attempts by distinct owners against the same key, at most the
// first ever succeeds; the key's owner never changes underneath a
// subsequent racing register.
func TestInvariant_NoKeyHasTwoOwners(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		svc, ctx := newRapidService(rt)
		key := nameKey("contested")

		numAttempts := rapid.IntRange(2, 15).Draw(rt, "numAttempts")
		firstOwner := fn.None[string]()

		for i := 0; i < numAttempts; i++ {
			owner := newFakeProcess(fmt.Sprintf("owner-%d", i))
			resp, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{
				Key: AliasKeyFor(key, owner.Pid()), Owner: owner,
			}).Unpack()
			require.NoError(rt, err)

			outcome := resp.(RegisterKeyReply).Outcome
			if firstOwner.IsNone() {
				require.Equal(rt, RegisteredOk, outcome)
				firstOwner = fn.Some(string(owner.Pid()))
			} else {
				require.Equal(rt, AlreadyRegistered, outcome)
			}
		}

		lookupResp, err := svc.Receive(ctx, LookupKeyReq[nameKey]{Key: LookupKey[nameKey](key)}).Unpack()
		require.NoError(rt, err)
		require.Equal(rt, firstOwner.UnwrapOr(""), string(lookupResp.(LookupKeyReply).Owner.UnwrapOr("")))
	})
}

// TestInvariant_RegisteredNamesMatchesOwnership checks that
// RegNamesReq always returns exactly the set of keys currently owned by the
// queried pid, regardless of how many other owners and keys exist.
func TestInvariant_RegisteredNamesMatchesOwnership(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		svc, ctx := newRapidService(rt)

		numOwners := rapid.IntRange(1, 6).Draw(rt, "numOwners")
		namesPerOwner := rapid.IntRange(0, 5).Draw(rt, "namesPerOwner")

		expected := make(map[string]map[nameKey]struct{})
		for o := 0; o < numOwners; o++ {
			owner := newFakeProcess(fmt.Sprintf("owner-%d", o))
			expected[string(owner.Pid())] = make(map[nameKey]struct{})

			for n := 0; n < namesPerOwner; n++ {
				key := nameKey(fmt.Sprintf("owner-%d-name-%d", o, n))
				resp, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{
					Key: AliasKeyFor(key, owner.Pid()), Owner: owner,
				}).Unpack()
				require.NoError(rt, err)
				require.Equal(rt, RegisteredOk, resp.(RegisterKeyReply).Outcome)
				expected[string(owner.Pid())][key] = struct{}{}
			}

			namesResp, err := svc.Receive(ctx, RegNamesReq[nameKey]{Owner: owner.Pid()}).Unpack()
			require.NoError(rt, err)

			got := namesResp.(RegNamesReply[nameKey]).Keys
			require.Len(rt, got, len(expected[string(owner.Pid())]))
			for _, k := range got {
				_, ok := expected[string(owner.Pid())][k]
				require.True(rt, ok, "unexpected name %s for owner", k)
			}
		}
	})
}

// TestInvariant_DeathAlwaysReleasesEveryOwnedName checks that killing an
// owner, at any point after registering an arbitrary set of names, leaves
// none of those names resolvable afterward.
func TestInvariant_DeathAlwaysReleasesEveryOwnedName(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		svc, ctx := newRapidService(rt)

		owner := newFakeProcess("owner")
		numNames := rapid.IntRange(0, 10).Draw(rt, "numNames")

		var keys []nameKey
		for i := 0; i < numNames; i++ {
			key := nameKey(fmt.Sprintf("name-%d", i))
			keys = append(keys, key)
			_, err := svc.Receive(ctx, RegisterKeyReq[nameKey]{
				Key: AliasKeyFor(key, owner.Pid()), Owner: owner,
			}).Unpack()
			require.NoError(rt, err)
		}

		owner.Kill(actor.ExceptionReason("boom"))

		for _, key := range keys {
			lookupResp, err := svc.Receive(ctx, LookupKeyReq[nameKey]{Key: LookupKey[nameKey](key)}).Unpack()
			require.NoError(rt, err)
			require.True(rt, lookupResp.(LookupKeyReply).Owner.IsNone())
		}
	})
}

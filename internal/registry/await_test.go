package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAwait_ReturnsImmediatelyWhenAlreadyRegistered(t *testing.T) {
	ctx := context.Background()
	h := Start[nameKey](nil)
	defer h.Stop()

	owner := newFakeProcess("svc-owner")
	_, err := AddName(ctx, h, owner, nameKey("queue"))
	require.NoError(t, err)

	result, err := AwaitTimeout(ctx, h, nameKey("queue"), time.Second)
	require.NoError(t, err)
	require.Equal(t, AwaitRegistered, result.Outcome)
	require.Equal(t, owner.Pid(), result.Owner)
}

func TestAwait_BlocksUntilConcurrentRegistration(t *testing.T) {
	ctx := context.Background()
	h := Start[nameKey](nil)
	defer h.Stop()

	owner := newFakeProcess("svc-owner")
	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = AddName(ctx, h, owner, nameKey("cache"))
	}()

	result, err := AwaitTimeout(ctx, h, nameKey("cache"), time.Second)
	require.NoError(t, err)
	require.Equal(t, AwaitRegistered, result.Outcome)
	require.Equal(t, owner.Pid(), result.Owner)
}

func TestAwaitTimeout_TimesOutWhenNeverRegistered(t *testing.T) {
	ctx := context.Background()
	h := Start[nameKey](nil)
	defer h.Stop()

	result, err := AwaitTimeout(ctx, h, nameKey("never"), 30*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, AwaitTimedOut, result.Outcome)
}

func TestAwait_ReportsServerUnreachableWhenRegistryStops(t *testing.T) {
	ctx := context.Background()
	h := Start[nameKey](nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		h.Stop()
	}()

	result, err := Await(ctx, h, nameKey("whatever"))
	require.NoError(t, err)
	require.Equal(t, AwaitServerUnreachable, result.Outcome)
}

func TestAwait_UnresolvableAddress(t *testing.T) {
	_, err := Await[nameKey](context.Background(), nil, nameKey("x"))
	require.ErrorIs(t, err, ErrUnresolvableAddress)
}

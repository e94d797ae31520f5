package actorutil

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
)

// testMessage is a simple message type for testing.
type testMessage struct {
	actor.BaseMessage
	value int
}

func (m testMessage) MessageType() string { return "test" }

// testBehavior implements ActorBehavior for testing.
type testBehavior struct {
	delay    time.Duration
	err      error
	received *atomic.Int64
}

func newTestBehavior() *testBehavior {
	return &testBehavior{
		received: &atomic.Int64{},
	}
}

func (b *testBehavior) Receive(ctx context.Context, msg testMessage) fn.Result[int] {
	b.received.Add(1)

	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return fn.Err[int](ctx.Err())
		}
	}

	if b.err != nil {
		return fn.Err[int](b.err)
	}

	return fn.Ok(msg.value * 2)
}

// createTestActor creates a test actor with the given behavior.
func createTestActor(id string, behavior *testBehavior) *actor.Actor[testMessage, int] {
	cfg := actor.ActorConfig[testMessage, int]{
		ID:          id,
		Behavior:    behavior,
		MailboxSize: 10,
	}
	a := actor.NewActor(cfg)
	a.Start()
	return a
}

// TestAskAwait tests the AskAwait helper function.
func TestAskAwait(t *testing.T) {
	t.Parallel()

	behavior := newTestBehavior()
	a := createTestActor("test-ask-await", behavior)
	defer a.Stop()

	ctx := context.Background()
	msg := testMessage{value: 21}

	result, err := AskAwait(ctx, a.Ref(), msg)
	if err != nil {
		t.Fatalf("AskAwait returned error: %v", err)
	}

	// The behavior doubles the value.
	if result != 42 {
		t.Errorf("expected 42, got %d", result)
	}

	if behavior.received.Load() != 1 {
		t.Errorf("expected behavior to receive 1 message, got %d", behavior.received.Load())
	}
}

// TestAskAwait_Error tests AskAwait when the actor returns an error.
func TestAskAwait_Error(t *testing.T) {
	t.Parallel()

	testErr := errors.New("test error")
	behavior := newTestBehavior()
	behavior.err = testErr

	a := createTestActor("test-ask-await-error", behavior)
	defer a.Stop()

	ctx := context.Background()
	msg := testMessage{value: 10}

	_, err := AskAwait(ctx, a.Ref(), msg)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if !errors.Is(err, testErr) {
		t.Errorf("expected test error, got %v", err)
	}
}

// TestAskAwait_ContextCancelled tests AskAwait with a cancelled context.
func TestAskAwait_ContextCancelled(t *testing.T) {
	t.Parallel()

	behavior := newTestBehavior()
	behavior.delay = 100 * time.Millisecond

	a := createTestActor("test-ask-await-cancelled", behavior)
	defer a.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	msg := testMessage{value: 10}

	_, err := AskAwait(ctx, a.Ref(), msg)
	if err == nil {
		t.Fatal("expected error due to context cancellation")
	}
}

// TestAskAwaitTyped tests the AskAwaitTyped helper function.
func TestAskAwaitTyped(t *testing.T) {
	t.Parallel()

	behavior := newTestBehavior()
	a := createTestActor("test-ask-await-typed", behavior)
	defer a.Stop()

	ctx := context.Background()
	msg := testMessage{value: 5}

	// int is the expected type (response is int).
	result, err := AskAwaitTyped[testMessage, int, int](ctx, a.Ref(), msg)
	if err != nil {
		t.Fatalf("AskAwaitTyped returned error: %v", err)
	}

	if result != 10 {
		t.Errorf("expected 10, got %d", result)
	}
}


package registry

import (
	"context"

	"github.com/BirdseyeSoftware/distributed-process-platform/internal/actorutil"
	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// defaultMailboxSize is the registry actor's mailbox capacity. The registry
// is meant to be a single long-lived actor serving an entire application, so
// a generous buffer avoids backpressure on bursts of registrations.
const defaultMailboxSize = 1024

// registryServiceKey names the service-discovery slot every registry actor
// registers itself under. One name suffices: every Handle gets its own
// Receptionist, so there is never more than one registrant per Receptionist.
const registryServiceKey = "process-registry"

// Handle is a started registry instance: an ActorRef plus the stable
// ProcessId of the actor behind it. It is the "registry address" the public
// API verbs operate against, and it implements Addressable by resolving
// itself through a Receptionist rather than trusting a bare non-nil pointer.
type Handle[K Keyable] struct {
	inner        *actor.Actor[Request[K], Response[K]]
	ref          actor.ActorRef[Request[K], Response[K]]
	receptionist *actor.Receptionist
	key          actor.ServiceKey[Request[K], Response[K]]
}

// Start spawns a new registry actor for key type K. sink may be nil, in
// which case no diagnostic audit trail is recorded.
func Start[K Keyable](sink EventSink) *Handle[K] {
	svc := NewService[K](sink)

	cfg := actor.ActorConfig[Request[K], Response[K]]{
		ID:          "process-registry",
		Behavior:    svc,
		MailboxSize: defaultMailboxSize,
		MailboxFactory: func(ctx context.Context, capacity int) actor.Mailbox[Request[K], Response[K]] {
			return actor.NewPriorityMailbox[Request[K], Response[K]](ctx, capacity)
		},
	}

	a := actor.NewActor(cfg)
	svc.bindSelf(a.Ref())
	a.Start()

	key := actor.NewServiceKey[Request[K], Response[K]](registryServiceKey)
	receptionist := actor.NewReceptionist()
	if err := actor.RegisterWithReceptionist(receptionist, key, a.Ref()); err != nil {
		// Only possible if two different K instantiations raced to claim
		// registryServiceKey in the same Receptionist, which cannot happen
		// since every Handle gets its own Receptionist.
		log.ErrorS(context.Background(), "failed to register registry with receptionist", "err", err)
	}

	log.InfoS(context.Background(), "Process registry started", "pid", a.Pid())

	return &Handle[K]{inner: a, ref: a.Ref(), receptionist: receptionist, key: key}
}

// Resolve implements Addressable. It reports the registry's ProcessId if and
// only if the registry actor can still be found via the Receptionist, which
// Stop removes it from; a nil Handle or one whose actor has been stopped and
// unregistered resolves to ok=false.
func (h *Handle[K]) Resolve() (actor.ProcessId, bool) {
	if h == nil {
		return "", false
	}
	refs := actor.FindInReceptionist(h.receptionist, h.key)
	if len(refs) == 0 {
		return "", false
	}
	return h.inner.Pid(), true
}

// Ref returns the raw ActorRef, for callers that want to build their own
// request/response plumbing.
func (h *Handle[K]) Ref() actor.ActorRef[Request[K], Response[K]] {
	return h.ref
}

// Pid returns the registry actor's ProcessId.
func (h *Handle[K]) Pid() actor.ProcessId {
	return h.inner.Pid()
}

// Watchable exposes the registry actor as a Watchable, so a client can
// install its own liveness monitor on it (used by Await/AwaitTimeout).
func (h *Handle[K]) Watchable() actor.Watchable {
	return h.inner.WatchRef()
}

// Stop terminates the registry actor. All registry state is discarded;
// clients must re-register against a freshly started Handle. It also
// unregisters from the Receptionist, so Resolve reports ok=false from this
// point on.
func (h *Handle[K]) Stop() {
	actor.UnregisterFromReceptionist(h.receptionist, h.key, h.ref)
	h.inner.Stop()
}

func ask[K Keyable, T Response[K]](ctx context.Context, h *Handle[K], req Request[K]) (T, error) {
	return actorutil.AskAwaitTyped[Request[K], Response[K], T](ctx, h.ref, req)
}

// AddName registers id for owner, where owner is also the caller (the
// common case: a process naming itself).
func AddName[K Keyable](ctx context.Context, h *Handle[K], owner actor.Watchable, id K) (RegisterOutcome, error) {
	return RegisterName(ctx, h, owner, id)
}

// RegisterName registers id for the given owner. owner must be Watchable so
// the registry can install a liveness monitor on it.
func RegisterName[K Keyable](ctx context.Context, h *Handle[K], owner actor.Watchable, id K) (RegisterOutcome, error) {
	key := AliasKeyFor(id, owner.Pid())
	resp, err := ask[K, RegisterKeyReply](ctx, h, RegisterKeyReq[K]{Key: key, Owner: owner})
	if err != nil {
		return 0, err
	}
	return resp.Outcome, nil
}

// UnregisterName releases id, which must currently be owned by owner.
func UnregisterName[K Keyable](ctx context.Context, h *Handle[K], owner actor.ProcessId, id K) (UnregisterOutcome, error) {
	key := Key[K]{Identity: id, Kind: AliasKey, Scope: owner, HasScope: true}
	resp, err := ask[K, UnregisterKeyReply](ctx, h, UnregisterKeyReq[K]{Key: key})
	if err != nil {
		return 0, err
	}
	return resp.Outcome, nil
}

// LookupName returns the current owner of id, if any.
func LookupName[K Keyable](ctx context.Context, h *Handle[K], id K) (actor.ProcessId, bool, error) {
	resp, err := ask[K, LookupKeyReply](ctx, h, LookupKeyReq[K]{Key: LookupKey(id)})
	if err != nil {
		return "", false, err
	}
	if resp.Owner.IsNone() {
		return "", false, nil
	}
	return resp.Owner.UnwrapOr(""), true, nil
}

// RegisteredNames returns every Alias key currently owned by pid, in no
// particular order.
func RegisteredNames[K Keyable](ctx context.Context, h *Handle[K], pid actor.ProcessId) ([]K, error) {
	resp, err := ask[K, RegNamesReply[K]](ctx, h, RegNamesReq[K]{Owner: pid})
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

// FoldNames folds f over a point-in-time snapshot of the registry's name
// table, taken atomically under the registry's single-writer boundary.
func FoldNames[K Keyable, Acc any](ctx context.Context, h *Handle[K], seed Acc,
	f func(acc Acc, key K, owner actor.ProcessId) Acc) (Acc, error) {

	resp, err := ask[K, SnapshotReply[K]](ctx, h, QueryDirectReq[K]{Variant: QueryNames})
	if err != nil {
		return seed, err
	}
	if resp.Err != nil {
		return seed, resp.Err
	}

	acc := seed
	for k, p := range resp.Names {
		acc = f(acc, k, p)
	}
	return acc, nil
}

// Monitor subscribes subscriber to changes on key, filtered by mask (None
// means every event). It returns the MonitorRef identifying the
// subscription, replaying a Registered event immediately if the key is
// already bound and the mask opts into OnRegistered.
func Monitor[K Keyable](ctx context.Context, h *Handle[K], key Key[K],
	mask fn.Option[EventMaskSet], subscriber Notifiable[K]) (MonitorRef, error) {

	resp, err := ask[K, MonitorReply](ctx, h, MonitorReq[K]{
		Key:        key,
		Mask:       mask,
		Subscriber: subscriber,
	})
	if err != nil {
		return MonitorRef{}, err
	}
	return resp.Ref, nil
}

// MonitorName is a convenience wrapper around Monitor for the common case of
// watching a single not-yet-scoped Alias key for every event.
func MonitorName[K Keyable](ctx context.Context, h *Handle[K], id K, subscriber Notifiable[K]) (MonitorRef, error) {
	return Monitor(ctx, h, LookupKey(id), fn.None[EventMaskSet](), subscriber)
}

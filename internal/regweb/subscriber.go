package regweb

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
	"github.com/BirdseyeSoftware/distributed-process-platform/internal/registry"
)

// remoteProcessCounter mints unique identities for the watchables this
// package stands in for a process that lives outside the actor runtime
// entirely: an HTTP caller or a connected browser.
var remoteProcessCounter atomic.Uint64

// remoteProcess implements actor.Watchable for a caller the registry needs
// to monitor but which is not itself a running actor: an HTTP-registered
// owner, or a websocket-connected subscriber. It never fires its watchers on
// its own; Kill does so explicitly. The websocket relay calls Kill when a
// client's connection drops; HTTP-registered owners are never killed, since
// an HTTP caller gives no disconnect signal. This mirrors the registry's
// own await.go waiter, the established idiom in this codebase for a
// non-actor Watchable.
type remoteProcess struct {
	pid actor.ProcessId

	mu       sync.Mutex
	next     atomic.Uint64
	watchers map[actor.MonitorHandle]actor.Watcher
	killed   bool
}

func newRemoteProcess(prefix string) *remoteProcess {
	id := remoteProcessCounter.Add(1)
	return &remoteProcess{
		pid:      actor.ProcessId(actorID(prefix, id)),
		watchers: make(map[actor.MonitorHandle]actor.Watcher),
	}
}

func actorID(prefix string, id uint64) string {
	return prefix + "#" + strconv.FormatUint(id, 10)
}

func (p *remoteProcess) ID() string { return string(p.pid) }

func (p *remoteProcess) Pid() actor.ProcessId { return p.pid }

func (p *remoteProcess) Watch(w actor.Watcher) actor.MonitorHandle {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := actor.MonitorHandle(p.next.Add(1))
	if p.killed {
		return h
	}
	p.watchers[h] = w
	return h
}

func (p *remoteProcess) Unwatch(h actor.MonitorHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.watchers, h)
}

// Kill fires every registered watcher exactly once, then marks this process
// dead so any later Watch is a no-op.
func (p *remoteProcess) Kill(reason actor.DeathReason) {
	p.mu.Lock()
	if p.killed {
		p.mu.Unlock()
		return
	}
	p.killed = true
	watchers := p.watchers
	p.watchers = nil
	p.mu.Unlock()

	for h, w := range watchers {
		w.OnProcessDown(p.pid, h, reason)
	}
}

// wsSubscriber adapts a websocket *Client into a registry.Notifiable[string],
// forwarding every notification onto the client's own outbound send queue.
type wsSubscriber struct {
	*remoteProcess
	client *Client
}

func newWSSubscriber(client *Client) *wsSubscriber {
	return &wsSubscriber{
		remoteProcess: newRemoteProcess("ws-subscriber"),
		client:        client,
	}
}

func (s *wsSubscriber) NotifyKeyEvent(n registry.KeyMonitorNotification[string]) {
	s.client.Send(&Message{
		Type: MsgTypeKeyEvent,
		Payload: keyEventPayload{
			Key:   n.Key.Identity,
			Kind:  eventKindString(n.Event.Kind),
			Owner: string(n.Event.Owner),
			Event: n.Event.String(),
		},
	})
}

// eventKindString renders a registry.EventKind the way a JSON client expects
// it: a small stable string rather than the bare int the type itself is.
func eventKindString(k registry.EventKind) string {
	switch k {
	case registry.EventRegistered:
		return "registered"
	case registry.EventUnregistered:
		return "unregistered"
	case registry.EventLeaseExpired:
		return "lease_expired"
	case registry.EventOwnerDied:
		return "owner_died"
	case registry.EventOwnerChanged:
		return "owner_changed"
	default:
		return "unknown"
	}
}

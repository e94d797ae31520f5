// Package eventlog is the registry's optional, non-authoritative audit
// trail: a SQLite-backed record of every KeyUpdateEvent the registry core
// emits, kept purely for after-the-fact diagnosis. Nothing in this package
// is ever consulted to reconstruct a registry's in-memory state; the
// registry always starts empty.
package eventlog

import (
	"context"
	"fmt"
	"time"

	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
	"github.com/BirdseyeSoftware/distributed-process-platform/internal/db"
	"github.com/BirdseyeSoftware/distributed-process-platform/internal/registry"
)

// queueDepth bounds the number of recorded events allowed to sit in flight
// between the registry's actor loop and the database writer goroutine. The
// registry's own notify() step never blocks on a slow subscriber; recording
// to disk follows the same rule, so a full queue drops the event rather
// than stall the registry.
const queueDepth = 1024

// entry pairs a recorded event with the arguments RecordKeyEvent received,
// queued for the writer goroutine.
type entry struct {
	keyID string
	owner actor.ProcessId
	event registry.KeyUpdateEvent
	at    time.Time
}

// Store is a SQLite-backed registry.EventSink. Writes happen off a
// background goroutine so RecordKeyEvent never blocks the registry's
// single-writer actor loop on disk I/O.
type Store struct {
	sqlite *db.SqliteStore
	queue  chan entry
	done   chan struct{}
}

// Open creates or opens the event log database at path, running any pending
// migrations, and starts the background writer.
func Open(path string) (*Store, error) {
	sqlite, err := db.NewSqliteStore(&db.SqliteConfig{
		DatabaseFileName: path,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("eventlog: opening store: %w", err)
	}

	s := &Store{
		sqlite: sqlite,
		queue:  make(chan entry, queueDepth),
		done:   make(chan struct{}),
	}
	go s.run()

	return s, nil
}

// RecordKeyEvent implements registry.EventSink.
func (s *Store) RecordKeyEvent(ctx context.Context, keyID string, owner actor.ProcessId,
	event registry.KeyUpdateEvent) {

	select {
	case s.queue <- entry{keyID: keyID, owner: owner, event: event, at: time.Now()}:
	default:
		log.Warn("eventlog queue full, dropping event", "key", keyID, "event", event.String())
	}
}

// run drains the queue onto the database until Close is called.
func (s *Store) run() {
	defer close(s.done)

	for e := range s.queue {
		if err := s.writeEntry(e); err != nil {
			log.Error("eventlog: failed to record event", "key", e.keyID, "error", err)
		}
	}
}

func (s *Store) writeEntry(e entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), db.DefaultStoreTimeout)
	defer cancel()

	return s.sqlite.WithTx(ctx, func(ctx context.Context, q *db.Queries) error {
		return q.InsertKeyEvent(ctx, db.InsertKeyEventParams{
			KeyIdentity:  e.keyID,
			KeyKind:      "alias",
			OwnerPid:     string(e.owner),
			EventKind:    eventKindString(e.event.Kind),
			Reason:       e.event.Reason.String(),
			PrevOwnerPid: string(e.event.Prev),
			NewOwnerPid:  string(e.event.New),
			RecordedAtNs: e.at.UnixNano(),
		})
	})
}

// Close stops the background writer, draining any queued events first, and
// closes the underlying database.
func (s *Store) Close() error {
	close(s.queue)
	<-s.done
	return s.sqlite.Close()
}

// RecentEvents returns the most recently recorded events across every key,
// newest first. Used by internal/regweb's dump page.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.sqlite.Queries().ListRecentKeyEvents(ctx, limit)
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

// EventsForKey returns every recorded event for a given rendered key
// identity, oldest first.
func (s *Store) EventsForKey(ctx context.Context, keyID string, limit int) ([]Record, error) {
	rows, err := s.sqlite.Queries().ListKeyEventsByIdentity(ctx, keyID, limit)
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

// Record is the eventlog's read-side view of a single audit row.
type Record struct {
	KeyIdentity string
	OwnerPid    string
	EventKind   string
	Reason      string
	PrevOwner   string
	NewOwner    string
	RecordedAt  time.Time
}

func toRecords(rows []db.KeyEventRow) []Record {
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = Record{
			KeyIdentity: r.KeyIdentity,
			OwnerPid:    r.OwnerPid,
			EventKind:   r.EventKind,
			Reason:      r.Reason,
			PrevOwner:   r.PrevOwnerPid,
			NewOwner:    r.NewOwnerPid,
			RecordedAt:  time.Unix(0, r.RecordedAtNs),
		}
	}
	return out
}

// eventKindString renders a registry.EventKind as the string stored in the
// event_kind column.
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

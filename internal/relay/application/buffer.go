package application

import (
	"log/slog"
	"time"

	"github.com/casavia/payments-gateway/internal/relay/domain"
)

const (
	DefaultBufferCap = 64
	DefaultBufferTTL = 30 * time.Minute
)

type pendingEntry struct {
	ev domain.Event
	at time.Time
}

// PendingBuffer holds events routed for an order while no client is
// connected, in insertion order, until a client joins and drains them.
//
// Retention is bounded two ways: each order keeps at most maxPerOrder events
// (oldest dropped first), and orders whose newest entry is older than ttl are
// evicted wholesale by Sweep. An order that never gets a connecting client
// therefore cannot grow the buffer forever.
//
// PendingBuffer is not safe for concurrent use on its own; the Router
// serializes access (see Registry).
type PendingBuffer struct {
	log         *slog.Logger
	maxPerOrder int
	ttl         time.Duration
	pending     map[string][]pendingEntry
	now         func() time.Time
}

func NewPendingBuffer(log *slog.Logger, maxPerOrder int, ttl time.Duration) *PendingBuffer {
	if maxPerOrder <= 0 {
		maxPerOrder = DefaultBufferCap
	}
	if ttl <= 0 {
		ttl = DefaultBufferTTL
	}
	return &PendingBuffer{
		log:         log,
		maxPerOrder: maxPerOrder,
		ttl:         ttl,
		pending:     make(map[string][]pendingEntry),
		now:         time.Now,
	}
}

// Enqueue appends the event to the sequence for its order, creating the
// sequence if absent. When the per-order cap is reached the oldest entry is
// dropped so a late-arriving client still sees the newest events.
func (b *PendingBuffer) Enqueue(orderID string, ev domain.Event) {
	entries := b.pending[orderID]
	if len(entries) >= b.maxPerOrder {
		dropped := entries[0]
		entries = entries[1:]
		b.log.Warn("pending buffer full, oldest event dropped", "order_id", orderID, "event", dropped.ev.Kind)
	}
	b.pending[orderID] = append(entries, pendingEntry{ev: ev, at: b.now()})
}

// Drain removes and returns all buffered events for the order in insertion
// order. A second drain with no enqueues in between returns nil.
func (b *PendingBuffer) Drain(orderID string) []domain.Event {
	entries, ok := b.pending[orderID]
	if !ok {
		return nil
	}
	delete(b.pending, orderID)
	events := make([]domain.Event, len(entries))
	for i, e := range entries {
		events[i] = e.ev
	}
	return events
}

// Len reports the number of buffered events for the order.
func (b *PendingBuffer) Len(orderID string) int {
	return len(b.pending[orderID])
}

// Sweep evicts every order whose newest buffered event is older than the TTL
// and returns the number of events evicted. Orders past the TTL have an
// expired checkout session anyway; nobody is coming back for those events.
func (b *PendingBuffer) Sweep(now time.Time) int {
	evicted := 0
	for orderID, entries := range b.pending {
		newest := entries[len(entries)-1].at
		if now.Sub(newest) < b.ttl {
			continue
		}
		evicted += len(entries)
		delete(b.pending, orderID)
		b.log.Info("stale pending events evicted", "order_id", orderID, "count", len(entries))
	}
	return evicted
}

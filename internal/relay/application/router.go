package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/casavia/payments-gateway/internal/relay/domain"
)

// Router is the single entry point connecting inbound domain events to
// outbound client delivery. For every event it decides between immediate
// broadcast (the room has live connections) and buffering (it has none), and
// it flushes the buffer to a connection that newly joins.
//
// One mutex serializes routing against connect/disconnect for all orders, so
// the broadcast-or-buffer decision and the register-then-drain sequence are
// each a single step: an event can never be buffered after a drain already
// ran, or broadcast into a room that is concurrently emptying.
type Router struct {
	mu       sync.Mutex
	log      *slog.Logger
	registry *Registry
	buffer   *PendingBuffer
}

func NewRouter(log *slog.Logger, registry *Registry, buffer *PendingBuffer) *Router {
	return &Router{log: log, registry: registry, buffer: buffer}
}

// Route delivers the event to every live connection watching its order, or
// buffers it when there are none. The decision follows room occupancy, not
// delivery success: a room with connections gets a best-effort broadcast, and
// a frame dropped by a slow client stays dropped for that client only instead
// of resurfacing from the buffer for a later joiner. This is the only place
// deciding buffer-vs-broadcast; no event is ever both buffered and broadcast.
func (rt *Router) Route(orderID string, ev domain.Event) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.registry.Connections(orderID) == 0 {
		rt.buffer.Enqueue(orderID, ev)
		rt.log.Info("no clients connected, event buffered", "order_id", orderID, "event", ev.Kind, "pending", rt.buffer.Len(orderID))
		return
	}
	n := rt.registry.Broadcast(orderID, ev)
	rt.log.Info("event broadcast", "order_id", orderID, "event", ev.Kind, "delivered", n)
}

// Connect registers the connection and flushes any pending events for its
// order directly to it, in original order. Registration and drain happen
// atomically, so events routed concurrently either reach the new connection
// live or sit in the drained batch, never neither.
func (rt *Router) Connect(orderID string, s Sink) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.registry.Register(orderID, s)
	events := rt.buffer.Drain(orderID)
	for _, ev := range events {
		if err := s.Send(ev); err != nil {
			rt.log.Warn("pending event delivery failed", "order_id", orderID, "client_id", s.ID(), "event", ev.Kind, "err", err)
		}
	}
	if len(events) > 0 {
		rt.log.Info("pending events flushed", "order_id", orderID, "client_id", s.ID(), "count", len(events))
	}
}

// Disconnect removes the connection from its room. Unknown connections are a
// no-op, so a disconnect racing a failed handshake is harmless.
func (rt *Router) Disconnect(orderID, sinkID string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.registry.Unregister(orderID, sinkID)
}

// Connections reports the number of live connections watching the order.
func (rt *Router) Connections(orderID string) int {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	return rt.registry.Connections(orderID)
}

// RunSweeper evicts stale pending buffers on the given interval until the
// context is cancelled.
func (rt *Router) RunSweeper(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			rt.log.Info("buffer sweeper stopping")
			return nil
		case now := <-t.C:
			rt.mu.Lock()
			rt.buffer.Sweep(now)
			rt.mu.Unlock()
		}
	}
}

package application

import (
	"log/slog"

	"github.com/casavia/payments-gateway/internal/relay/domain"
)

// Sink is one live client connection able to receive relay events.
type Sink interface {
	ID() string
	Send(ev domain.Event) error
}

// Registry tracks which live connections are watching which order. A room
// exists exactly while it has at least one connection; emptiness is
// represented by the absence of the key.
//
// Registry is not safe for concurrent use on its own. The Router serializes
// every access together with the pending buffer, so that the
// broadcast-or-buffer decision and register-then-drain never interleave.
type Registry struct {
	log   *slog.Logger
	rooms map[string]map[string]Sink
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:   log,
		rooms: make(map[string]map[string]Sink),
	}
}

// Register adds the connection to the room for orderID, creating the room if
// absent. Registering the same sink twice is a no-op.
func (r *Registry) Register(orderID string, s Sink) {
	room, ok := r.rooms[orderID]
	if !ok {
		room = make(map[string]Sink)
		r.rooms[orderID] = room
	}
	room[s.ID()] = s
	r.log.Info("client joined room", "order_id", orderID, "client_id", s.ID(), "room_size", len(room))
}

// Unregister removes the connection from the room. Removing the last
// connection deletes the room key. Unknown sinks are a no-op.
func (r *Registry) Unregister(orderID, sinkID string) {
	room, ok := r.rooms[orderID]
	if !ok {
		return
	}
	if _, ok := room[sinkID]; !ok {
		return
	}
	delete(room, sinkID)
	if len(room) == 0 {
		delete(r.rooms, orderID)
	}
	r.log.Info("client left room", "order_id", orderID, "client_id", sinkID)
}

// Broadcast sends the event to every live connection in the room and returns
// the number delivered. Delivery is best-effort per connection: a failed send
// is logged and does not stop delivery to siblings; the failed connection is
// reaped on its own disconnect signal.
func (r *Registry) Broadcast(orderID string, ev domain.Event) int {
	room, ok := r.rooms[orderID]
	if !ok {
		return 0
	}
	delivered := 0
	for id, s := range room {
		if err := s.Send(ev); err != nil {
			r.log.Warn("event delivery failed", "order_id", orderID, "client_id", id, "event", ev.Kind, "err", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Connections reports the number of live connections in the room.
func (r *Registry) Connections(orderID string) int {
	return len(r.rooms[orderID])
}

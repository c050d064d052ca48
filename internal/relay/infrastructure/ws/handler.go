package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/casavia/payments-gateway/internal/relay/application"
)

// AbandonNotifier forwards a client-originated session abandonment to the
// order-management collaborator.
type AbandonNotifier interface {
	PaymentSessionAbandoned(ctx context.Context, orderID string) error
}

// Handler upgrades HTTP requests into relay connections. Every connection is
// bound to exactly one order, taken from the required orderId query
// parameter at handshake time.
type Handler struct {
	log      *slog.Logger
	router   *application.Router
	notifier AbandonNotifier
	upgrader websocket.Upgrader
}

func NewHandler(log *slog.Logger, router *application.Router, notifier AbandonNotifier) *Handler {
	return &Handler{
		log:      log,
		router:   router,
		notifier: notifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the storefront origin; access
			// control happens at the edge.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handle is the connection endpoint. A request without an orderId is refused
// before the upgrade and never reaches the registry.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		h.log.Warn("connection rejected, missing orderId", "remote", r.RemoteAddr)
		http.Error(w, "orderId query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "order_id", orderID, "err", err)
		return
	}

	c := newClient(uuid.NewString(), orderID, conn, h.log)
	h.router.Connect(orderID, c)

	go c.writePump()
	go c.readPump(h.notifier, func() {
		// Unregister before the send channel closes so no broadcast can
		// reach a dead client.
		h.router.Disconnect(orderID, c.id)
	})
}

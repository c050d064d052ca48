package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/casavia/payments-gateway/internal/relay/domain"
)

const (
	sendBufferSize = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	forwardTimeout = 5 * time.Second
)

// ErrSlowClient is returned by Send when the client's outgoing buffer is
// full. The frame is dropped for that client only; the broadcast loop never
// blocks on a slow reader.
var ErrSlowClient = errors.New("client send buffer full")

// clientMessage is the inbound frame vocabulary. The only message clients
// originate is payment_session_abandoned.
type clientMessage struct {
	Event string `json:"event"`
	Data  struct {
		OrderID string `json:"orderId"`
	} `json:"data"`
}

// client is a single live connection watching one order for its whole
// lifetime. The write pump owns all writes to the underlying conn; Send only
// enqueues.
type client struct {
	id      string
	orderID string
	conn    *websocket.Conn
	send    chan domain.Event
	log     *slog.Logger
}

func newClient(id, orderID string, conn *websocket.Conn, log *slog.Logger) *client {
	return &client{
		id:      id,
		orderID: orderID,
		conn:    conn,
		send:    make(chan domain.Event, sendBufferSize),
		log:     log,
	}
}

func (c *client) ID() string { return c.id }

// Send enqueues the event for the write pump. It must only be called while
// the client is registered with the router; the read pump unregisters before
// closing the channel.
func (c *client) Send(ev domain.Event) error {
	select {
	case c.send <- ev:
		return nil
	default:
		return ErrSlowClient
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings. It exits when the send channel is closed.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				c.log.Warn("websocket write failed", "client_id", c.id, "order_id", c.orderID, "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes client-originated messages until the connection drops,
// then runs cleanup. A payment_session_abandoned message is not routed to
// the room; it is forwarded fire-and-forget to order-management.
func (c *client) readPump(notifier AbandonNotifier, cleanup func()) {
	defer func() {
		cleanup()
		close(c.send)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read failed", "client_id", c.id, "order_id", c.orderID, "err", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Warn("malformed client message dropped", "client_id", c.id, "err", err)
			continue
		}
		if msg.Event != string(domain.KindSessionAbandoned) || msg.Data.OrderID == "" {
			c.log.Info("unhandled client message dropped", "client_id", c.id, "event", msg.Event)
			continue
		}

		// Fire and forget: the notification is independent of this
		// connection's lifetime and its outcome is not reported back.
		orderID := msg.Data.OrderID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
			defer cancel()
			if err := notifier.PaymentSessionAbandoned(ctx, orderID); err != nil {
				c.log.Error("abandon notification failed", "order_id", orderID, "err", err)
				return
			}
			c.log.Info("payment session abandoned forwarded", "order_id", orderID)
		}()
	}
}

package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/casavia/payments-gateway/internal/payments/domain"
	relay "github.com/casavia/payments-gateway/internal/relay/domain"
)

const providerTimeout = 10 * time.Second

// Provider event types this service reacts to. Everything else is logged
// and dropped.
const (
	EventChargeSucceeded = "charge.succeeded"
	EventSessionExpired  = "checkout.session.expired"
)

const sessionErrorMessage = "Failed to create payment session. Please try again."

type Service struct {
	log      *slog.Logger
	provider ProviderClient
	repo     SessionRepository
	bus      EventPublisher
	router   EventRouter
}

func NewService(log *slog.Logger, provider ProviderClient, repo SessionRepository, bus EventPublisher, router EventRouter) *Service {
	return &Service{log: log, provider: provider, repo: repo, bus: bus, router: router}
}

// CreatePaymentSession creates a checkout session at the provider for the
// order and notifies the order's room either way: payment_session_created on
// success, payment_session_error on failure. The provider failure is
// converted to a notification instead of an error return so the room always
// hears about it; only a malformed order is an error to the caller.
func (s *Service) CreatePaymentSession(ctx context.Context, order domain.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	sess, err := s.provider.CreateCheckoutSession(cctx, order)
	if err != nil {
		s.log.Error("payment session creation failed", "order_id", order.OrderID, "err", err)
		s.router.Route(order.OrderID, relay.NewSessionError(order.OrderID, sessionErrorMessage))
		return nil
	}

	record := domain.NewPaymentSession(sess.ID, order.OrderID, sess.URL, order.TotalCents())
	if err := s.repo.Save(ctx, record); err != nil {
		// The client can still pay; the session record is bookkeeping.
		s.log.Error("payment session save failed", "order_id", order.OrderID, "session_id", sess.ID, "err", err)
	}

	s.log.Info("payment session created", "order_id", order.OrderID, "session_id", sess.ID)
	s.router.Route(order.OrderID, relay.NewSessionCreated(order.OrderID, sess.URL))
	return nil
}

// HandleWebhookEvent maps a verified provider event onto relay and bus
// notifications. Routing failures never surface to the webhook response;
// unknown event types are dropped.
func (s *Service) HandleWebhookEvent(ctx context.Context, ev WebhookEvent) {
	switch ev.Type {
	case EventChargeSucceeded:
		if ev.OrderID == "" {
			s.log.Warn("charge.succeeded without orderId metadata dropped", "event_id", ev.ID)
			return
		}
		s.handleChargeSucceeded(ctx, ev)
	case EventSessionExpired:
		if ev.OrderID == "" {
			s.log.Warn("checkout.session.expired without orderId metadata dropped", "event_id", ev.ID)
			return
		}
		s.handleSessionExpired(ctx, ev.OrderID)
	default:
		s.log.Info("unhandled webhook event type", "type", ev.Type, "event_id", ev.ID)
	}
}

func (s *Service) handleChargeSucceeded(ctx context.Context, ev WebhookEvent) {
	s.log.Info("charge succeeded", "order_id", ev.OrderID, "payment_id", ev.PaymentID)

	if err := s.repo.UpdateStatus(ctx, ev.OrderID, domain.SessionPaid); err != nil {
		s.log.Error("session status update failed", "order_id", ev.OrderID, "err", err)
	}

	s.router.Route(ev.OrderID, relay.NewPaymentSuccess(ev.OrderID, ev.PaymentID, ev.ReceiptURL))

	payload := domain.PaymentSucceeded{OrderID: ev.OrderID, StripePaymentID: ev.PaymentID, ReceiptURL: ev.ReceiptURL}
	if err := s.bus.PaymentSucceeded(ctx, payload); err != nil {
		s.log.Error("payment_succeeded publish failed", "order_id", ev.OrderID, "err", err)
	}
}

func (s *Service) handleSessionExpired(ctx context.Context, orderID string) {
	s.log.Info("payment session expired", "order_id", orderID)

	if err := s.repo.UpdateStatus(ctx, orderID, domain.SessionExpired); err != nil {
		s.log.Error("session status update failed", "order_id", orderID, "err", err)
	}

	s.router.Route(orderID, relay.NewSessionExpired(orderID))

	if err := s.bus.PaymentSessionExpired(ctx, orderID); err != nil {
		s.log.Error("payment_session_expired publish failed", "order_id", orderID, "err", err)
	}
}

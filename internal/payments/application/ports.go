package application

import (
	"context"

	"github.com/casavia/payments-gateway/internal/payments/domain"
	relay "github.com/casavia/payments-gateway/internal/relay/domain"
)

// ProviderSession is the opaque handle to a checkout session at the payment
// provider; the core only consumes its identifier and URL.
type ProviderSession struct {
	ID  string
	URL string
}

// WebhookEvent is a provider webhook after signature verification, reduced
// to the fields this service consumes. Type keeps the provider vocabulary
// (charge.succeeded, checkout.session.expired).
type WebhookEvent struct {
	ID         string
	Type       string
	OrderID    string
	PaymentID  string
	ReceiptURL string
}

type ProviderClient interface {
	CreateCheckoutSession(ctx context.Context, order domain.Order) (ProviderSession, error)
}

type WebhookVerifier interface {
	Verify(payload []byte, signature string) (WebhookEvent, error)
}

type SessionRepository interface {
	Save(ctx context.Context, s domain.PaymentSession) error
	UpdateStatus(ctx context.Context, orderID string, status domain.SessionStatus) error
	GetByOrder(ctx context.Context, orderID string) (domain.PaymentSession, error)
}

// EventPublisher emits fire-and-forget notifications to order-management.
type EventPublisher interface {
	PaymentSucceeded(ctx context.Context, e domain.PaymentSucceeded) error
	PaymentSessionExpired(ctx context.Context, orderID string) error
	PaymentSessionAbandoned(ctx context.Context, orderID string) error
}

// EventRouter delivers relay events to the clients watching an order.
type EventRouter interface {
	Route(orderID string, ev relay.Event)
}

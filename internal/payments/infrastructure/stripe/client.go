package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/casavia/payments-gateway/internal/payments/application"
	"github.com/casavia/payments-gateway/internal/payments/domain"
)

// Checkout sessions expire after the pending-buffer TTL would have evicted
// their events anyway.
const sessionLifetime = 30 * time.Minute

const metadataOrderID = "orderId"

type Config struct {
	SecretKey      string
	EndpointSecret string
	SuccessURL     string
	CancelURL      string
}

// Client talks to the Stripe API: checkout-session creation on the way out,
// webhook signature verification on the way in.
type Client struct {
	log *slog.Logger
	api *client.API
	cfg Config
}

func NewClient(log *slog.Logger, cfg Config) *Client {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &Client{log: log, api: api, cfg: cfg}
}

// CreateCheckoutSession builds one line item per dish plus one for the
// delivery fee and creates a payment-mode checkout session tagged with the
// order id, so every later webhook can be correlated back to the order.
func (c *Client) CreateCheckoutSession(ctx context.Context, order domain.Order) (application.ProviderSession, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items)+1)
	for _, item := range order.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(string(stripe.CurrencyEUR)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(domain.Cents(item.Price)),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	if order.DeliveryFee > 0 {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(string(stripe.CurrencyEUR)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Delivery"),
				},
				UnitAmount: stripe.Int64(domain.Cents(order.DeliveryFee)),
			},
			Quantity: stripe.Int64(1),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:      stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: lineItems,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{metadataOrderID: order.OrderID},
		},
		SuccessURL: stripe.String(fmt.Sprintf("%s?orderId=%s", c.cfg.SuccessURL, order.OrderID)),
		CancelURL:  stripe.String(fmt.Sprintf("%s?orderId=%s", c.cfg.CancelURL, order.OrderID)),
		ExpiresAt:  stripe.Int64(time.Now().Add(sessionLifetime).Unix()),
	}
	params.Context = ctx
	// The expired-session webhook carries session metadata, not the payment
	// intent's, so the order id goes on both.
	params.AddMetadata(metadataOrderID, order.OrderID)

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return application.ProviderSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	return application.ProviderSession{ID: sess.ID, URL: sess.URL}, nil
}

// Verify checks the webhook signature against the endpoint secret and
// extracts the fields the service consumes. Event types outside the handled
// set come back with only ID and Type filled.
func (c *Client) Verify(payload []byte, signature string) (application.WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.cfg.EndpointSecret)
	if err != nil {
		return application.WebhookEvent{}, fmt.Errorf("verify webhook signature: %w", err)
	}

	out := application.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case application.EventChargeSucceeded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return application.WebhookEvent{}, fmt.Errorf("decode charge: %w", err)
		}
		out.OrderID = charge.Metadata[metadataOrderID]
		out.PaymentID = charge.ID
		out.ReceiptURL = charge.ReceiptURL
	case application.EventSessionExpired:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return application.WebhookEvent{}, fmt.Errorf("decode checkout session: %w", err)
		}
		out.OrderID = sess.Metadata[metadataOrderID]
	}
	return out, nil
}

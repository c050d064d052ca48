package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/casavia/payments-gateway/internal/payments/application"
)

// Stripe events run well under 1 MiB; anything larger is rejected outright
// rather than truncated into a signature mismatch the provider would retry.
const maxWebhookBody = 1 << 20

// ReplayGuard remembers provider webhook event ids so redelivered webhooks
// are acknowledged without being routed twice.
type ReplayGuard interface {
	SeenWebhook(ctx context.Context, provider, eventID string) (bool, error)
}

type Handler struct {
	log      *slog.Logger
	verifier application.WebhookVerifier
	service  *application.Service
	replays  ReplayGuard
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, verifier application.WebhookVerifier, service *application.Service, replays ReplayGuard) *Handler {
	return &Handler{
		log:      log,
		verifier: verifier,
		service:  service,
		replays:  replays,
		tracer:   otel.Tracer("payments-http"),
	}
}

// Routes is mounted under /payments.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/webhook", h.stripeWebhook)

	return r
}

// stripeWebhook responds 400 only on signature failure. Once the signature
// checks out the response is 200 regardless of what routing does with the
// event; the provider must not retry on our internal outcomes.
func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "StripeWebhook")
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	event, err := h.verifier.Verify(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.log.Warn("webhook verification failed", "err", err)
		http.Error(w, fmt.Sprintf("Webhook Error: %v", err), http.StatusBadRequest)
		return
	}

	seen, err := h.replays.SeenWebhook(ctx, "stripe", event.ID)
	if err != nil {
		// Fail open: a duplicate notification beats a lost one.
		h.log.Error("webhook replay check failed", "event_id", event.ID, "err", err)
		seen = false
	}
	if seen {
		h.log.Info("duplicate webhook skipped", "event_id", event.ID, "type", event.Type)
	} else {
		h.service.HandleWebhookEvent(ctx, event)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"received": event.ID})
}

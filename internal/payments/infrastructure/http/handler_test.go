package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/casavia/payments-gateway/internal/payments/application"
	"github.com/casavia/payments-gateway/internal/payments/domain"
	relay "github.com/casavia/payments-gateway/internal/relay/domain"
)

type fakeVerifier struct {
	event application.WebhookEvent
	err   error
}

func (v *fakeVerifier) Verify([]byte, string) (application.WebhookEvent, error) {
	return v.event, v.err
}

type fakeReplays struct {
	seen bool
	err  error
}

func (r *fakeReplays) SeenWebhook(context.Context, string, string) (bool, error) {
	return r.seen, r.err
}

type nullProvider struct{}

func (nullProvider) CreateCheckoutSession(context.Context, domain.Order) (application.ProviderSession, error) {
	return application.ProviderSession{}, errors.New("not used")
}

type nullRepo struct{}

func (nullRepo) Save(context.Context, domain.PaymentSession) error { return nil }
func (nullRepo) UpdateStatus(context.Context, string, domain.SessionStatus) error {
	return nil
}
func (nullRepo) GetByOrder(context.Context, string) (domain.PaymentSession, error) {
	return domain.PaymentSession{}, errors.New("not used")
}

type nullBus struct{}

func (nullBus) PaymentSucceeded(context.Context, domain.PaymentSucceeded) error { return nil }
func (nullBus) PaymentSessionExpired(context.Context, string) error             { return nil }
func (nullBus) PaymentSessionAbandoned(context.Context, string) error           { return nil }

type recordingRouter struct {
	routed []relay.Event
}

func (r *recordingRouter) Route(_ string, ev relay.Event) {
	r.routed = append(r.routed, ev)
}

func newTestHandler(verifier *fakeVerifier, replays *fakeReplays, router *recordingRouter) *Handler {
	log := slog.New(slog.DiscardHandler)
	svc := application.NewService(log, nullProvider{}, nullRepo{}, nullBus{}, router)
	return NewHandler(log, verifier, svc, replays)
}

func postWebhook(h *Handler, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Mount("/payments", h.Routes())

	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_Invalid_Signature_Is_Rejected_And_Nothing_Routed(t *testing.T) {
	req := require.New(t)
	router := &recordingRouter{}
	h := newTestHandler(&fakeVerifier{err: errors.New("signature mismatch")}, &fakeReplays{}, router)

	w := postWebhook(h, `{}`)

	req.Equal(http.StatusBadRequest, w.Code)
	req.Contains(w.Body.String(), "Webhook Error")
	req.Empty(router.routed)
}

func TestWebhook_Valid_Event_Is_Routed_And_Acknowledged(t *testing.T) {
	req := require.New(t)
	router := &recordingRouter{}
	verifier := &fakeVerifier{event: application.WebhookEvent{
		ID:         "evt_1",
		Type:       application.EventChargeSucceeded,
		OrderID:    "abc123",
		PaymentID:  "ch_1",
		ReceiptURL: "https://r",
	}}
	h := newTestHandler(verifier, &fakeReplays{}, router)

	w := postWebhook(h, `{}`)

	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "evt_1")
	req.Len(router.routed, 1)
	req.Equal(relay.KindPaymentSuccess, router.routed[0].Kind)
}

func TestWebhook_Unknown_Event_Type_Still_Returns_OK(t *testing.T) {
	req := require.New(t)
	router := &recordingRouter{}
	verifier := &fakeVerifier{event: application.WebhookEvent{ID: "evt_2", Type: "invoice.paid"}}
	h := newTestHandler(verifier, &fakeReplays{}, router)

	w := postWebhook(h, `{}`)

	req.Equal(http.StatusOK, w.Code)
	req.Empty(router.routed)
}

func TestWebhook_Oversized_Body_Is_Rejected_Not_Truncated(t *testing.T) {
	req := require.New(t)
	router := &recordingRouter{}
	verifier := &fakeVerifier{event: application.WebhookEvent{
		ID:      "evt_1",
		Type:    application.EventChargeSucceeded,
		OrderID: "abc123",
	}}
	h := newTestHandler(verifier, &fakeReplays{}, router)

	// A body past the limit gets an explicit 413, never a truncated read
	// that would surface as a signature mismatch and make Stripe retry
	w := postWebhook(h, strings.Repeat("x", maxWebhookBody+1))

	req.Equal(http.StatusRequestEntityTooLarge, w.Code)
	req.Empty(router.routed)
}

func TestWebhook_Replay_Is_Acknowledged_But_Not_Rerouted(t *testing.T) {
	req := require.New(t)
	router := &recordingRouter{}
	verifier := &fakeVerifier{event: application.WebhookEvent{
		ID:      "evt_1",
		Type:    application.EventChargeSucceeded,
		OrderID: "abc123",
	}}
	h := newTestHandler(verifier, &fakeReplays{seen: true}, router)

	w := postWebhook(h, `{}`)

	req.Equal(http.StatusOK, w.Code)
	req.Empty(router.routed)
}

func TestWebhook_Replay_Check_Failure_Fails_Open(t *testing.T) {
	req := require.New(t)
	router := &recordingRouter{}
	verifier := &fakeVerifier{event: application.WebhookEvent{
		ID:      "evt_1",
		Type:    application.EventChargeSucceeded,
		OrderID: "abc123",
	}}
	h := newTestHandler(verifier, &fakeReplays{err: errors.New("redis down")}, router)

	w := postWebhook(h, `{}`)

	// Delivery wins over dedup when redis is unavailable
	req.Equal(http.StatusOK, w.Code)
	req.Len(router.routed, 1)
}

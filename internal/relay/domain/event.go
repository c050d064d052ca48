package domain

import "encoding/json"

type Kind string

const (
	KindSessionCreated   Kind = "payment_session_created"
	KindPaymentSuccess   Kind = "payment_success"
	KindSessionError     Kind = "payment_session_error"
	KindSessionExpired   Kind = "payment_session_expired"
	KindSessionAbandoned Kind = "payment_session_abandoned"
)

// Event is one payment-lifecycle occurrence bound for the clients watching
// an order. It is immutable once built and already carries its wire form:
// clients receive the JSON frame {"event": <kind>, "data": <payload>}.
type Event struct {
	Kind    Kind            `json:"event"`
	OrderID string          `json:"-"`
	Data    json.RawMessage `json:"data"`
}

type SessionCreatedData struct {
	OrderID           string `json:"orderId"`
	PaymentSessionURL string `json:"paymentSessionUrl"`
}

type PaymentSuccessData struct {
	OrderID         string `json:"orderId"`
	StripePaymentID string `json:"stripePaymentId"`
	ReceiptURL      string `json:"receiptUrl"`
}

type SessionErrorData struct {
	OrderID string `json:"orderId"`
	Error   string `json:"error"`
}

type SessionExpiredData struct {
	OrderID string `json:"orderId"`
}

func NewSessionCreated(orderID, sessionURL string) Event {
	data, _ := json.Marshal(SessionCreatedData{OrderID: orderID, PaymentSessionURL: sessionURL})
	return Event{Kind: KindSessionCreated, OrderID: orderID, Data: data}
}

func NewPaymentSuccess(orderID, stripePaymentID, receiptURL string) Event {
	data, _ := json.Marshal(PaymentSuccessData{OrderID: orderID, StripePaymentID: stripePaymentID, ReceiptURL: receiptURL})
	return Event{Kind: KindPaymentSuccess, OrderID: orderID, Data: data}
}

func NewSessionError(orderID, message string) Event {
	data, _ := json.Marshal(SessionErrorData{OrderID: orderID, Error: message})
	return Event{Kind: KindSessionError, OrderID: orderID, Data: data}
}

func NewSessionExpired(orderID string) Event {
	data, _ := json.Marshal(SessionExpiredData{OrderID: orderID})
	return Event{Kind: KindSessionExpired, OrderID: orderID, Data: data}
}

package domain

import "time"

type SessionStatus string

const (
	SessionCreated SessionStatus = "created"
	SessionPaid    SessionStatus = "paid"
	SessionExpired SessionStatus = "expired"
)

// PaymentSession is the record of one checkout session created at the
// payment provider for one order.
type PaymentSession struct {
	ID          string
	OrderID     string
	URL         string
	Status      SessionStatus
	AmountCents int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewPaymentSession(id, orderID, url string, amountCents int64) PaymentSession {
	now := time.Now().UTC()
	return PaymentSession{
		ID:          id,
		OrderID:     orderID,
		URL:         url,
		Status:      SessionCreated,
		AmountCents: amountCents,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

package domain

// Bus event payloads exchanged with order-management.

type PaymentSucceeded struct {
	OrderID         string `json:"orderId"`
	StripePaymentID string `json:"stripePaymentId"`
	ReceiptURL      string `json:"receiptUrl"`
}

type PaymentSessionExpired struct {
	OrderID string `json:"orderId"`
}

type PaymentSessionAbandoned struct {
	OrderID string `json:"orderId"`
}

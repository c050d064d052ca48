package domain

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrMissingOrderID = errors.New("order id is required")
	ErrNoItems        = errors.New("order has no items")
)

// Order is the order_created payload received from order-management. Prices
// are in euros; cent conversion happens at the provider boundary.
type Order struct {
	OrderID          string      `json:"orderId"`
	Items            []OrderItem `json:"items"`
	DeliveryFee      float64     `json:"deliveryFee"`
	UseLoyaltyPoints bool        `json:"useLoyaltyPoints"`
	CustomerID       string      `json:"customerId,omitempty"`
	RestaurantID     string      `json:"restaurantId,omitempty"`
	RestaurantName   string      `json:"restaurantName,omitempty"`
}

type OrderItem struct {
	DishID   string  `json:"dishId"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Notes    string  `json:"notes,omitempty"`
}

// Validate rejects malformed orders before they reach session creation.
func (o Order) Validate() error {
	if o.OrderID == "" {
		return ErrMissingOrderID
	}
	if len(o.Items) == 0 {
		return ErrNoItems
	}
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("item %q: quantity must be positive", item.DishID)
		}
		if item.Price <= 0 {
			return fmt.Errorf("item %q: price must be positive", item.DishID)
		}
	}
	return nil
}

// TotalCents is the order total including the delivery fee, in euro cents.
func (o Order) TotalCents() int64 {
	var total int64
	for _, item := range o.Items {
		total += int64(item.Quantity) * Cents(item.Price)
	}
	return total + Cents(o.DeliveryFee)
}

// Cents converts a euro amount to cents the way the provider expects.
func Cents(euros float64) int64 {
	return int64(math.Round(euros * 100))
}

package models

import (
	"strings"
	"time"
)

// FallbackIDPrefix marks orders synthesized locally when the commerce API is
// unavailable. Such orders must never be sent upstream for mutation.
const FallbackIDPrefix = "fallback-"

// Order statuses. Wire values arrive free-form and are capitalized on
// conversion; unknown values pass through unchanged.
const (
	StatusPending    = "Pending"
	StatusProcessing = "Processing"
	StatusShipped    = "Shipped"
	StatusDelivered  = "Delivered"
	StatusCancelled  = "Cancelled"
	StatusReturned   = "Returned"
)

const (
	PaymentPaid              = "Paid"
	PaymentPending           = "Pending"
	PaymentFailed            = "Failed"
	PaymentRefunded          = "Refunded"
	PaymentPartiallyRefunded = "Partially Refunded"
)

var OrderStatuses = []string{
	StatusPending, StatusProcessing, StatusShipped,
	StatusDelivered, StatusCancelled, StatusReturned,
}

var PaymentStatuses = []string{
	PaymentPaid, PaymentPending, PaymentFailed,
	PaymentRefunded, PaymentPartiallyRefunded,
}

type Customer struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}

type OrderItem struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	TotalPrice  float64 `json:"totalPrice"`
	Image       string  `json:"image,omitempty"`
	Category    string  `json:"category,omitempty"`
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// Order is the canonical in-memory shape. All money fields are finite and
// non-negative; the converter guarantees this for API-sourced records.
type Order struct {
	ID              string      `json:"id"`
	OrderNumber     string      `json:"orderNumber"`
	Customer        Customer    `json:"customer"`
	Items           []OrderItem `json:"items"`
	Subtotal        float64     `json:"subtotal"`
	Tax             float64     `json:"tax"`
	Shipping        float64     `json:"shipping"`
	Discount        float64     `json:"discount,omitempty"`
	Total           float64     `json:"total"`
	Status          string      `json:"status"`
	PaymentStatus   string      `json:"paymentStatus"`
	PaymentMethod   string      `json:"paymentMethod"`
	OrderDate       time.Time   `json:"orderDate"`
	ShippedDate     *time.Time  `json:"shippedDate,omitempty"`
	DeliveredDate   *time.Time  `json:"deliveredDate,omitempty"`
	ShippingAddress Address     `json:"shippingAddress"`
	BillingAddress  Address     `json:"billingAddress"`
	Notes           string      `json:"notes,omitempty"`
	TrackingNumber  string      `json:"trackingNumber,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       *time.Time  `json:"updatedAt,omitempty"`
}

// IsFallback reports whether the order was synthesized locally and lives only
// in the in-memory store.
func (o *Order) IsFallback() bool {
	return strings.HasPrefix(o.ID, FallbackIDPrefix)
}

// CustomerName returns the display name used for searching and sorting.
func (o *Order) CustomerName() string {
	return strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName)
}

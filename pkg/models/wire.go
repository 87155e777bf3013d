package models

import "encoding/json"

// Wire types mirror the raw JSON shapes returned by the commerce API. Numeric
// fields are declared as any because the API mixes numbers, numeric strings
// and nulls; several fields also appear under alternate names depending on
// the endpoint. The converter owns the mapping to the canonical Order.

type WireOrderList struct {
	Data []json.RawMessage `json:"data"`
}

type WireOrder struct {
	ID          string       `json:"id"`
	OrderNumber string       `json:"orderNumber"`
	Customer    WireCustomer `json:"customer"`
	Items       []WireItem   `json:"items"`

	Subtotal      any `json:"subtotal"`
	Tax           any `json:"tax"`
	TotalTax      any `json:"totalTax"`
	Shipping      any `json:"shipping"`
	ShippingCost  any `json:"shippingCost"`
	Discount      any `json:"discount"`
	TotalDiscount any `json:"totalDiscount"`
	Total         any `json:"total"`
	TotalAmount   any `json:"totalAmount"`

	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	PaymentMethod string `json:"paymentMethod"`

	OrderDate     string `json:"orderDate"`
	ShippedDate   string `json:"shippedDate"`
	DeliveredDate string `json:"deliveredDate"`

	ShippingAddress WireAddress `json:"shippingAddress"`
	BillingAddress  WireAddress `json:"billingAddress"`

	Notes          string `json:"notes"`
	TrackingNumber string `json:"trackingNumber"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

type WireCustomer struct {
	ID        any    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Avatar    string `json:"avatar"`
}

type WireItem struct {
	ID          any    `json:"id"`
	ProductID   any    `json:"productId"`
	ProductName string `json:"productName"`
	SKU         string `json:"sku"`
	Quantity    any    `json:"quantity"`
	UnitPrice   any    `json:"unitPrice"`
	TotalPrice  any    `json:"totalPrice"`
	Image       string `json:"image"`
	Category    string `json:"category"`
}

// WireAddress is flatter than the canonical Address: street and zip arrive
// under either name depending on the endpoint.
type WireAddress struct {
	AddressLine1 string `json:"addressLine1"`
	Street       string `json:"street"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	ZipCode      string `json:"zipCode"`
	Country      string `json:"country"`
}

package models

// OrderDraft is the payload accepted when creating an order through the
// back-office API. Validation rules live on the tags plus a struct-level
// check registered in internal/validation.
type OrderDraft struct {
	Customer        Customer    `json:"customer" validate:"required"`
	Items           []DraftItem `json:"items" validate:"required,min=1,dive"`
	Subtotal        float64     `json:"subtotal" validate:"gte=0"`
	Discount        float64     `json:"discount" validate:"gte=0"`
	PaymentMethod   string      `json:"paymentMethod" validate:"required"`
	ShippingAddress Address     `json:"shippingAddress"`
	BillingAddress  Address     `json:"billingAddress"`
	Notes           string      `json:"notes,omitempty"`
}

type DraftItem struct {
	ProductID   string  `json:"productId" validate:"required"`
	ProductName string  `json:"productName" validate:"required"`
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity" validate:"gte=1"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
	TotalPrice  float64 `json:"totalPrice" validate:"gte=0"`
	Image       string  `json:"image,omitempty"`
	Category    string  `json:"category,omitempty"`
}

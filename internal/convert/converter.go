package convert

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/orderdesk/backoffice/pkg/models"
)

// Order maps a single wire-format order to the canonical shape. It never
// fails: unparsable numeric fields become 0 and missing strings default to
// empty. Status values are capitalized but not validated against the known
// set, matching the upstream API contract.
func Order(w models.WireOrder) models.Order {
	order := models.Order{
		ID:              w.ID,
		OrderNumber:     w.OrderNumber,
		Customer:        customer(w.Customer),
		Items:           items(w.Items),
		Subtotal:        number(w.Subtotal),
		Tax:             firstNumber(w.Tax, w.TotalTax),
		Shipping:        firstNumber(w.Shipping, w.ShippingCost),
		Discount:        firstNumber(w.Discount, w.TotalDiscount),
		Total:           firstNumber(w.Total, w.TotalAmount),
		Status:          capitalize(w.Status),
		PaymentStatus:   capitalize(w.PaymentStatus),
		PaymentMethod:   w.PaymentMethod,
		OrderDate:       parseTime(w.OrderDate),
		ShippedDate:     parseTimePtr(w.ShippedDate),
		DeliveredDate:   parseTimePtr(w.DeliveredDate),
		ShippingAddress: address(w.ShippingAddress),
		BillingAddress:  address(w.BillingAddress),
		Notes:           w.Notes,
		TrackingNumber:  w.TrackingNumber,
		CreatedAt:       parseTime(w.CreatedAt),
		UpdatedAt:       parseTimePtr(w.UpdatedAt),
	}

	if order.CreatedAt.IsZero() {
		order.CreatedAt = order.OrderDate
	}

	return order
}

// Orders converts a batch of raw JSON order elements. Conversion is resilient
// per element: a record that cannot be decoded is replaced by a placeholder
// carrying the error context in Notes, rather than aborting the batch.
func Orders(raw []json.RawMessage, logger *logrus.Logger) []models.Order {
	orders := make([]models.Order, 0, len(raw))

	for i, element := range raw {
		var wire models.WireOrder
		if err := json.Unmarshal(element, &wire); err != nil {
			if logger != nil {
				logger.WithError(err).WithField("index", i).Warn("Failed to decode order, substituting placeholder")
			}
			orders = append(orders, placeholder(i, err))
			continue
		}
		orders = append(orders, Order(wire))
	}

	return orders
}

func placeholder(index int, err error) models.Order {
	now := time.Now()
	return models.Order{
		ID:            fmt.Sprintf("unparsed-%d", index),
		OrderNumber:   "N/A",
		Items:         []models.OrderItem{},
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
		Notes:         fmt.Sprintf("order could not be decoded: %v", err),
		OrderDate:     now,
		CreatedAt:     now,
	}
}

func customer(w models.WireCustomer) models.Customer {
	return models.Customer{
		ID:        text(w.ID),
		FirstName: w.FirstName,
		LastName:  w.LastName,
		Email:     w.Email,
		Phone:     w.Phone,
		Avatar:    w.Avatar,
	}
}

func items(wire []models.WireItem) []models.OrderItem {
	converted := make([]models.OrderItem, 0, len(wire))
	for _, w := range wire {
		converted = append(converted, models.OrderItem{
			ID:          text(w.ID),
			ProductID:   text(w.ProductID),
			ProductName: w.ProductName,
			SKU:         w.SKU,
			Quantity:    int(number(w.Quantity)),
			UnitPrice:   number(w.UnitPrice),
			TotalPrice:  number(w.TotalPrice),
			Image:       w.Image,
			Category:    w.Category,
		})
	}
	return converted
}

func address(w models.WireAddress) models.Address {
	street := w.AddressLine1
	if street == "" {
		street = w.Street
	}
	zip := w.PostalCode
	if zip == "" {
		zip = w.ZipCode
	}
	return models.Address{
		Street:  street,
		City:    w.City,
		State:   w.State,
		ZipCode: zip,
		Country: w.Country,
	}
}

// number coerces a mixed-type wire value to a finite, non-negative float64.
// Numbers pass through, numeric strings are parsed, everything else is 0.
func number(v any) float64 {
	var n float64

	switch value := v.(type) {
	case float64:
		n = value
	case float32:
		n = float64(value)
	case int:
		n = float64(value)
	case int64:
		n = float64(value)
	case json.Number:
		n, _ = value.Float64()
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}

	if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0
	}
	return n
}

// firstNumber coerces the first non-nil candidate. Alternate wire field names
// (tax/totalTax, shipping/shippingCost, ...) resolve through this.
func firstNumber(candidates ...any) float64 {
	for _, c := range candidates {
		if c != nil {
			return number(c)
		}
	}
	return 0
}

// text renders a wire identifier that may arrive as a string or a number.
func text(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		if value == math.Trunc(value) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case json.Number:
		return value.String()
	default:
		return ""
	}
}

// capitalize uppercases the first rune only, so "pending" becomes "Pending"
// while already-canonical values are untouched.
func capitalize(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseTimePtr(s string) *time.Time {
	t := parseTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

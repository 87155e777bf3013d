package filter

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/orderdesk/backoffice/pkg/models"
)

// All is the sentinel filter value that disables status matching.
const All = "all"

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Criteria holds the transient view state of an order list: free-text search,
// status and payment filters, inclusive date and amount ranges, and the sort
// key. Zero values mean unconstrained.
type Criteria struct {
	SearchTerm    string     `json:"searchTerm"`
	Status        string     `json:"statusFilter"`
	PaymentStatus string     `json:"paymentStatusFilter"`
	DateStart     *time.Time `json:"dateStart,omitempty"`
	DateEnd       *time.Time `json:"dateEnd,omitempty"`
	AmountMin     *float64   `json:"amountMin,omitempty"`
	AmountMax     *float64   `json:"amountMax,omitempty"`
	SortBy        string     `json:"sortBy"`
	SortOrder     string     `json:"sortOrder"`
}

// Default returns the criteria the dashboard opens with: everything visible,
// newest orders first.
func Default() Criteria {
	return Criteria{
		Status:        All,
		PaymentStatus: All,
		SortBy:        "orderDate",
		SortOrder:     SortDesc,
	}
}

// Apply derives the ordered view for the given criteria. It is pure: the
// input slice is never mutated and a fresh slice is returned. All predicates
// are ANDed; the sort is stable so equal keys keep their store order.
func Apply(orders []models.Order, c Criteria) []models.Order {
	c = normalize(c)

	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if matches(&o, c) {
			out = append(out, o)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(&out[i], &out[j], c)
	})

	return out
}

func normalize(c Criteria) Criteria {
	if c.Status == "" {
		c.Status = All
	}
	if c.PaymentStatus == "" {
		c.PaymentStatus = All
	}
	if c.SortBy == "" {
		c.SortBy = "orderDate"
	}
	if c.SortOrder != SortAsc {
		c.SortOrder = SortDesc
	}
	return c
}

func matches(o *models.Order, c Criteria) bool {
	if term := strings.ToLower(strings.TrimSpace(c.SearchTerm)); term != "" {
		if !strings.Contains(haystack(o), term) {
			return false
		}
	}

	if c.Status != All && o.Status != c.Status {
		return false
	}
	if c.PaymentStatus != All && o.PaymentStatus != c.PaymentStatus {
		return false
	}

	if c.DateStart != nil && o.OrderDate.Before(*c.DateStart) {
		return false
	}
	if c.DateEnd != nil && o.OrderDate.After(endOfDay(*c.DateEnd)) {
		return false
	}

	if c.AmountMin != nil && o.Total < *c.AmountMin {
		return false
	}
	if c.AmountMax != nil && o.Total > *c.AmountMax {
		return false
	}

	return true
}

// haystack synthesizes the searchable text of an order. A single substring
// match anywhere in it qualifies, so search is OR-like across the fields.
func haystack(o *models.Order) string {
	parts := []string{
		o.OrderNumber,
		o.Customer.FirstName,
		o.Customer.LastName,
		o.Customer.Email,
		o.Status,
		o.PaymentStatus,
		strconv.FormatFloat(o.Total, 'f', -1, 64),
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// endOfDay pushes an end bound to 23:59:59.999 so an order placed any time on
// the end day is included.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

func less(a, b *models.Order, c Criteria) bool {
	result := compare(a, b, c.SortBy)
	if c.SortOrder == SortDesc {
		return result > 0
	}
	return result < 0
}

func compare(a, b *models.Order, key string) int {
	switch key {
	case "orderNumber":
		return compareStrings(a.OrderNumber, b.OrderNumber)
	case "customerName":
		return compareStrings(a.CustomerName(), b.CustomerName())
	case "status":
		return compareStrings(a.Status, b.Status)
	case "paymentStatus":
		return compareStrings(a.PaymentStatus, b.PaymentStatus)
	case "total":
		return compareFloats(a.Total, b.Total)
	case "subtotal":
		return compareFloats(a.Subtotal, b.Subtotal)
	case "createdAt":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	default:
		return compareTimes(a.OrderDate, b.OrderDate)
	}
}

func compareStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

package filter

import "github.com/orderdesk/backoffice/pkg/models"

// Stats summarizes the full, unfiltered order list for the dashboard cards.
// Statistics are deliberately independent of any active Criteria.
type Stats struct {
	TotalOrders     int            `json:"totalOrders"`
	TotalRevenue    float64        `json:"totalRevenue"`
	TotalSubtotal   float64        `json:"totalSubtotal"`
	ByStatus        map[string]int `json:"byStatus"`
	ByPaymentStatus map[string]int `json:"byPaymentStatus"`
}

// Summarize computes the dashboard summary in a single O(n) pass. It is
// recomputed on demand rather than cached.
func Summarize(orders []models.Order) Stats {
	stats := Stats{
		TotalOrders:     len(orders),
		ByStatus:        make(map[string]int),
		ByPaymentStatus: make(map[string]int),
	}

	for _, o := range orders {
		stats.TotalRevenue += o.Total
		stats.TotalSubtotal += o.Subtotal
		stats.ByStatus[o.Status]++
		stats.ByPaymentStatus[o.PaymentStatus]++
	}

	return stats
}

// TotalRevenue sums order totals across the whole list.
func TotalRevenue(orders []models.Order) float64 {
	var sum float64
	for _, o := range orders {
		sum += o.Total
	}
	return sum
}

// CountByStatus counts orders per status across the whole list.
func CountByStatus(orders []models.Order, status string) int {
	count := 0
	for _, o := range orders {
		if o.Status == status {
			count++
		}
	}
	return count
}

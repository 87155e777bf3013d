package validation

import (
	"fmt"
	"math"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/orderdesk/backoffice/pkg/models"
)

// New returns a validator with the order-draft struct rule registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterStructValidation(orderDraftStructValidation, models.OrderDraft{})
	return v
}

// orderDraftStructValidation checks that the draft's subtotal matches the sum
// of its item totals and that each item total matches quantity * unit price.
// Money is compared in whole cents to dodge float representation noise.
func orderDraftStructValidation(sl validatorv10.StructLevel) {
	draft := sl.Current().Interface().(models.OrderDraft)

	var sum float64
	for i, item := range draft.Items {
		sum += item.TotalPrice

		lineCents := cents(float64(item.Quantity) * item.UnitPrice)
		if lineCents != cents(item.TotalPrice) {
			sl.ReportError(item.TotalPrice, fmt.Sprintf("items[%d].totalPrice", i), "TotalPrice",
				"line_total_match", fmt.Sprintf("%.2f != %d * %.2f", item.TotalPrice, item.Quantity, item.UnitPrice))
		}
	}

	if cents(sum) != cents(draft.Subtotal) {
		sl.ReportError(draft.Subtotal, "subtotal", "Subtotal", "subtotal_match_items",
			fmt.Sprintf("item totals sum %.2f != subtotal %.2f", sum, draft.Subtotal))
	}

	if cents(draft.Discount) > cents(draft.Subtotal) {
		sl.ReportError(draft.Discount, "discount", "Discount", "discount_exceeds_subtotal", "")
	}
}

func cents(amount float64) int {
	return int(math.Round(amount * 100))
}

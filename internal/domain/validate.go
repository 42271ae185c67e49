package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/orderhub/orderhub/pkg/errors"
)

// perItemTolerance is the rounding slack allowed per line item when comparing totals
var perItemTolerance = decimal.NewFromFloat(0.01)

// Validate checks the hard constraints an order must satisfy to be stored
func (o *Order) Validate() error {
	if !o.Platform.IsValid() {
		return &errors.ErrValidation{Field: "platform", Message: fmt.Sprintf("unsupported platform %q", o.Platform)}
	}
	if o.ExternalOrderID == "" {
		return &errors.ErrValidation{Field: "external_order_id", Message: "is required"}
	}
	if !o.Status.IsValid() {
		return &errors.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status %q", o.Status)}
	}
	if o.OrderDate.IsZero() {
		return &errors.ErrValidation{Field: "order_date", Message: "is required"}
	}
	for i, item := range o.Items {
		if item.Quantity <= 0 {
			return &errors.ErrValidation{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be greater than 0"}
		}
		if item.UnitPrice.IsNegative() {
			return &errors.ErrValidation{Field: fmt.Sprintf("items[%d].unit_price", i), Message: "must not be negative"}
		}
	}
	return nil
}

// CheckConsistency flags the order when line totals or the order total
// disagree with the line items. The order is still stored.
func (o *Order) CheckConsistency() {
	o.Inconsistent = false
	o.InconsistencyReason = nil

	sum := decimal.Zero
	for i, item := range o.Items {
		expected := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if !item.LineTotal.Sub(expected).Abs().LessThanOrEqual(perItemTolerance) {
			o.flag(fmt.Sprintf("line %d total %s does not equal %d x %s", i, item.LineTotal.StringFixed(2), item.Quantity, item.UnitPrice.StringFixed(2)))
			return
		}
		sum = sum.Add(item.LineTotal)
	}
	if len(o.Items) == 0 {
		return
	}

	n := int64(len(o.Items))
	tolerance := perItemTolerance.Mul(decimal.NewFromInt(n))
	expected := sum.Add(o.Tax).Add(o.ShippingCost)
	if o.Total.Sub(expected).Abs().GreaterThan(tolerance) {
		o.flag(fmt.Sprintf("total %s does not equal line totals %s plus tax %s and shipping %s",
			o.Total.StringFixed(2), sum.StringFixed(2), o.Tax.StringFixed(2), o.ShippingCost.StringFixed(2)))
	}
}

func (o *Order) flag(reason string) {
	o.Inconsistent = true
	o.InconsistencyReason = &reason
}

package adapter

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/orderhub/orderhub/internal/domain"
)

// parseMoney parses a decimal amount; blank means zero
func parseMoney(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid amount %q", field, s)
	}
	return d, nil
}

// optionalString maps blank platform text to explicit absence
func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func newItem(sku, name, variant string, quantity int, unitPrice decimal.Decimal) domain.OrderItem {
	return domain.OrderItem{
		SKU:          sku,
		Name:         name,
		VariantTitle: optionalString(variant),
		Quantity:     quantity,
		UnitPrice:    unitPrice,
		LineTotal:    unitPrice.Mul(decimalInt(quantity)),
	}
}

func sumLines(items []domain.OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal)
	}
	return sum
}

func addressOrNil(addr domain.Address) *domain.Address {
	if addr == (domain.Address{}) {
		return nil
	}
	return &addr
}

func customerName(first, last, fallback string) string {
	name := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	if name == "" {
		name = strings.TrimSpace(fallback)
	}
	if name == "" {
		name = "Guest"
	}
	return name
}

func decimalInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

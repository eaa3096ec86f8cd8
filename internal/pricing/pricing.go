package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Method identifies a shipping method supported by the storefront.
type Method string

const (
	MethodStandard Method = "standard"
	MethodExpress  Method = "express"
)

// DefaultMethod is the method a fresh or cleared cart starts with.
const DefaultMethod = MethodStandard

// ParseMethod validates a raw shipping method value.
func ParseMethod(raw string) (Method, bool) {
	switch Method(strings.ToLower(strings.TrimSpace(raw))) {
	case MethodStandard:
		return MethodStandard, true
	case MethodExpress:
		return MethodExpress, true
	default:
		return "", false
	}
}

// Item is the slice of a cart line the calculator needs.
type Item struct {
	Qty           int
	UnitPrice     decimal.Decimal
	OriginalPrice *decimal.Decimal
}

// Rates configures shipping and tax behaviour. Values come from config, not
// literals, because the storefront variants disagreed on the exact numbers.
type Rates struct {
	StandardRate          decimal.Decimal
	ExpressRate           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	TaxRateBPS            int64
}

// Summary is the derived financial breakdown of a cart. It is recomputed on
// every read and never persisted.
type Summary struct {
	ItemCount        int             `json:"itemCount"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"tax"`
	Shipping         decimal.Decimal `json:"shipping"`
	ShippingDiscount decimal.Decimal `json:"shippingDiscount"`
	Savings          decimal.Decimal `json:"savings"`
	Total            decimal.Decimal `json:"total"`
}

// Compute derives the order summary for the given lines and shipping method.
// It has no side effects and is deterministic for a given input.
//
// Each derived field is rounded to two decimal places only once, after all
// per-line arithmetic, so rounding error never compounds across lines.
func Compute(items []Item, method Method, rates Rates) Summary {
	var (
		count    int
		subtotal decimal.Decimal
		savings  decimal.Decimal
	)
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		qty := decimal.NewFromInt(int64(it.Qty))
		count += it.Qty
		subtotal = subtotal.Add(it.UnitPrice.Mul(qty))
		if it.OriginalPrice != nil {
			perUnit := it.OriginalPrice.Sub(it.UnitPrice)
			if perUnit.IsPositive() {
				savings = savings.Add(perUnit.Mul(qty))
			}
		}
	}

	shipping, shippingDiscount := shippingFor(subtotal, method, rates)
	tax := subtotal.Mul(decimal.NewFromInt(rates.TaxRateBPS)).Div(decimal.NewFromInt(10000))
	total := subtotal.Add(shipping).Add(tax)

	return Summary{
		ItemCount:        count,
		Subtotal:         subtotal.Round(2),
		Tax:              tax.Round(2),
		Shipping:         shipping.Round(2),
		ShippingDiscount: shippingDiscount.Round(2),
		Savings:          savings.Round(2),
		Total:            total.Round(2),
	}
}

// shippingFor returns the shipping charge plus the waived amount, if any.
// Express is never waived regardless of subtotal.
func shippingFor(subtotal decimal.Decimal, method Method, rates Rates) (decimal.Decimal, decimal.Decimal) {
	switch method {
	case MethodExpress:
		return rates.ExpressRate, decimal.Zero
	default:
		if subtotal.GreaterThanOrEqual(rates.FreeShippingThreshold) {
			return decimal.Zero, rates.StandardRate
		}
		return rates.StandardRate, decimal.Zero
	}
}

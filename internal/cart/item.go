package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity is returned when an add uses a quantity below one.
var ErrInvalidQuantity = errors.New("quantity must be a positive integer")

// ErrInvalidPrice is returned when an add carries a negative unit price.
var ErrInvalidPrice = errors.New("price must be non-negative")

// ErrInvalidShippingMethod is returned for values outside the recognized set.
var ErrInvalidShippingMethod = errors.New("unrecognized shipping method")

// ErrInvalidInput covers malformed add-requests that fit no narrower error.
var ErrInvalidInput = errors.New("invalid input")

// Options are the line-specific selections (shade, size) that participate in
// line identity. A nil map and an empty map denote the same identity.
type Options map[string]string

func (o Options) clone() Options {
	if len(o) == 0 {
		return nil
	}
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Snapshot is the catalog display data captured at add-time. Later catalog
// changes never retroactively alter lines built from an earlier snapshot.
type Snapshot struct {
	ProductID     string
	Name          string
	Brand         string
	Image         string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal
}

func (s Snapshot) validate() error {
	if s.ProductID == "" {
		return fmt.Errorf("product id is required: %w", ErrInvalidInput)
	}
	if s.Price.IsNegative() {
		return fmt.Errorf("unit price %s: %w", s.Price, ErrInvalidPrice)
	}
	return nil
}

// LineItem is one row in the cart, uniquely identified by product + options.
type LineItem struct {
	ID            string           `json:"id"`
	ProductID     string           `json:"productId"`
	Name          string           `json:"name"`
	Brand         string           `json:"brand,omitempty"`
	Image         string           `json:"image,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	Quantity      int              `json:"quantity"`
	Options       Options          `json:"options,omitempty"`
}

func (li LineItem) clone() LineItem {
	out := li
	out.Options = li.Options.clone()
	if li.OriginalPrice != nil {
		p := *li.OriginalPrice
		out.OriginalPrice = &p
	}
	return out
}

func (li LineItem) valid() bool {
	return li.ID != "" && li.ProductID != "" && li.Quantity >= 1 && !li.Price.IsNegative()
}

package cart

import "maps"

// EqualOptions reports whether two options maps denote the same line
// identity. Comparison is order-independent, nil and empty are equivalent,
// and a missing key is not equal to an explicit empty-string value.
func EqualOptions(a, b Options) bool {
	if len(a) != len(b) {
		return false
	}
	return maps.Equal(a, b)
}

// sameLine reports whether an add-request for (productID, opts) refers to the
// existing line li. This is the only equality rule the ledger's merge path
// consults.
func sameLine(li LineItem, productID string, opts Options) bool {
	return li.ProductID == productID && EqualOptions(li.Options, opts)
}

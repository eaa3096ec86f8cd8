package catalog

import "github.com/shopspring/decimal"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// SeedProducts is the built-in storefront catalog used when no external
// source is configured. Prices are in the store currency.
func SeedProducts() []Product {
	return []Product{
		{
			ID:    "velvet-matte-lipstick",
			Name:  "Velvet Matte Lipstick",
			Brand: "Aurelle",
			Image: "/images/velvet-matte-lipstick.jpg",
			Price: dec("18.50"),
			Options: map[string][]string{
				"shade": {"rose", "coral", "brick"},
			},
		},
		{
			ID:            "hydra-glow-serum",
			Name:          "Hydra Glow Serum",
			Brand:         "Aurelle",
			Image:         "/images/hydra-glow-serum.jpg",
			Price:         dec("42.00"),
			OriginalPrice: decPtr("56.00"),
			Options: map[string][]string{
				"size": {"30ml", "50ml"},
			},
		},
		{
			ID:    "silk-finish-foundation",
			Name:  "Silk Finish Foundation",
			Brand: "Maison Lune",
			Image: "/images/silk-finish-foundation.jpg",
			Price: dec("34.00"),
			Options: map[string][]string{
				"shade": {"ivory", "sand", "honey", "espresso"},
			},
		},
		{
			ID:            "botanical-night-cream",
			Name:          "Botanical Night Cream",
			Brand:         "Maison Lune",
			Image:         "/images/botanical-night-cream.jpg",
			Price:         dec("29.90"),
			OriginalPrice: decPtr("38.00"),
		},
		{
			ID:    "lash-lift-mascara",
			Name:  "Lash Lift Mascara",
			Brand: "Aurelle",
			Image: "/images/lash-lift-mascara.jpg",
			Price: dec("15.00"),
		},
	}
}

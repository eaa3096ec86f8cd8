package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is the display snapshot the cart captures at add-time. The cart
// never re-fetches it, so a later catalog price change does not alter
// existing lines.
type Product struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Brand         string              `json:"brand,omitempty"`
	Image         string              `json:"image,omitempty"`
	Price         decimal.Decimal     `json:"price"`
	OriginalPrice *decimal.Decimal    `json:"originalPrice,omitempty"`
	Options       map[string][]string `json:"options,omitempty"`
}

// Source provides product data. The engine needs lookup by id plus a listing
// for the storefront; search, sort and merchandising live elsewhere.
type Source interface {
	Product(ctx context.Context, id string) (Product, bool, error)
	List(ctx context.Context) ([]Product, error)
}

// Service resolves product snapshots through a read-through cache.
type Service struct {
	source Source
	cache  *Cache
}

// NewService wires a catalog source with an optional cache.
func NewService(source Source, cache *Cache) (*Service, error) {
	if source == nil {
		return nil, errors.New("catalog: source is required")
	}
	return &Service{source: source, cache: cache}, nil
}

// Snapshot returns the current display snapshot for a product id.
func (s *Service) Snapshot(ctx context.Context, id string) (Product, error) {
	if id == "" {
		return Product{}, ErrNotFound
	}
	key := "catalog:product:" + id
	var cached Product
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	product, ok, err := s.source.Product(ctx, id)
	if err != nil {
		return Product{}, fmt.Errorf("lookup product %q: %w", id, err)
	}
	if !ok {
		return Product{}, fmt.Errorf("product %q: %w", id, ErrNotFound)
	}
	_ = s.cache.SetJSON(ctx, key, product)
	return product, nil
}

// List returns the storefront catalog in display order.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.source.List(ctx)
}

// StaticSource serves a fixed product set in insertion order.
type StaticSource struct {
	byID  map[string]Product
	order []string
}

// NewStaticSource indexes the given products.
func NewStaticSource(products []Product) *StaticSource {
	s := &StaticSource{byID: make(map[string]Product, len(products))}
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		if _, dup := s.byID[p.ID]; dup {
			continue
		}
		s.byID[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	return s
}

func (s *StaticSource) Product(_ context.Context, id string) (Product, bool, error) {
	p, ok := s.byID[id]
	return p, ok, nil
}

func (s *StaticSource) List(_ context.Context) ([]Product, error) {
	out := make([]Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

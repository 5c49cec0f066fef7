package catalog

import (
	"context"
	"sync"

	"github.com/mobix/storefront/internal/catalog/domain"
	"github.com/mobix/storefront/pkg/logger"
)

// Source is the external product collaborator.
type Source interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// Service holds the catalog snapshot. The catalog is fetched once per
// session; a failed fetch resolves to an empty catalog and is logged,
// never propagated.
type Service struct {
	source Source

	mu       sync.Mutex
	loading  bool
	loaded   bool
	products []domain.Product
}

// NewService creates a catalog service over a product source
func NewService(source Source) *Service {
	return &Service{source: source}
}

// Load fetches the catalog snapshot. Only the first call hits the
// source; later calls are no-ops.
func (s *Service) Load(ctx context.Context) {
	s.mu.Lock()
	if s.loaded || s.loading {
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.mu.Unlock()

	products, err := s.source.ListProducts(ctx)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("catalog fetch failed, serving empty catalog")
		products = nil
	}

	s.mu.Lock()
	s.products = products
	s.loading = false
	s.loaded = true
	s.mu.Unlock()

	logger.Info(ctx).Int("products", len(products)).Msg("catalog loaded")
}

// Loading reports whether the initial fetch is still in flight.
func (s *Service) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Products returns the catalog snapshot.
func (s *Service) Products() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out
}

// Product resolves a single product, preferring the snapshot and falling
// back to the source for IDs not yet cached. Unknown IDs return
// (nil, nil).
func (s *Service) Product(ctx context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	for i := range s.products {
		if s.products[i].ID == id {
			p := s.products[i]
			s.mu.Unlock()
			return &p, nil
		}
	}
	s.mu.Unlock()

	product, err := s.source.GetProduct(ctx, id)
	if err != nil {
		logger.Error(ctx).Err(err).Str("product_id", id).Msg("product detail fetch failed")
		return nil, nil
	}
	return product, nil
}

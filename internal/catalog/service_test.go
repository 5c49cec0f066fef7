package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobix/storefront/internal/catalog/domain"
)

type fakeSource struct {
	products  []domain.Product
	listErr   error
	listCalls int
	detail    map[string]domain.Product
}

func (f *fakeSource) ListProducts(context.Context) ([]domain.Product, error) {
	f.listCalls++
	return f.products, f.listErr
}

func (f *fakeSource) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	if p, ok := f.detail[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func TestLoadFetchesOnce(t *testing.T) {
	source := &fakeSource{products: testCatalog}
	s := NewService(source)

	s.Load(context.Background())
	s.Load(context.Background())
	s.Load(context.Background())

	assert.Equal(t, 1, source.listCalls)
	assert.Len(t, s.Products(), len(testCatalog))
	assert.False(t, s.Loading())
}

func TestLoadFailureServesEmptyCatalog(t *testing.T) {
	source := &fakeSource{listErr: errors.New("upstream down")}
	s := NewService(source)

	s.Load(context.Background())

	assert.Empty(t, s.Products())
	assert.False(t, s.Loading())
}

func TestProductPrefersSnapshot(t *testing.T) {
	source := &fakeSource{products: testCatalog}
	s := NewService(source)
	s.Load(context.Background())

	p, err := s.Product(context.Background(), "2")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "iPad Pro", p.Name)
}

func TestProductFallsBackToSource(t *testing.T) {
	source := &fakeSource{
		products: testCatalog,
		detail: map[string]domain.Product{
			"99": {ID: "99", Name: "Pixel Fold"},
		},
	}
	s := NewService(source)
	s.Load(context.Background())

	p, err := s.Product(context.Background(), "99")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Pixel Fold", p.Name)

	p, err = s.Product(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, p)
}

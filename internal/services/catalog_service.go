package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"posbackend/internal/domain"
)

type ProductStore interface {
	Get(ctx context.Context, code string) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}

type CatalogService struct {
	Prods ProductStore
}

func NewCatalogService(prods ProductStore) *CatalogService {
	return &CatalogService{Prods: prods}
}

// FindProduct looks up the item whose code equals code exactly.
// A miss is found=false with a nil error; any error means the lookup failed.
func (s *CatalogService) FindProduct(ctx context.Context, code string) (domain.Product, bool, error) {
	p, err := s.Prods.Get(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, fmt.Errorf("find product %q: %w", code, err)
	}
	return p, true, nil
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.Prods.List(ctx)
}

package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"posbackend/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

// Get returns sql.ErrNoRows when no item has exactly this code.
func (r *ProductRepo) Get(ctx context.Context, code string) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`
  SELECT product_code, product_name, unit_price
  FROM items
  WHERE product_code = ?
`), code)
	return p, err
}

func (r *ProductRepo) List(ctx context.Context) ([]domain.Product, error) {
	out := []domain.Product{}
	err := r.db.SelectContext(ctx, &out, `
  SELECT product_code, product_name, unit_price
  FROM items
  ORDER BY product_code
`)
	return out, err
}

package catalog

import (
	"context"
	"database/sql"

	"github.com/shopkit-labs/shopkit/internal/domain"
)

// Repository reads the product catalog. The cart/checkout core never writes
// products; price changes flow in from catalog management elsewhere and are
// deliberately not resynced into existing cart lines.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sku, name, COALESCE(description, ''), price, stock_quantity, step, COALESCE(image_url, '')
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.StockQuantity, &p.Step, &p.ImageURL); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *Repository) GetByID(ctx context.Context, productID string) (*domain.Product, error) {
	p := &domain.Product{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, sku, name, COALESCE(description, ''), price, stock_quantity, step, COALESCE(image_url, '')
		FROM products
		WHERE id = $1
	`, productID).Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Price, &p.StockQuantity, &p.Step, &p.ImageURL)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

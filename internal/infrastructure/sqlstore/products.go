package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
)

type ProductStore struct {
	db *DB
}

func NewProductStore(db *DB) *ProductStore { return &ProductStore{db: db} }

func (s *ProductStore) Get(ctx context.Context, id string) (*domain.Product, error) {
	const q = `SELECT id, name, price_minor, currency, stock, active, category, jurisdiction, updated_at
		FROM products WHERE id = $1`

	var (
		p       domain.Product
		price   int64
		updated int64
	)
	err := s.db.sql.QueryRowContext(ctx, q, id).Scan(
		&p.ID, &p.Name, &price, &p.Currency, &p.Stock, &p.Active, &p.Category, &p.Jurisdiction, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get product %s: %w", id, err)
	}
	p.Price = money.Minor(price)
	p.UpdatedAt = fromUnixNano(updated)
	return &p, nil
}

// Save upserts a catalog row. Catalog management lives elsewhere; this seeds and syncs.
func (s *ProductStore) Save(ctx context.Context, p *domain.Product) error {
	const q = `INSERT INTO products (id, name, price_minor, currency, stock, active, category, jurisdiction, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			price_minor = excluded.price_minor,
			currency = excluded.currency,
			stock = excluded.stock,
			active = excluded.active,
			category = excluded.category,
			jurisdiction = excluded.jurisdiction,
			updated_at = excluded.updated_at`

	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.sql.ExecContext(ctx, q,
		p.ID, p.Name, int64(p.Price), p.Currency, p.Stock, p.Active, p.Category, p.Jurisdiction, unixNano(updated),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: save product %s: %w", p.ID, err)
	}
	return nil
}

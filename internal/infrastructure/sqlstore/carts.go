package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
)

// CartStore keeps account carts. Guest carts expire with their session and live in Redis.
type CartStore struct {
	db *DB
}

func NewCartStore(db *DB) *CartStore { return &CartStore{db: db} }

func (s *CartStore) Get(ctx context.Context, owner domcart.OwnerRef) (*domcart.Cart, error) {
	const q = `SELECT lines, updated_at FROM carts WHERE owner_key = $1`

	var (
		lines   string
		updated int64
	)
	err := s.db.sql.QueryRowContext(ctx, q, owner.Key()).Scan(&lines, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domcart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get cart %s: %w", owner.Key(), err)
	}

	c := &domcart.Cart{Owner: owner, UpdatedAt: fromUnixNano(updated)}
	if err := json.Unmarshal([]byte(lines), &c.Lines); err != nil {
		return nil, fmt.Errorf("sqlstore: decode cart %s: %w", owner.Key(), err)
	}
	return c, nil
}

func (s *CartStore) Save(ctx context.Context, c *domcart.Cart) error {
	if c == nil {
		return nil
	}
	const q = `INSERT INTO carts (owner_key, owner_kind, owner_id, lines, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_key) DO UPDATE SET lines = excluded.lines, updated_at = excluded.updated_at`

	lines := c.Lines
	if lines == nil {
		lines = []domcart.Line{}
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("sqlstore: encode cart %s: %w", c.Owner.Key(), err)
	}
	updated := c.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = s.db.sql.ExecContext(ctx, q, c.Owner.Key(), string(c.Owner.Kind), c.Owner.ID, string(b), unixNano(updated))
	if err != nil {
		return fmt.Errorf("sqlstore: save cart %s: %w", c.Owner.Key(), err)
	}
	return nil
}

func (s *CartStore) Delete(ctx context.Context, owner domcart.OwnerRef) error {
	if _, err := s.db.sql.ExecContext(ctx, `DELETE FROM carts WHERE owner_key = $1`, owner.Key()); err != nil {
		return fmt.Errorf("sqlstore: delete cart %s: %w", owner.Key(), err)
	}
	return nil
}

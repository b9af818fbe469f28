package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/money"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, account_id, session_id, guest_contact, request_key, items,
	subtotal_minor, tax_minor, total_minor, currency, shipping_address,
	status, payment_status, payment_reference, payment_redirect_url, payment_idempotency_key,
	version, created_at, updated_at`

type itemRow struct {
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    int64           `json:"unit_price_minor"`
	Variant      domcart.Variant `json:"variant,omitempty"`
	Jurisdiction string          `json:"jurisdiction"`
	TaxRate      string          `json:"tax_rate"`
	TaxAmount    int64           `json:"tax_minor"`
}

// OrderStore implements the order repository. Create decrements stock and inserts the
// order in one transaction.
type OrderStore struct {
	db *DB
}

func NewOrderStore(db *DB) *OrderStore { return &OrderStore{db: db} }

func (s *OrderStore) Create(ctx context.Context, o *domain.Order) error {
	items, contact, address, err := encodeOrder(o)
	if err != nil {
		return err
	}

	const decrement = `UPDATE products SET stock = stock - $1, updated_at = $2
		WHERE id = $3 AND stock >= $1 AND active`
	const insert = `INSERT INTO orders (owner_key, ` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	now := unixNano(time.Now())
	err = s.db.inTx(ctx, func(tx *sql.Tx) error {
		for _, it := range o.Items {
			res, err := tx.ExecContext(ctx, decrement, it.Quantity, now, it.ProductID)
			if err != nil {
				return fmt.Errorf("sqlstore: decrement stock %s: %w", it.ProductID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("sqlstore: decrement stock %s: %w", it.ProductID, err)
			}
			if n == 0 {
				return &domain.StockConflictError{ProductID: it.ProductID, Requested: it.Quantity}
			}
		}

		_, err := tx.ExecContext(ctx, insert,
			o.Owner.Key(), o.ID, o.Owner.AccountID, o.Owner.SessionID, contact, nullString(o.RequestKey), items,
			int64(o.Subtotal), int64(o.TaxAmount), int64(o.TotalAmount), o.Currency, address,
			string(o.Status), string(o.Payment.Status), nullString(o.Payment.ProviderReference),
			o.Payment.RedirectURL, o.Payment.IdempotencyKey,
			1, unixNano(o.CreatedAt), unixNano(o.UpdatedAt),
		)
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		if err != nil {
			return fmt.Errorf("sqlstore: insert order %s: %w", o.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	o.Version = 1
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.queryOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (s *OrderStore) FindByRequestKey(ctx context.Context, ownerKey, requestKey string) (*domain.Order, error) {
	if requestKey == "" {
		return nil, domain.ErrNotFound
	}
	return s.queryOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE owner_key = $1 AND request_key = $2`, ownerKey, requestKey)
}

func (s *OrderStore) FindByProviderReference(ctx context.Context, ref string) (*domain.Order, error) {
	return s.queryOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_reference = $1`, ref)
}

// AttachPaymentSession writes the reference only while none is set, so it never
// overwrites and never races the state CAS.
func (s *OrderStore) AttachPaymentSession(ctx context.Context, id, ref, redirectURL string) error {
	const q = `UPDATE orders SET payment_reference = $1, payment_redirect_url = $2, updated_at = $3
		WHERE id = $4 AND payment_reference IS NULL`

	res, err := s.db.sql.ExecContext(ctx, q, ref, redirectURL, unixNano(time.Now()), id)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("sqlstore: attach payment session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Payment.ProviderReference == ref {
		return nil
	}
	return domain.ErrReferenceSet
}

func (s *OrderStore) UpdateState(ctx context.Context, o *domain.Order) error {
	const q = `UPDATE orders SET status = $1, payment_status = $2, updated_at = $3, version = version + 1
		WHERE id = $4 AND version = $5`

	res, err := s.db.sql.ExecContext(ctx, q,
		string(o.Status), string(o.Payment.Status), unixNano(o.UpdatedAt), o.ID, o.Version,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: update order %s: %w", o.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: update order %s: %w", o.ID, err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, o.ID); err != nil {
			return err
		}
		return domain.ErrVersionConflict
	}
	o.Version++
	return nil
}

func (s *OrderStore) ListPendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + orderColumns + ` FROM orders
		WHERE payment_status = $1 AND created_at < $2
		ORDER BY created_at LIMIT $3`

	rows, err := s.db.sql.QueryContext(ctx, q, string(domain.PaymentPending), unixNano(createdBefore), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list pending payments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: list pending payments: %w", err)
	}
	return out, nil
}

func (s *OrderStore) queryOne(ctx context.Context, q string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(s.db.sql.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return o, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.Order, error) {
	var (
		o                        domain.Order
		contact, requestKey, ref sql.NullString
		items, address           string
		subtotal, tax, total     int64
		status, paymentStatus    string
		created, updated         int64
	)
	err := row.Scan(
		&o.ID, &o.Owner.AccountID, &o.Owner.SessionID, &contact, &requestKey, &items,
		&subtotal, &tax, &total, &o.Currency, &address,
		&status, &paymentStatus, &ref, &o.Payment.RedirectURL, &o.Payment.IdempotencyKey,
		&o.Version, &created, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: scan order: %w", err)
	}

	if o.Items, err = decodeItems(items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(address), &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("sqlstore: decode shipping address: %w", err)
	}
	if contact.Valid {
		var c domcart.Contact
		if err := json.Unmarshal([]byte(contact.String), &c); err != nil {
			return nil, fmt.Errorf("sqlstore: decode guest contact: %w", err)
		}
		o.Owner.Guest = &c
	}

	o.RequestKey = requestKey.String
	o.Subtotal = money.Minor(subtotal)
	o.TaxAmount = money.Minor(tax)
	o.TotalAmount = money.Minor(total)
	o.Status = domain.Status(status)
	o.Payment.Status = domain.PaymentStatus(paymentStatus)
	o.Payment.ProviderReference = ref.String
	o.Payment.Amount = o.TotalAmount
	o.Payment.Currency = o.Currency
	o.CreatedAt = fromUnixNano(created)
	o.UpdatedAt = fromUnixNano(updated)
	return &o, nil
}

func encodeOrder(o *domain.Order) (items string, contact sql.NullString, address string, err error) {
	rows := make([]itemRow, 0, len(o.Items))
	for _, it := range o.Items {
		rows = append(rows, itemRow{
			ProductID:    it.ProductID,
			Name:         it.Name,
			Quantity:     it.Quantity,
			UnitPrice:    int64(it.UnitPrice),
			Variant:      it.Variant,
			Jurisdiction: it.Jurisdiction,
			TaxRate:      it.TaxRate.String(),
			TaxAmount:    int64(it.TaxAmount),
		})
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", contact, "", fmt.Errorf("sqlstore: encode items: %w", err)
	}
	items = string(b)

	if b, err = json.Marshal(o.ShippingAddress); err != nil {
		return "", contact, "", fmt.Errorf("sqlstore: encode shipping address: %w", err)
	}
	address = string(b)

	if o.Owner.Guest != nil {
		if b, err = json.Marshal(o.Owner.Guest); err != nil {
			return "", contact, "", fmt.Errorf("sqlstore: encode guest contact: %w", err)
		}
		contact = sql.NullString{String: string(b), Valid: true}
	}
	return items, contact, address, nil
}

func decodeItems(raw string) ([]domain.Item, error) {
	var rows []itemRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("sqlstore: decode items: %w", err)
	}
	items := make([]domain.Item, 0, len(rows))
	for _, r := range rows {
		rate, err := decimal.NewFromString(r.TaxRate)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: decode tax rate %q: %w", r.TaxRate, err)
		}
		items = append(items, domain.Item{
			ProductID:    r.ProductID,
			Name:         r.Name,
			Quantity:     r.Quantity,
			UnitPrice:    money.Minor(r.UnitPrice),
			Variant:      r.Variant,
			Jurisdiction: r.Jurisdiction,
			TaxRate:      rate,
			TaxAmount:    money.Minor(r.TaxAmount),
		})
	}
	return items, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

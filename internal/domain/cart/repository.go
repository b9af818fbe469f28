package cart

import "context"

// Repository stores at most one cart per owner. Get returns ErrNotFound when none exists.
type Repository interface {
	Get(ctx context.Context, owner OwnerRef) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, owner OwnerRef) error
}

// SessionStore resolves guest sessions. Lookup returns ErrSessionExpired for unknown ids.
type SessionStore interface {
	Lookup(ctx context.Context, id string) (Session, error)
}

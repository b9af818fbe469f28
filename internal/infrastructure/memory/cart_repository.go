package memory

import (
	"context"
	"sync"
	"time"

	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
)

type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]*domcart.Cart
}

func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string]*domcart.Cart)}
}

func (r *CartRepository) Get(ctx context.Context, owner domcart.OwnerRef) (*domcart.Cart, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[owner.Key()]
	if !ok {
		return nil, domcart.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *CartRepository) Save(ctx context.Context, c *domcart.Cart) error {
	_ = ctx
	if c == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	clone := c.Clone()
	if clone.UpdatedAt.IsZero() {
		clone.UpdatedAt = time.Now().UTC()
	}
	r.carts[c.Owner.Key()] = clone
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, owner domcart.OwnerRef) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, owner.Key())
	return nil
}

// SessionStore holds issued guest sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domcart.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domcart.Session)}
}

// Issue creates and stores a fresh guest session.
func (s *SessionStore) Issue(ctx context.Context) (domcart.Session, error) {
	_ = ctx
	session, err := domcart.NewSession(time.Now().UTC())
	if err != nil {
		return domcart.Session{}, err
	}
	s.Put(session)
	return session, nil
}

func (s *SessionStore) Put(session domcart.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

func (s *SessionStore) Lookup(ctx context.Context, id string) (domcart.Session, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return domcart.Session{}, domcart.ErrSessionExpired
	}
	return session, nil
}

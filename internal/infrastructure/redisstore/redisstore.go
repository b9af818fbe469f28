// Package redisstore keeps guest sessions and guest carts in Redis. Both expire with
// the session, so nothing needs sweeping.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix = "guest_session:"
	cartPrefix    = "guest_cart:"
)

type SessionStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewSessionStore(client redis.Cmdable) *SessionStore {
	return &SessionStore{client: client, now: time.Now}
}

// Issue creates and stores a fresh guest session.
func (s *SessionStore) Issue(ctx context.Context) (domcart.Session, error) {
	session, err := domcart.NewSession(s.now().UTC())
	if err != nil {
		return domcart.Session{}, err
	}
	if err := s.Put(ctx, session); err != nil {
		return domcart.Session{}, err
	}
	return session, nil
}

func (s *SessionStore) Put(ctx context.Context, session domcart.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return domcart.ErrSessionExpired
	}
	b, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redisstore: marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionPrefix+session.ID, b, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set session: %w", err)
	}
	return nil
}

// Lookup reports unknown and expired sessions alike as ErrSessionExpired.
func (s *SessionStore) Lookup(ctx context.Context, id string) (domcart.Session, error) {
	data, err := s.client.Get(ctx, sessionPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return domcart.Session{}, domcart.ErrSessionExpired
	}
	if err != nil {
		return domcart.Session{}, fmt.Errorf("redisstore: get session: %w", err)
	}
	var session domcart.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return domcart.Session{}, fmt.Errorf("redisstore: unmarshal session: %w", err)
	}
	if session.Expired(s.now()) {
		return domcart.Session{}, domcart.ErrSessionExpired
	}
	return session, nil
}

// CartStore holds guest carts. A cart lives as long as a session would.
type CartStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewCartStore(client redis.Cmdable) *CartStore {
	return &CartStore{client: client, ttl: domcart.SessionTTL}
}

func (s *CartStore) Get(ctx context.Context, owner domcart.OwnerRef) (*domcart.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domcart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get cart: %w", err)
	}
	var c domcart.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("redisstore: unmarshal cart: %w", err)
	}
	c.Owner = owner
	return &c, nil
}

func (s *CartStore) Save(ctx context.Context, c *domcart.Cart) error {
	if c == nil {
		return nil
	}
	stored := c.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("redisstore: marshal cart: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(c.Owner), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set cart: %w", err)
	}
	return nil
}

func (s *CartStore) Delete(ctx context.Context, owner domcart.OwnerRef) error {
	if err := s.client.Del(ctx, cartKey(owner)).Err(); err != nil {
		return fmt.Errorf("redisstore: delete cart: %w", err)
	}
	return nil
}

func cartKey(owner domcart.OwnerRef) string {
	return cartPrefix + owner.ID
}

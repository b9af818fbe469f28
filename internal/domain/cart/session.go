package cart

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
)

const (
	SessionPrefix = "guest_"
	// SessionTTL is how long an issued guest session stays usable.
	SessionTTL = 24 * time.Hour
)

var sessionPattern = regexp.MustCompile(`^guest_[0-9a-f]{32}$`)

// ErrSessionExpired covers both expired and unknown sessions; callers cannot tell them apart.
var ErrSessionExpired = fmt.Errorf("%w: guest session expired or unknown", checkout.ErrValidation)

type Session struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// ValidateSessionID checks the identifier shape only.
func ValidateSessionID(id string) error {
	if id == "" {
		return checkout.Invalid("session_id", "required")
	}
	if !sessionPattern.MatchString(id) {
		return checkout.Invalid("session_id", "malformed")
	}
	return nil
}

// NewSession issues a fresh guest session identifier.
func NewSession(now time.Time) (Session, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return Session{}, fmt.Errorf("cart: generate session id: %w", err)
	}
	return Session{
		ID:        SessionPrefix + hex.EncodeToString(buf),
		ExpiresAt: now.Add(SessionTTL),
	}, nil
}

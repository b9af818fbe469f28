package httppresentation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleGuest    Role = "guest"
	RoleOperator Role = "operator"
)

var (
	errUnauthenticated = errors.New("authentication required")
	errForbidden       = errors.New("operator role required")
)

// Principal is the verified identity behind a bearer token. For guests Subject is
// the guest session id.
type Principal struct {
	Subject string
	Role    Role
}

// Authenticator signs and verifies HS256 tokens carrying user_id and role claims.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

func (a *Authenticator) Issue(subject string, role Role, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": subject,
		"role":    string(role),
		"exp":     a.now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Parse(raw string) (Principal, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, errors.New("invalid token claims")
	}
	subject, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	if subject == "" {
		return Principal{}, errors.New("token has no user_id")
	}
	switch r := Role(role); r {
	case RoleCustomer, RoleGuest, RoleOperator:
		return Principal{Subject: subject, Role: r}, nil
	default:
		return Principal{}, fmt.Errorf("unknown role %q", role)
	}
}

type principalKey struct{}

func principalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// withAuth verifies an optional bearer token. Requests without one pass through
// anonymous; a present but invalid token is rejected.
func (h *Handler) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || h.auth == nil {
			next.ServeHTTP(w, r)
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", errors.New("expected a bearer token"))
			return
		}
		p, err := h.auth.Parse(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// callerFor maps the request identity onto a checkout caller. Anonymous requests
// may still check out as a guest by naming an issued session in the body.
func callerFor(ctx context.Context, guest *guestRequest) (domcart.Caller, error) {
	contact := domcart.Contact{}
	sessionID := ""
	if guest != nil {
		contact = domcart.Contact{Name: guest.Name, Email: guest.Email, Phone: guest.Phone}
		sessionID = guest.SessionID
	}

	p, ok := principalFrom(ctx)
	switch {
	case !ok && sessionID != "":
		return domcart.Guest{SessionID: sessionID, Contact: contact}, nil
	case !ok:
		return nil, errUnauthenticated
	case p.Role == RoleGuest:
		return domcart.Guest{SessionID: p.Subject, Contact: contact}, nil
	default:
		return domcart.Authenticated{AccountID: p.Subject}, nil
	}
}

package cart

import (
	"net/mail"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
)

// Caller is either Authenticated or Guest. The set is closed; switch on the concrete type.
type Caller interface {
	Owner() OwnerRef
	isCaller()
}

type Authenticated struct {
	AccountID string
}

func (a Authenticated) Owner() OwnerRef { return OwnerRef{Kind: OwnerAccount, ID: a.AccountID} }
func (Authenticated) isCaller()         {}

type Guest struct {
	SessionID string
	Contact   Contact
}

func (g Guest) Owner() OwnerRef { return OwnerRef{Kind: OwnerSession, ID: g.SessionID} }
func (Guest) isCaller()         {}

// Contact is what a guest leaves behind instead of an account.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

func (c Contact) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return checkout.Invalid("guest.name", "required")
	}
	if strings.TrimSpace(c.Email) == "" {
		return checkout.Invalid("guest.email", "required")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return checkout.Invalid("guest.email", "malformed")
	}
	return nil
}

// Mode names the checkout policy applied to a caller in logs and metrics.
func Mode(c Caller) string {
	switch c.(type) {
	case Authenticated:
		return "authenticated"
	case Guest:
		return "guest"
	default:
		return "unknown"
	}
}

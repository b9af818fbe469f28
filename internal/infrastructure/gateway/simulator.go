package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"

	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

// Simulator is an in-process gateway for development. The reference is derived from
// the idempotency key, so a retried request always lands on the same session.
type Simulator struct {
	baseURL string
	signer  *Signer

	mu       sync.Mutex
	sessions map[string]dompayment.Session
	// failNext counts upcoming calls that fail with ErrUnavailable.
	failNext int
}

// NewSimulator builds a simulator whose callbacks are signed by signer.
func NewSimulator(baseURL string, signer *Signer) *Simulator {
	if baseURL == "" {
		baseURL = "https://pay.example.test"
	}
	return &Simulator{baseURL: baseURL, signer: signer, sessions: make(map[string]dompayment.Session)}
}

func (s *Simulator) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

func (s *Simulator) CreateSession(ctx context.Context, req dompayment.SessionRequest) (dompayment.Session, error) {
	if err := ctx.Err(); err != nil {
		return dompayment.Session{}, err
	}
	if req.IdempotencyKey == "" {
		return dompayment.Session{}, errors.New("gateway: idempotency key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext > 0 {
		s.failNext--
		return dompayment.Session{}, ErrUnavailable
	}
	if existing, ok := s.sessions[req.IdempotencyKey]; ok {
		return existing, nil
	}

	sum := sha256.Sum256([]byte(req.IdempotencyKey))
	ref := "ps_" + hex.EncodeToString(sum[:12])
	session := dompayment.Session{
		ProviderReference: ref,
		RedirectURL:       s.baseURL + "/checkout/" + ref,
	}
	s.sessions[req.IdempotencyKey] = session
	return session, nil
}

// Sessions reports how many distinct sessions were created.
func (s *Simulator) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

type callbackBody struct {
	ProviderReference string `json:"provider_reference"`
	Status            string `json:"status"`
}

// Callback renders the notification the gateway would post for reference, together
// with the value for SignatureHeader.
func (s *Simulator) Callback(reference, status string) ([]byte, string, error) {
	if s.signer == nil {
		return nil, "", errors.New("gateway: simulator has no webhook signer")
	}
	body, err := json.Marshal(callbackBody{ProviderReference: reference, Status: status})
	if err != nil {
		return nil, "", err
	}
	return body, s.signer.Sign(body), nil
}

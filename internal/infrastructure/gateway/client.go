// Package gateway talks to the hosted payment provider.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	dompayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const sessionsPath = "/v1/sessions"

// ErrUnavailable means the provider could not be reached or answered with a 5xx.
var ErrUnavailable = errors.New("gateway: provider unavailable")

type sessionRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	OrderID     string `json:"order_id"`
}

type sessionResponse struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirect_url"`
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// FailureThreshold consecutive failures open the breaker for OpenTimeout.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// Client creates sessions over HTTP behind a circuit breaker. 4xx answers are the
// caller's fault and do not count against the breaker.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[dompayment.Session]
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	threshold := cfg.FailureThreshold
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[dompayment.Session](gobreaker.Settings{
			Name:        "payment_gateway",
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !errors.Is(err, ErrUnavailable)
			},
		}),
	}
}

func (c *Client) CreateSession(ctx context.Context, req dompayment.SessionRequest) (dompayment.Session, error) {
	session, err := c.breaker.Execute(func() (dompayment.Session, error) {
		return c.post(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return dompayment.Session{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return session, err
}

func (c *Client) post(ctx context.Context, req dompayment.SessionRequest) (dompayment.Session, error) {
	body, err := json.Marshal(sessionRequest{
		AmountMinor: int64(req.AmountMinor),
		Currency:    req.Currency,
		OrderID:     req.OrderID,
	})
	if err != nil {
		return dompayment.Session{}, fmt.Errorf("gateway: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sessionsPath, bytes.NewReader(body))
	if err != nil {
		return dompayment.Session{}, fmt.Errorf("gateway: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return dompayment.Session{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return dompayment.Session{}, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return dompayment.Session{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return dompayment.Session{}, fmt.Errorf("%w: status %d: %s", dompayment.ErrRejected, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out sessionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return dompayment.Session{}, fmt.Errorf("gateway: decode response: %w", err)
	}
	if out.ID == "" {
		return dompayment.Session{}, errors.New("gateway: response without session id")
	}
	return dompayment.Session{ProviderReference: out.ID, RedirectURL: out.RedirectURL}, nil
}

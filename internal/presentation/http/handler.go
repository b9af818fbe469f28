package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/minishop-checkout/internal/application/payment"
	domcart "github.com/Zhima-Mochi/minishop-checkout/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/checkout"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerTenantID       = "X-Tenant-ID"
	headerIdempotencyKey = "Idempotency-Key"

	maxBodyBytes  = 1 << 20
	guestTokenTTL = domcart.SessionTTL
)

// SessionIssuer hands out guest sessions.
type SessionIssuer interface {
	Issue(ctx context.Context) (domcart.Session, error)
}

type UseCases struct {
	CreateOrder  application.UseCase[apporder.CreateOrderInput, *apporder.CreateOrderResult]
	GetOrder     application.UseCase[apporder.GetOrderInput, *domorder.Order]
	ChangeStatus application.UseCase[apporder.ChangeStatusInput, *domorder.Order]
	RetryPayment application.UseCase[apporder.RetryPaymentInput, *domorder.Order]
	Callback     application.UseCase[apppayment.CallbackInput, *apppayment.CallbackResult]
}

type Handler struct {
	uc        UseCases
	sessions  SessionIssuer
	auth      *Authenticator
	callbacks CallbackVerifier
	metrics   http.Handler

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewHandler(
	uc UseCases,
	sessions SessionIssuer,
	auth *Authenticator,
	callbacks CallbackVerifier,
	metrics http.Handler,
	tel observability.Observability,
) *Handler {
	tel = observability.OrNop(tel)
	return &Handler{
		uc:           uc,
		sessions:     sessions,
		auth:         auth,
		callbacks:    callbacks,
		metrics:      metrics,
		log:          tel.Logger().With(observability.F("component", componentHTTPHandler)),
		reqCounter:   tel.Metrics().Counter(observability.MHTTPRequests),
		durHistogram: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Each route: Trace → ObservabilityMiddleware (request logger) → HTTP metrics → Access log → Auth → Handler
	h.handle(r, http.MethodPost, "/v1/orders", h.handleCreateOrder)
	h.handle(r, http.MethodGet, "/v1/orders/{id}", h.handleGetOrder)
	h.handle(r, http.MethodPost, "/v1/orders/{id}/status", h.handleChangeStatus)
	h.handle(r, http.MethodPost, "/v1/orders/{id}/payment", h.handleRetryPayment)
	h.handle(r, http.MethodPost, "/v1/payments/callback", h.withCallbackSignature(h.handleCallback))
	h.handle(r, http.MethodPost, "/v1/sessions/guest", h.handleIssueGuestSession)
	h.handle(r, http.MethodGet, "/health", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

func (h *Handler) handle(r chi.Router, method, pattern string, handler http.HandlerFunc) {
	route := method + " " + pattern
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
			func(r *http.Request) string { return r.Header.Get(headerTenantID) },
		)(
			h.withHTTPMetrics(
				h.withAccessLog(
					h.withAuth(handler),
				),
			),
		),
	)
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		wrapped.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), route)))
	}))
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err)
		return
	}
	caller, err := callerFor(r.Context(), req.Guest)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}

	res, err := h.uc.CreateOrder.Execute(r.Context(), apporder.CreateOrderInput{
		Caller:     caller,
		Items:      req.lines(),
		Address:    req.ShippingAddress,
		RequestKey: key,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, newOrderResponse(res.Order, res.Rejected))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.ownerCaller(w, r)
	if !ok {
		return
	}
	o, err := h.uc.GetOrder.Execute(r.Context(), apporder.GetOrderInput{OrderID: chi.URLParam(r, "id"), Caller: caller})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o, nil))
}

func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	if p, ok := principalFrom(r.Context()); !ok || p.Role != RoleOperator {
		writeError(w, http.StatusForbidden, "forbidden", errForbidden)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err)
		return
	}
	o, err := h.uc.ChangeStatus.Execute(r.Context(), apporder.ChangeStatusInput{
		OrderID: chi.URLParam(r, "id"),
		Target:  domorder.Status(req.Status),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o, nil))
}

func (h *Handler) handleRetryPayment(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.ownerCaller(w, r)
	if !ok {
		return
	}
	o, err := h.uc.RetryPayment.Execute(r.Context(), apporder.RetryPaymentInput{OrderID: chi.URLParam(r, "id"), Caller: caller})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o, nil))
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err)
		return
	}
	res, err := h.uc.Callback.Execute(r.Context(), apppayment.CallbackInput{
		ProviderReference: req.ProviderReference,
		Result:            req.Status,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, callbackResponse{OrderID: res.OrderID, PaymentStatus: res.PaymentStatus, Applied: res.Applied})
}

func (h *Handler) handleIssueGuestSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil || h.auth == nil {
		writeError(w, http.StatusNotFound, "not_found", errors.New("guest sessions are not enabled"))
		return
	}
	session, err := h.sessions.Issue(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	token, err := h.auth.Issue(session.ID, RoleGuest, guestTokenTTL)
	if err != nil {
		h.fail(w, r, fmt.Errorf("sign guest token: %w", err))
		return
	}
	writeJSON(w, http.StatusCreated, guestSessionResponse{SessionID: session.ID, Token: token, ExpiresAt: session.ExpiresAt})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ownerCaller resolves who is asking for an existing order. Operators read any order.
func (h *Handler) ownerCaller(w http.ResponseWriter, r *http.Request) (domcart.Caller, bool) {
	p, ok := principalFrom(r.Context())
	switch {
	case !ok:
		writeError(w, http.StatusUnauthorized, "unauthenticated", errUnauthenticated)
		return nil, false
	case p.Role == RoleOperator:
		return nil, true
	case p.Role == RoleGuest:
		return domcart.Guest{SessionID: p.Subject}, true
	default:
		return domcart.Authenticated{AccountID: p.Subject}, true
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if !isClientError(err) {
		logctx.FromOr(r.Context(), h.log).Error("http_request_failed",
			observability.F("route", routeFromContext(r.Context())),
			observability.Err(err),
		)
	}
	writeDomainError(w, err)
}

func isClientError(err error) bool {
	for _, kind := range []error{checkout.ErrValidation, checkout.ErrInventoryConflict, checkout.ErrStateViolation, checkout.ErrNotFound} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("minishop.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if template == "unknown" || template == "" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
// DO NOT new metrics inside the middleware.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.reqCounter.Add(1, labels...)
		h.durHistogram.Observe(time.Since(start).Seconds(), labels...)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}

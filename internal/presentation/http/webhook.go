package httppresentation

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

const headerSignature = "X-Signature"

// CallbackVerifier checks that a payment callback body was signed by the gateway.
type CallbackVerifier interface {
	Verify(body []byte, signature string) bool
}

// withCallbackSignature admits a callback only when X-Signature matches the raw body.
// Without a verifier every callback is refused.
func (h *Handler) withCallbackSignature(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logctx.FromOr(r.Context(), h.log)
		signature := r.Header.Get(headerSignature)
		if signature == "" {
			log.Warn("callback_rejected", observability.F("reason", "missing_signature"))
			writeError(w, http.StatusUnauthorized, "unauthenticated", errors.New("missing callback signature"))
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err)
			return
		}
		if h.callbacks == nil || !h.callbacks.Verify(body, signature) {
			log.Warn("callback_rejected", observability.F("reason", "bad_signature"))
			writeError(w, http.StatusForbidden, "forbidden", errors.New("invalid callback signature"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next(w, r)
	}
}

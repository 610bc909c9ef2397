package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gestly/gestly/internal/app/services/billing"
)

const maxWebhookBytes = 512 << 10

// stripeWebhook verifies and applies a Stripe event. Events for unknown
// businesses are acknowledged so Stripe stops retrying them.
func (h *handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.app.Billing.HandleWebhook(r.Context(), payload, r.Header.Get(billing.SignatureHeader))
	switch {
	case errors.Is(err, billing.ErrMissingSignature),
		errors.Is(err, billing.ErrInvalidSignature),
		errors.Is(err, billing.ErrStaleSignature):
		h.log.WithError(err).Warn("stripe webhook rejected")
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

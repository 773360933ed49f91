package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ucpify/ucpify/internal/checkout"
	"github.com/ucpify/ucpify/internal/order"
)

// maxWebhookBody bounds webhook payload reads.
const maxWebhookBody = 1 << 20

// stripeEvent is the subset of a Stripe event the webhook consumes.
type stripeEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "unreadable body")
		return
	}

	if !verifyStripeSignature(r.Header.Get("Stripe-Signature"), body, h.stripeWebhookSecret) {
		respondError(w, http.StatusUnauthorized, "invalid_signature", "signature verification failed")
		return
	}

	var event stripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed event")
		return
	}

	var status string
	switch event.Type {
	case "payment_intent.succeeded":
		status = checkout.PaymentSucceeded
	case "payment_intent.payment_failed":
		status = checkout.PaymentFailed
	default:
		// Unhandled event types are acknowledged so Stripe stops retrying.
		w.WriteHeader(http.StatusOK)
		return
	}

	h.applyPaymentOutcome(r, event.Data.Object.ID, event.Data.Object.Metadata["checkout_id"], status)
	w.WriteHeader(http.StatusOK)
}

// verifyStripeSignature checks the t=...,v1=... header: v1 is the hex
// HMAC-SHA256 of "<t>.<body>" under the webhook secret.
func verifyStripeSignature(header string, body []byte, secret string) bool {
	if secret == "" || header == "" {
		return false
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			signatures = append(signatures, v)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		got, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			return true
		}
	}
	return false
}

// paypalEvent is the subset of a PayPal webhook event the handler consumes.
type paypalEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID            string `json:"id"`
		CustomID      string `json:"custom_id"`
		PurchaseUnits []struct {
			CustomID string `json:"custom_id"`
		} `json:"purchase_units"`
	} `json:"resource"`
}

func (h *Handler) paypalWebhook(w http.ResponseWriter, r *http.Request) {
	var event paypalEvent
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&event); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed event")
		return
	}

	var status string
	switch event.EventType {
	case "CHECKOUT.ORDER.APPROVED", "PAYMENT.CAPTURE.COMPLETED":
		status = checkout.PaymentSucceeded
	case "PAYMENT.CAPTURE.DENIED":
		status = checkout.PaymentFailed
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	checkoutID := event.Resource.CustomID
	if checkoutID == "" && len(event.Resource.PurchaseUnits) > 0 {
		checkoutID = event.Resource.PurchaseUnits[0].CustomID
	}

	h.applyPaymentOutcome(r, event.Resource.ID, checkoutID, status)
	w.WriteHeader(http.StatusOK)
}

// applyPaymentOutcome records the async payment result on the order (by
// provider reference) and the originating checkout session. Unknown
// references are logged and acknowledged; providers retry on error statuses
// and a reference we never issued will not appear later.
func (h *Handler) applyPaymentOutcome(r *http.Request, providerRef, checkoutID, status string) {
	ctx := r.Context()
	lg := zctx.From(ctx).With(
		zap.String("provider_ref", providerRef),
		zap.String("checkout_id", checkoutID),
		zap.String("payment_status", status),
	)

	if providerRef != "" {
		if err := h.orders.SetPaymentStatusByProviderRef(ctx, providerRef, status); err != nil {
			if errors.Is(err, order.ErrNotFound) {
				lg.Warn("webhook for unknown provider reference")
			} else {
				lg.Error("update order payment status", zap.Error(err))
			}
		}
	}
	if checkoutID != "" {
		if err := h.sessions.SetPaymentStatus(ctx, checkoutID, status); err != nil && !errors.Is(err, checkout.ErrNotFound) {
			lg.Error("update session payment status", zap.Error(err))
		}
	}

	lg.Info("payment outcome recorded")
}

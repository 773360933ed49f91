// Package handler implements the HTTP surface: checkout sessions, orders,
// catalog items, the UCP profile document, the OAuth 2.0 endpoints, payment
// webhooks, and admin stats.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/ucpify/ucpify/internal/catalog"
	"github.com/ucpify/ucpify/internal/checkout"
	"github.com/ucpify/ucpify/internal/merchant"
	"github.com/ucpify/ucpify/internal/oauth"
	"github.com/ucpify/ucpify/internal/order"
)

// StatsProvider aggregates admin counters: sessions by status, orders by
// provider and payment status, and today's order count.
type StatsProvider interface {
	Stats(ctx context.Context, now time.Time) (map[string]int, map[string]int, int, error)
}

// Config holds non-dependency settings for the Handler.
type Config struct {
	// StripeWebhookSecret verifies Stripe-Signature headers. When empty the
	// Stripe webhook rejects every delivery.
	StripeWebhookSecret string
}

// Handler serves every HTTP route. OAuth endpoints are registered only when
// the merchant enables the built-in provider.
type Handler struct {
	merchant *merchant.Config
	checkout *checkout.Service
	catalog  *catalog.Index
	orders   order.Repository
	sessions checkout.Repository
	oauth    *oauth.Service
	stats    StatsProvider

	stripeWebhookSecret string
}

// NewHandler constructs a Handler. oauthSvc may be nil when the built-in
// provider is disabled; stats may be nil to disable the admin endpoint.
func NewHandler(
	cfg Config,
	m *merchant.Config,
	checkoutSvc *checkout.Service,
	idx *catalog.Index,
	orders order.Repository,
	sessions checkout.Repository,
	oauthSvc *oauth.Service,
	stats StatsProvider,
) *Handler {
	return &Handler{
		merchant:            m,
		checkout:            checkoutSvc,
		catalog:             idx,
		orders:              orders,
		sessions:            sessions,
		oauth:               oauthSvc,
		stats:               stats,
		stripeWebhookSecret: cfg.StripeWebhookSecret,
	}
}

// Routes registers every route on a new ServeMux. The /ucp/v1 subtree is
// wrapped with the bearer-token gate when the built-in provider is enabled.
func (h *Handler) Routes() *http.ServeMux {
	api := http.NewServeMux()
	api.HandleFunc("POST /ucp/v1/checkout-sessions", h.createCheckoutSession)
	api.HandleFunc("GET /ucp/v1/checkout-sessions/{id}", h.getCheckoutSession)
	api.HandleFunc("PUT /ucp/v1/checkout-sessions/{id}", h.updateCheckoutSession)
	api.HandleFunc("POST /ucp/v1/checkout-sessions/{id}/complete", h.completeCheckoutSession)
	api.HandleFunc("POST /ucp/v1/checkout-sessions/{id}/cancel", h.cancelCheckoutSession)
	api.HandleFunc("GET /ucp/v1/orders", h.listOrders)
	api.HandleFunc("GET /ucp/v1/orders/{id}", h.getOrder)
	api.HandleFunc("GET /ucp/v1/items", h.listItems)

	mux := http.NewServeMux()
	mux.Handle("/ucp/v1/", h.requireBearer(api))

	mux.HandleFunc("GET /.well-known/ucp", h.ucpProfile)
	mux.HandleFunc("GET /.well-known/oauth-authorization-server", h.oauthMetadata)

	if h.oauth != nil {
		mux.HandleFunc("GET /oauth2/authorize", h.authorizePage)
		mux.HandleFunc("POST /oauth2/authorize", h.authorizeDecision)
		mux.HandleFunc("POST /oauth2/token", h.token)
		mux.HandleFunc("POST /oauth2/revoke", h.revoke)
	}

	mux.HandleFunc("POST /webhooks/stripe", h.stripeWebhook)
	mux.HandleFunc("POST /webhooks/paypal", h.paypalWebhook)

	if h.stats != nil {
		mux.HandleFunc("GET /admin/stats", h.adminStats)
	}

	return mux
}

// errorBody is the JSON error envelope for every non-OAuth endpoint.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Code: code, Message: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return false
	}
	return true
}

func logError(r *http.Request, msg string, err error) {
	zctx.From(r.Context()).Error(msg, zap.Error(err))
}

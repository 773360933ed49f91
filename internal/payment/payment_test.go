package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucpify/ucpify/internal/merchant"
)

func TestStripeCreatePendingPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_abc", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "3200", r.PostFormValue("amount"))
		assert.Equal(t, "usd", r.PostFormValue("currency"))
		assert.Equal(t, "checkout_123", r.PostFormValue("metadata[checkout_id]"))

		_ = json.NewEncoder(w).Encode(map[string]string{"id": "pi_42"})
	}))
	defer srv.Close()

	s := NewStripe("sk_test_abc")
	s.baseURL = srv.URL

	pending, err := s.CreatePendingPayment(context.Background(), 3200, "USD", "checkout_123")
	require.NoError(t, err)
	assert.Equal(t, &PendingPayment{Provider: ProviderStripe, Ref: "pi_42"}, pending)
}

func TestStripeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":"card_declined"}}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	s := NewStripe("sk_test_abc")
	s.baseURL = srv.URL

	_, err := s.CreatePendingPayment(context.Background(), 100, "USD", "checkout_x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProcessor))
}

func TestStripeMissingIntentID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"object":"payment_intent"}`)
	}))
	defer srv.Close()

	s := NewStripe("sk_test_abc")
	s.baseURL = srv.URL

	_, err := s.CreatePendingPayment(context.Background(), 100, "USD", "checkout_x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProcessor))
}

func TestPayPalCreatePendingPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			id, secret, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "client_a", id)
			assert.Equal(t, "secret_b", secret)
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok_xyz"})

		case "/v2/checkout/orders":
			assert.Equal(t, "Bearer tok_xyz", r.Header.Get("Authorization"))

			var payload struct {
				Intent        string `json:"intent"`
				PurchaseUnits []struct {
					CustomID string `json:"custom_id"`
					Amount   struct {
						CurrencyCode string `json:"currency_code"`
						Value        string `json:"value"`
					} `json:"amount"`
				} `json:"purchase_units"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "CAPTURE", payload.Intent)
			require.Len(t, payload.PurchaseUnits, 1)
			assert.Equal(t, "checkout_123", payload.PurchaseUnits[0].CustomID)
			assert.Equal(t, "USD", payload.PurchaseUnits[0].Amount.CurrencyCode)
			assert.Equal(t, "32.05", payload.PurchaseUnits[0].Amount.Value)

			_ = json.NewEncoder(w).Encode(map[string]string{"id": "PP_ORDER_7"})

		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewPayPal("client_a", "secret_b")
	p.baseURL = srv.URL

	pending, err := p.CreatePendingPayment(context.Background(), 3205, "usd", "checkout_123")
	require.NoError(t, err)
	assert.Equal(t, &PendingPayment{Provider: ProviderPayPal, Ref: "PP_ORDER_7"}, pending)
}

func TestPayPalAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewPayPal("client_a", "wrong")
	p.baseURL = srv.URL

	_, err := p.CreatePendingPayment(context.Background(), 100, "USD", "checkout_x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProcessor))
}

func TestMockRecordsPayments(t *testing.T) {
	m := NewMock(ProviderStripe)

	pending, err := m.CreatePendingPayment(context.Background(), 1500, "USD", "checkout_9")
	require.NoError(t, err)
	assert.Equal(t, ProviderStripe, pending.Provider)
	assert.NotEmpty(t, pending.Ref)

	require.Len(t, m.Created, 1)
	assert.Equal(t, int64(1500), m.Created[0].Amount)
	assert.Equal(t, "checkout_9", m.Created[0].Reference)

	m.Err = errors.New("declined")
	_, err = m.CreatePendingPayment(context.Background(), 100, "USD", "checkout_10")
	require.Error(t, err)
	assert.Len(t, m.Created, 1)
}

func TestSelect(t *testing.T) {
	cfg := func(handlers ...merchant.PaymentHandler) *merchant.Config {
		return &merchant.Config{PaymentHandlers: handlers}
	}

	t.Run("stripe with credentials", func(t *testing.T) {
		p := Select(cfg(merchant.PaymentHandler{
			Namespace: "com.stripe",
			Config:    map[string]string{"secret_key": "sk_live_x"},
		}))
		assert.IsType(t, &Stripe{}, p)
	})

	t.Run("stripe without credentials falls back to mock", func(t *testing.T) {
		p := Select(cfg(merchant.PaymentHandler{
			Namespace: "com.stripe",
			Config:    map[string]string{"publishable_key": "pk_test_x"},
		}))
		m, ok := p.(*Mock)
		require.True(t, ok)
		assert.Equal(t, ProviderStripe, m.Provider)
	})

	t.Run("stripe preferred over paypal", func(t *testing.T) {
		p := Select(cfg(
			merchant.PaymentHandler{Namespace: "com.paypal", Config: map[string]string{"client_id": "a", "client_secret": "b"}},
			merchant.PaymentHandler{Namespace: "com.stripe", Config: map[string]string{"secret_key": "sk"}},
		))
		assert.IsType(t, &Stripe{}, p)
	})

	t.Run("paypal with credentials", func(t *testing.T) {
		p := Select(cfg(merchant.PaymentHandler{
			Namespace: "com.paypal",
			Config:    map[string]string{"client_id": "a", "client_secret": "b"},
		}))
		assert.IsType(t, &PayPal{}, p)
	})

	t.Run("paypal without secret falls back to mock", func(t *testing.T) {
		p := Select(cfg(merchant.PaymentHandler{
			Namespace: "com.paypal",
			Config:    map[string]string{"client_id": "a"},
		}))
		m, ok := p.(*Mock)
		require.True(t, ok)
		assert.Equal(t, ProviderPayPal, m.Provider)
	})

	t.Run("no handlers", func(t *testing.T) {
		assert.Nil(t, Select(cfg()))
	})
}

package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

const stripeAPIBase = "https://api.stripe.com/v1"

// Stripe creates payment intents through Stripe's REST API.
type Stripe struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

// NewStripe returns a Stripe processor authenticated with the given secret key.
func NewStripe(secretKey string) *Stripe {
	return &Stripe{
		secretKey: secretKey,
		baseURL:   stripeAPIBase,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CreatePendingPayment creates a payment intent and returns its ID. The
// checkout reference travels in the intent metadata so webhooks can route the
// eventual outcome back to the session.
func (s *Stripe) CreatePendingPayment(ctx context.Context, amount int64, currency, reference string) (*PendingPayment, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("metadata[checkout_id]", reference)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrProcessor, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(ErrProcessor, err.Error())
	}
	if resp.StatusCode >= 400 {
		return nil, errors.Wrap(ErrProcessor, fmt.Sprintf("stripe returned %d", resp.StatusCode))
	}

	var intent struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, errors.Wrap(ErrProcessor, err.Error())
	}
	if intent.ID == "" {
		return nil, errors.Wrap(ErrProcessor, "stripe response missing intent id")
	}

	return &PendingPayment{Provider: ProviderStripe, Ref: intent.ID}, nil
}

package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

const paypalAPIBase = "https://api-m.paypal.com"

// PayPal creates orders through PayPal's Orders v2 REST API using
// client-credential authentication.
type PayPal struct {
	clientID     string
	clientSecret string
	baseURL      string
	client       *http.Client
}

// NewPayPal returns a PayPal processor for the given REST credentials.
func NewPayPal(clientID, clientSecret string) *PayPal {
	return &PayPal{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      paypalAPIBase,
		client:       &http.Client{Timeout: 15 * time.Second},
	}
}

// CreatePendingPayment creates a PayPal order in CAPTURE intent and returns
// its ID. The checkout reference is stored as the purchase unit custom_id so
// webhooks can resolve the session later.
func (p *PayPal) CreatePendingPayment(ctx context.Context, amount int64, currency, reference string) (*PendingPayment, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	// PayPal amounts are decimal strings in major units.
	value := fmt.Sprintf("%d.%02d", amount/100, amount%100)
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"custom_id": reference,
			"amount": map[string]string{
				"currency_code": strings.ToUpper(currency),
				"value":         value,
			},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal order")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v2/checkout/orders", strings.NewReader(string(body)))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var created struct {
		ID string `json:"id"`
	}
	if err := p.do(req, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, errors.Wrap(ErrProcessor, "paypal response missing order id")
	}

	return &PendingPayment{Provider: ProviderPayPal, Ref: created.ID}, nil
}

func (p *PayPal) accessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/oauth2/token", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", errors.Wrap(err, "build token request")
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := p.do(req, &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.Wrap(ErrProcessor, "paypal token response missing access_token")
	}
	return tok.AccessToken, nil
}

func (p *PayPal) do(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrap(ErrProcessor, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(ErrProcessor, err.Error())
	}
	if resp.StatusCode >= 400 {
		return errors.Wrap(ErrProcessor, "paypal returned "+strconv.Itoa(resp.StatusCode))
	}
	return json.Unmarshal(body, out)
}

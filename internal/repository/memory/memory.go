// Package memory provides in-memory repository implementations backing the
// server when no database is configured, and substituting for Postgres in
// tests. Records are stored as JSON so reads hand out copies, matching the
// whole-record read-modify-write model of the persistent store.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/ucpify/ucpify/internal/catalog"
	"github.com/ucpify/ucpify/internal/checkout"
	"github.com/ucpify/ucpify/internal/oauth"
	"github.com/ucpify/ucpify/internal/order"
)

// Store holds every in-memory table under one lock. Repository views share
// the store; multi-row writes (checkout completion, revocation cascades)
// happen under a single critical section.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]byte
	orders   map[string][]byte
	orderIDs []string
	clients  map[string]*oauth.Client
	codes    map[string]*oauth.AuthorizationCode
	tokens   map[string]*oauth.Token
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string][]byte),
		orders:   make(map[string][]byte),
		clients:  make(map[string]*oauth.Client),
		codes:    make(map[string]*oauth.AuthorizationCode),
		tokens:   make(map[string]*oauth.Token),
	}
}

// Sessions returns the checkout session repository view.
func (s *Store) Sessions() *SessionRepository { return &SessionRepository{s: s} }

// Orders returns the order repository view.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

// Clients returns the OAuth client repository view.
func (s *Store) Clients() *ClientRepository { return &ClientRepository{s: s} }

// Codes returns the authorization code repository view.
func (s *Store) Codes() *CodeRepository { return &CodeRepository{s: s} }

// Tokens returns the token repository view.
func (s *Store) Tokens() *TokenRepository { return &TokenRepository{s: s} }

// --- Checkout sessions ---

var _ checkout.Repository = (*SessionRepository)(nil)

// SessionRepository implements checkout.Repository over the shared store.
type SessionRepository struct {
	s *Store
}

func (r *SessionRepository) Get(_ context.Context, id string) (*checkout.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	raw, ok := r.s.sessions[id]
	if !ok {
		return nil, checkout.ErrNotFound
	}
	var sess checkout.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, errors.Wrap(err, "decode session")
	}
	return &sess, nil
}

func (r *SessionRepository) Save(_ context.Context, sess *checkout.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[sess.ID] = raw
	return nil
}

// Complete writes the completed session and its order under one lock; both
// become visible together.
func (r *SessionRepository) Complete(_ context.Context, sess *checkout.Session, o *order.Order) error {
	rawSess, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	rawOrder, err := json.Marshal(o)
	if err != nil {
		return errors.Wrap(err, "encode order")
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[sess.ID] = rawSess
	r.s.orders[o.ID] = rawOrder
	r.s.orderIDs = append(r.s.orderIDs, o.ID)
	return nil
}

func (r *SessionRepository) SetPaymentStatus(ctx context.Context, id, status string) error {
	sess, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.PaymentStatus = status
	return r.Save(ctx, sess)
}

// --- Orders ---

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository over the shared store.
type OrderRepository struct {
	s *Store
}

func (r *OrderRepository) Get(_ context.Context, id string) (*order.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.getLocked(id)
}

func (r *OrderRepository) getLocked(id string) (*order.Order, error) {
	raw, ok := r.s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	var o order.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return &o, nil
}

func (r *OrderRepository) List(_ context.Context) ([]*order.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*order.Order, 0, len(r.s.orderIDs))
	for _, id := range r.s.orderIDs {
		o, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *OrderRepository) SetPaymentStatus(_ context.Context, id, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, err := r.getLocked(id)
	if err != nil {
		return err
	}
	o.PaymentStatus = status
	return r.putLocked(o)
}

func (r *OrderRepository) SetPaymentStatusByProviderRef(_ context.Context, providerRef, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, id := range r.s.orderIDs {
		o, err := r.getLocked(id)
		if err != nil {
			return err
		}
		if o.ProviderRef == providerRef {
			o.PaymentStatus = status
			return r.putLocked(o)
		}
	}
	return order.ErrNotFound
}

func (r *OrderRepository) putLocked(o *order.Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return errors.Wrap(err, "encode order")
	}
	r.s.orders[o.ID] = raw
	return nil
}

// --- OAuth clients ---

var _ oauth.ClientRepository = (*ClientRepository)(nil)

// ClientRepository implements oauth.ClientRepository over the shared store.
type ClientRepository struct {
	s *Store
}

func (r *ClientRepository) Create(_ context.Context, c *oauth.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *c
	r.s.clients[c.ID] = &cp
	return nil
}

func (r *ClientRepository) Get(_ context.Context, id string) (*oauth.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.clients[id]
	if !ok {
		return nil, oauth.ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

// --- Authorization codes ---

var _ oauth.CodeRepository = (*CodeRepository)(nil)

// CodeRepository implements oauth.CodeRepository over the shared store.
type CodeRepository struct {
	s *Store
}

func (r *CodeRepository) Create(_ context.Context, c *oauth.AuthorizationCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *c
	r.s.codes[c.Code] = &cp
	return nil
}

func (r *CodeRepository) Get(_ context.Context, code string) (*oauth.AuthorizationCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.codes[code]
	if !ok {
		return nil, oauth.ErrInvalidGrant
	}
	cp := *c
	return &cp, nil
}

func (r *CodeRepository) MarkUsed(_ context.Context, code string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.codes[code]
	if !ok || c.Used {
		return oauth.ErrInvalidGrant
	}
	c.Used = true
	return nil
}

// --- Tokens ---

var _ oauth.TokenRepository = (*TokenRepository)(nil)

// TokenRepository implements oauth.TokenRepository over the shared store.
type TokenRepository struct {
	s *Store
}

func (r *TokenRepository) Create(_ context.Context, t *oauth.Token) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *t
	r.s.tokens[t.Token] = &cp
	return nil
}

func (r *TokenRepository) Get(_ context.Context, token string) (*oauth.Token, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tokens[token]
	if !ok {
		return nil, oauth.ErrInvalidGrant
	}
	cp := *t
	return &cp, nil
}

func (r *TokenRepository) Revoke(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tokens[token]
	if !ok {
		return oauth.ErrInvalidGrant
	}
	t.Revoked = true
	return nil
}

// RevokeAccessTokensFor sweeps every active access token for the pair under
// one lock, so the cascade observes a consistent snapshot.
func (r *TokenRepository) RevokeAccessTokensFor(_ context.Context, clientID, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	swept := 0
	for _, t := range r.s.tokens {
		if t.Type == oauth.TokenAccess && !t.Revoked && t.ClientID == clientID && t.UserID == userID {
			t.Revoked = true
			swept++
		}
	}
	return swept, nil
}

// --- Stats ---

// Stats aggregates the counters served by the admin endpoint.
func (s *Store) Stats(_ context.Context, now time.Time) (map[string]int, map[string]int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byStatus := make(map[string]int)
	for _, raw := range s.sessions {
		var sess checkout.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			return nil, nil, 0, errors.Wrap(err, "decode session")
		}
		byStatus[string(sess.Status)]++
	}

	byPayment := make(map[string]int)
	today := 0
	y, m, d := now.UTC().Date()
	for _, raw := range s.orders {
		var o order.Order
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, nil, 0, errors.Wrap(err, "decode order")
		}
		provider := o.PaymentProvider
		if provider == "" {
			provider = "none"
		}
		status := o.PaymentStatus
		if status == "" {
			status = "none"
		}
		byPayment[provider+"_"+status]++

		oy, om, od := o.CreatedAt.UTC().Date()
		if oy == y && om == m && od == d {
			today++
		}
	}
	return byStatus, byPayment, today, nil
}

// ListItems satisfies catalog.Repository with an empty result; the in-memory
// mode serves only config-defined items.
func (s *Store) ListItems(_ context.Context) ([]catalog.Item, error) {
	return nil, nil
}

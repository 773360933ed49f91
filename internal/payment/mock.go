package payment

import (
	"context"

	"github.com/ucpify/ucpify/internal/ids"
)

// Mock is an in-process processor for tests and demo setups. Every payment
// succeeds with a generated reference unless Err is set.
type Mock struct {
	Provider string
	Err      error

	// Created records every accepted request.
	Created []MockPayment
}

// MockPayment records one CreatePendingPayment call.
type MockPayment struct {
	Amount    int64
	Currency  string
	Reference string
	Ref       string
}

// NewMock returns a Mock acting as the given provider.
func NewMock(provider string) *Mock {
	return &Mock{Provider: provider}
}

func (m *Mock) CreatePendingPayment(_ context.Context, amount int64, currency, reference string) (*PendingPayment, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	ref := "mock_" + ids.Token(8)
	m.Created = append(m.Created, MockPayment{
		Amount:    amount,
		Currency:  currency,
		Reference: reference,
		Ref:       ref,
	})
	return &PendingPayment{Provider: m.Provider, Ref: ref}, nil
}

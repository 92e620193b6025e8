package billing

import (
	"context"
	"errors"
	"fmt"
)

//go:generate mockgen -source=gateway.go -destination=mock_gateway.go -package=billing

var (
	ErrNoPaymentMethod      = errors.New("no payment method on file")
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
)

type ChargeRequest struct {
	CustomerID      string
	PaymentMethodID string
	Amount          int64
	Currency        string
	InvoiceNumber   string
	IdempotencyKey  string
}

type ChargeResult struct {
	PaymentIntentID string
	Status          string
}

// ChargeError is a charge the processor refused, as opposed to a transport
// failure.
type ChargeError struct {
	Code    string
	Message string
}

func (e *ChargeError) Error() string {
	return fmt.Sprintf("charge declined: %s: %s", e.Code, e.Message)
}

// PaymentGateway charges a stored payment method off-session.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

type unconfiguredGateway struct{}

func (unconfiguredGateway) Charge(context.Context, ChargeRequest) (*ChargeResult, error) {
	return nil, ErrGatewayNotConfigured
}

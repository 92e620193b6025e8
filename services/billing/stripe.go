package billing

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type stripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) PaymentGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &stripeGateway{api: api}
}

// Charge confirms an off-session PaymentIntent. Anything but an immediate
// success is reported as a ChargeError.
func (g *stripeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(req.Currency),
		Customer:      stripe.String(req.CustomerID),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String("naano invoice " + req.InvoiceNumber),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("invoice_number", req.InvoiceNumber)

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) {
			code := string(se.Code)
			if se.DeclineCode != "" {
				code = string(se.DeclineCode)
			}
			return nil, &ChargeError{Code: code, Message: se.Msg}
		}
		return nil, err
	}

	res := &ChargeResult{PaymentIntentID: pi.ID, Status: string(pi.Status)}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return res, &ChargeError{Code: string(pi.Status), Message: "payment not completed off-session"}
	}
	return res, nil
}

package payments

import (
	"context"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// Intent is what the checkout widget needs to collect a payment.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Gateway produces payment identifiers for bookings. The booking core only
// records the identifier once the gateway reports success.
type Gateway interface {
	CreateIntent(ctx context.Context, confirmationNumber string, fare int) (Intent, error)
	Succeeded(ctx context.Context, paymentID string) (bool, error)
}

// StripeClient is a thin wrapper around stripe-go PaymentIntents.
type StripeClient struct {
	currency string
}

// NewStripeClient initializes the stripe client with the given secret key.
func NewStripeClient(apiKey, currency string) *StripeClient {
	stripe.Key = apiKey
	if currency == "" {
		currency = string(stripe.CurrencyINR)
	}
	return &StripeClient{currency: currency}
}

// CreateIntent opens a PaymentIntent for the fare. Fares are whole currency
// units; Stripe wants the minor unit.
func (s *StripeClient) CreateIntent(ctx context.Context, confirmationNumber string, fare int) (Intent, error) {
	amount := int64(fare) * 100
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(s.currency),
	}
	params.Context = ctx
	params.AddMetadata("confirmation_number", confirmationNumber)
	pi, err := paymentintent.New(params)
	if err != nil {
		return Intent{}, err
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Amount: amount, Currency: s.currency}, nil
}

// Succeeded reports whether the PaymentIntent has been paid.
func (s *StripeClient) Succeeded(ctx context.Context, paymentID string) (bool, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(paymentID, params)
	if err != nil {
		return false, err
	}
	return pi.Status == stripe.PaymentIntentStatusSucceeded, nil
}

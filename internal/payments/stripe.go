// Package payments creates payment links for booking invoices. Online
// payment itself (webhooks, reconciliation) happens outside this service;
// the admission flow only needs a link to hand back to the patient.
package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
)

// Linker produces a hosted payment page URL for an invoice.
type Linker interface {
	CreatePaymentLink(ctx context.Context, invoiceID uuid.UUID, amountCents int64, description string) (string, error)
}

type StripeLinker struct {
	successURL string
	cancelURL  string
	currency   string
}

// NewStripeLinker configures the global Stripe client with the secret key
// and returns a Linker backed by Checkout sessions.
func NewStripeLinker(secretKey, successURL, cancelURL string) *StripeLinker {
	stripe.Key = secretKey
	return &StripeLinker{
		successURL: successURL,
		cancelURL:  cancelURL,
		currency:   "inr",
	}
}

func (l *StripeLinker) CreatePaymentLink(ctx context.Context, invoiceID uuid.UUID, amountCents int64, description string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(l.successURL),
		CancelURL:         stripe.String(l.cancelURL),
		ClientReferenceID: stripe.String(invoiceID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(l.currency),
					UnitAmount: stripe.Int64(amountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
			},
		},
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// Disabled is the no-op Linker used when no Stripe key is configured;
// invoices are then settled at the desk.
type Disabled struct{}

func (Disabled) CreatePaymentLink(ctx context.Context, invoiceID uuid.UUID, amountCents int64, description string) (string, error) {
	return "", nil
}

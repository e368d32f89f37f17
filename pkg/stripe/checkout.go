package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
)

// Metadata keys attached to every Checkout Session.
const (
	MetadataUserID  = "user_id"
	MetadataOrderID = "order_id"
	MetadataNonce   = "nonce"
)

// LineItem is a single priced movie rendered on the hosted checkout page.
type LineItem struct {
	Name   string
	Amount decimal.Decimal
}

// SessionRequest describes a one-off payment Checkout Session.
type SessionRequest struct {
	OrderID        string
	UserID         string
	Nonce          string
	Currency       string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
	Items          []LineItem
}

// Session is the subset of the created session callers need.
type Session struct {
	ID  string
	URL string
}

type sessionBackend interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type checkoutSessionBackend struct{}

func (checkoutSessionBackend) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.New(params)
}

// CreateCheckoutSession opens a hosted payment session for the supplied
// line items. Amounts are converted to minor units.
func (c *Client) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if c == nil || c.sessions == nil {
		return nil, errors.New("stripe client not initialized")
	}
	if len(req.Items) == 0 {
		return nil, errors.New("checkout session requires at least one line item")
	}

	params := BuildSessionParams(req)
	params.Context = ctx

	created, err := c.sessions.New(params)
	if err != nil {
		return nil, err
	}
	return &Session{ID: created.ID, URL: created.URL}, nil
}

// BuildSessionParams maps a SessionRequest onto Stripe's create parameters.
func BuildSessionParams(req SessionRequest) *stripe.CheckoutSessionParams {
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(MinorUnits(item.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
			Quantity: stripe.Int64(1),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         lineItems,
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
	}
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.AddMetadata(MetadataUserID, req.UserID)
	params.AddMetadata(MetadataOrderID, req.OrderID)
	if req.Nonce != "" {
		params.AddMetadata(MetadataNonce, req.Nonce)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	return params
}

// MinorUnits converts a two-decimal amount to cents.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinorUnits converts cents back to a two-decimal amount.
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

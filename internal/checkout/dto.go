package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Landing page messages shown after the hosted payment page redirects back.
const (
	MessagePaymentSucceeded = "Payment was successful!"
	MessagePaymentCanceled  = "Payment was canceled."
	MessageOrderFinalized   = "Payment was paid or canceled."
	MessageNoPayableItems   = "order has no payable items"
)

// ConfirmInput identifies the order being paid and, when known, where Stripe
// should send the receipt.
type ConfirmInput struct {
	UserID        uuid.UUID
	OrderID       uuid.UUID
	CustomerEmail string
}

// CheckoutSession is what the client needs to redirect to the hosted page.
type CheckoutSession struct {
	SessionID   string          `json:"session_id"`
	RedirectURL string          `json:"redirect_url"`
	Total       decimal.Decimal `json:"total_amount"`
}

type pricedLine struct {
	name   string
	amount decimal.Decimal
}

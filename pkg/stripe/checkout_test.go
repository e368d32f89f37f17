package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/zazmarga/online-cinema/pkg/config"
)

type recordingBackend struct {
	params *stripe.CheckoutSessionParams
	err    error
}

func (r *recordingBackend) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	r.params = params
	if r.err != nil {
		return nil, r.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_123", URL: "https://checkout.stripe.com/c/pay/cs_test_123"}, nil
}

func TestCreateCheckoutSessionBuildsParams(t *testing.T) {
	backend := &recordingBackend{}
	client := &Client{environment: testEnv, signingSecret: "whsec", sessions: backend}

	sess, err := client.CreateCheckoutSession(context.Background(), SessionRequest{
		OrderID:        "order-1",
		UserID:         "user-1",
		Nonce:          "n1",
		Currency:       "USD",
		SuccessURL:     "https://cinema.test/success",
		CancelURL:      "https://cinema.test/cancel",
		IdempotencyKey: "checkout:order-1:n1",
		Items: []LineItem{
			{Name: "Alien", Amount: decimal.RequireFromString("9.99")},
			{Name: "Heat", Amount: decimal.RequireFromString("5.00")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", sess.ID)

	params := backend.params
	require.NotNil(t, params)
	assert.Equal(t, "payment", *params.Mode)
	assert.Equal(t, "order-1", *params.ClientReferenceID)
	assert.Equal(t, "user-1", params.Metadata[MetadataUserID])
	assert.Equal(t, "order-1", params.Metadata[MetadataOrderID])
	assert.Equal(t, "n1", params.Metadata[MetadataNonce])
	assert.Equal(t, "checkout:order-1:n1", *params.IdempotencyKey)
	require.Len(t, params.LineItems, 2)
	assert.Equal(t, int64(999), *params.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "usd", *params.LineItems[0].PriceData.Currency)
	assert.Equal(t, int64(500), *params.LineItems[1].PriceData.UnitAmount)
	assert.Nil(t, params.CustomerEmail)
}

func TestCreateCheckoutSessionRequiresItems(t *testing.T) {
	client := &Client{sessions: &recordingBackend{}}
	_, err := client.CreateCheckoutSession(context.Background(), SessionRequest{OrderID: "o"})
	require.Error(t, err)
}

func TestCreateCheckoutSessionPropagatesError(t *testing.T) {
	client := &Client{sessions: &recordingBackend{err: errors.New("card declined")}}
	_, err := client.CreateCheckoutSession(context.Background(), SessionRequest{
		OrderID: "o",
		Items:   []LineItem{{Name: "x", Amount: decimal.NewFromInt(1)}},
	})
	require.EqualError(t, err, "card declined")
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), MinorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(0), MinorUnits(decimal.Zero))
	assert.True(t, FromMinorUnits(1999).Equal(decimal.RequireFromString("19.99")))
}

func TestNewClientValidatesKeys(t *testing.T) {
	ctx := context.Background()
	_, err := NewClient(ctx, config.StripeConfig{APIKey: "", WebhookSecret: "whsec"}, nil)
	require.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_live_abc", WebhookSecret: "whsec", Env: "test"}, nil)
	require.Error(t, err)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_abc", Env: "test"}, nil)
	require.ErrorIs(t, err, errSecretRequired)

	_, err = NewClient(ctx, config.StripeConfig{APIKey: "sk_test_abc", WebhookSecret: "whsec", Env: "staging"}, nil)
	require.ErrorIs(t, err, errInvalidStripeEnv)

	client, err := NewClient(ctx, config.StripeConfig{APIKey: "sk_test_abc", WebhookSecret: "whsec_x", Env: "TEST"}, nil)
	require.NoError(t, err)
	assert.Equal(t, testEnv, client.Environment())
	assert.Equal(t, "whsec_x", client.SigningSecret())
}

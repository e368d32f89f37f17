package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/zazmarga/online-cinema/api/responses"
	stripewebhook "github.com/zazmarga/online-cinema/internal/webhooks/stripe"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/logger"
)

// maxPayloadBytes matches the ceiling Stripe documents for event payloads.
const maxPayloadBytes = 65536

type StripeWebhookService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (stripewebhook.Outcome, error)
}

type webhookResponse struct {
	Outcome stripewebhook.Outcome `json:"outcome"`
}

// StripeWebhook verifies and reconciles Stripe checkout events. Every
// authenticated event is acknowledged with 200; only processing failures
// return 5xx so that Stripe redelivers.
func StripeWebhook(svc StripeWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		outcome, err := svc.HandleWebhook(ctx, payload, r.Header.Get("Stripe-Signature"))
		switch {
		case errors.Is(err, stripewebhook.ErrInvalidSignature):
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid signature"))
			return
		case errors.Is(err, stripewebhook.ErrInvalidPayload):
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payload"))
			return
		case err != nil:
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "webhook processing failed"))
			return
		}

		responses.WriteSuccess(w, webhookResponse{Outcome: outcome})
	}
}

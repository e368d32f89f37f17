package orders

import (
	"net/http"

	"github.com/zazmarga/online-cinema/api/middleware"
	"github.com/zazmarga/online-cinema/api/responses"
	"github.com/zazmarga/online-cinema/api/validators"
	checkoutsvc "github.com/zazmarga/online-cinema/internal/checkout"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/logger"
)

// Checkout reprices a pending order and opens a hosted payment session for it.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.ConfirmAndPreparePayment(r.Context(), checkoutsvc.ConfirmInput{
			UserID:        userID,
			OrderID:       orderID,
			CustomerEmail: middleware.EmailFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

package payments

import (
	"net/http"

	"github.com/zazmarga/online-cinema/api/middleware"
	"github.com/zazmarga/online-cinema/api/responses"
	"github.com/zazmarga/online-cinema/api/validators"
	checkoutsvc "github.com/zazmarga/online-cinema/internal/checkout"
	internalpayments "github.com/zazmarga/online-cinema/internal/payments"
	"github.com/zazmarga/online-cinema/pkg/enums"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/logger"
)

// List returns the caller's payments, newest first.
func List(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListMyPayments(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminList returns every payment matching the user, date and status filters.
func AdminList(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		params, err := buildAdminParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListAllPayments(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Success is the landing page Stripe redirects to after a completed payment.
// Reconciliation happens on the webhook, not here.
func Success() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteMessage(w, http.StatusOK, checkoutsvc.MessagePaymentSucceeded)
	}
}

// Cancel is the landing page for an abandoned hosted checkout.
func Cancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteMessage(w, http.StatusOK, checkoutsvc.MessagePaymentCanceled)
	}
}

func buildAdminParams(r *http.Request) (internalpayments.AdminListParams, error) {
	var params internalpayments.AdminListParams

	page, err := validators.ParsePagination(r)
	if err != nil {
		return params, err
	}
	params.Params = page

	if params.UserIDs, err = validators.ParseQueryUUIDs(r, "user_ids"); err != nil {
		return params, err
	}
	if params.DateFrom, err = validators.ParseQueryDate(r, "date_from"); err != nil {
		return params, err
	}
	if params.DateTo, err = validators.ParseQueryDate(r, "date_to"); err != nil {
		return params, err
	}

	for _, raw := range validators.ParseQueryList(r, "status") {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status", "value": raw})
		}
		params.Statuses = append(params.Statuses, status)
	}
	return params, nil
}

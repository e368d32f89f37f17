package orders

import (
	"net/http"

	"github.com/zazmarga/online-cinema/api/middleware"
	"github.com/zazmarga/online-cinema/api/responses"
	"github.com/zazmarga/online-cinema/api/validators"
	internalorders "github.com/zazmarga/online-cinema/internal/orders"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/logger"
)

// Create turns the caller's cart into a pending order. Items the user can no
// longer buy are dropped and reported in the message.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateOrder(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil && result.OrderID != nil {
			logg.Info(logg.WithOrderID(r.Context(), result.OrderID.String()), "order.created")
		}
		responses.WriteMessage(w, http.StatusCreated, result.Message)
	}
}

// List returns the caller's orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		list, err := svc.ListMyOrders(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one of the caller's orders with its items.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		order, err := svc.GetMyOrder(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Cancel moves a pending order to canceled.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		if err := svc.CancelOrder(r.Context(), userID, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteMessage(w, http.StatusOK, internalorders.MessageOrderCanceled)
	}
}

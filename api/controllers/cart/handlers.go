package cart

import (
	"net/http"

	cartdto "github.com/zazmarga/online-cinema/api/controllers/cart/dto"
	"github.com/zazmarga/online-cinema/api/middleware"
	"github.com/zazmarga/online-cinema/api/responses"
	"github.com/zazmarga/online-cinema/api/validators"
	cartsvc "github.com/zazmarga/online-cinema/internal/cart"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/logger"
)

// CartList returns the caller's cart joined with live catalog data.
func CartList(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartAdd puts a movie in the caller's cart.
func CartAdd(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartdto.AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		line, err := svc.Add(r.Context(), userID, payload.MovieID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cartdto.AddItemResponse{Message: cartsvc.MessageAdded, Item: line})
	}
}

// CartRemove drops one movie from the caller's cart.
func CartRemove(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movieID, err := validators.ParsePathUUID(r, "movieId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Remove(r.Context(), userID, movieID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CartClear empties the caller's cart.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Clear(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

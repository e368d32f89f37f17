package controllers

import (
	"net/http"

	"github.com/zazmarga/online-cinema/api/middleware"
	"github.com/zazmarga/online-cinema/api/responses"
	"github.com/zazmarga/online-cinema/internal/ledger"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/logger"
)

// OwnedMovies lists the movies the caller has bought.
func OwnedMovies(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		movies, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if movies == nil {
			movies = []ledger.OwnedMovie{}
		}
		responses.WriteSuccess(w, movies)
	}
}

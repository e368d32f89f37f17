package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/zazmarga/online-cinema/api/responses"
	"github.com/zazmarga/online-cinema/pkg/config"
	"github.com/zazmarga/online-cinema/pkg/db"
	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is an optional dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Cinema-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and, when configured, redis.
func HealthReady(cfg *config.Config, logg *logger.Logger, database db.Pinger, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Cinema-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if database == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "database not configured"))
			return
		}
		if err := database.Ping(ctx); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
			return
		}
		if cache != nil {
			if err := cache.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

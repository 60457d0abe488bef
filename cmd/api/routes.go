package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hecoverseer/backend/internal/app"
	"github.com/hecoverseer/backend/internal/auth"
	"github.com/hecoverseer/backend/internal/handlers"
	"github.com/hecoverseer/backend/internal/router"
	"github.com/hecoverseer/backend/internal/validation"
)

// newRouter mounts the node API on top of the wired App. The simulation
// toggles and the login route are only guarded when an operator password
// hash is configured.
func newRouter(a *app.App, validator *validation.Validator, logger *slog.Logger) (http.Handler, error) {
	d := router.Deps{
		Tasks: &handlers.TaskHandler{
			Engine:      a.Engine,
			Tasks:       a.Tasks,
			Submissions: a.Submissions,
			Validator:   validator,
			Logger:      logger,
		},
		Query:   &handlers.QueryHandler{Query: a.Query, Logger: logger},
		Metrics: promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
	}
	if a.Config.OperatorAuthEnabled() {
		authSvc, err := auth.NewService(auth.Operator{
			Username:     a.Config.OperatorUsername,
			PasswordHash: a.Config.OperatorPasswordHash,
		}, a.Config.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("operator auth: %w", err)
		}
		d.Auth = auth.NewHandler(authSvc, logger)
		d.Operator = authSvc
	} else {
		logger.Warn("Operator auth disabled: simulation toggles are open")
	}
	return router.New(d), nil
}

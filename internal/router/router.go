package router

import (
	"net/http"

	"github.com/hecoverseer/backend/internal/auth"
	"github.com/hecoverseer/backend/internal/handlers"
	"github.com/hecoverseer/backend/internal/middleware"
)

// Deps are the handlers mounted by New. Auth, Operator and Metrics may be nil:
// without Auth there is no login route, without Operator the simulation
// toggles are open, without Metrics there is no /metrics.
type Deps struct {
	Tasks    *handlers.TaskHandler
	Query    *handlers.QueryHandler
	Auth     *auth.Handler
	Operator middleware.TokenValidator
	Metrics  http.Handler
}

// New returns an http.Handler serving the node API.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", handlers.Root)
	mux.HandleFunc("POST /submit_task", d.Tasks.SubmitTask)
	mux.HandleFunc("GET /tasks/{task_id}", d.Tasks.GetTask)
	mux.HandleFunc("POST /tasks/{task_id}/submissions", d.Tasks.SubmitEvidence)
	mux.HandleFunc("GET /submissions/{submission_id}", d.Tasks.GetSubmission)
	mux.HandleFunc("POST /workers", d.Tasks.RegisterWorker)

	mux.HandleFunc("GET /user/{wallet_address}", d.Query.GetUser)
	mux.HandleFunc("GET /stats", d.Query.Stats)
	mux.HandleFunc("GET /feed", d.Query.Feed)
	mux.HandleFunc("GET /simulation/status", d.Query.SimulationStatus)

	operatorOnly := middleware.OperatorAuth(d.Operator)
	mux.Handle("POST /simulation/start", operatorOnly(http.HandlerFunc(d.Query.StartSimulation)))
	mux.Handle("POST /simulation/stop", operatorOnly(http.HandlerFunc(d.Query.StopSimulation)))

	if d.Auth != nil {
		mux.HandleFunc("POST /auth/login", d.Auth.Login)
	}
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}
	return mux
}

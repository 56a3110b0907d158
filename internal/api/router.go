// Package api is the HTTP surface of the transfer daemon.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/token-transfer/internal/auth"
	"github.com/example/token-transfer/internal/journal"
	"github.com/example/token-transfer/internal/security"
	"github.com/example/token-transfer/internal/workflow"
)

const defaultMaxBodyBytes = 64 << 10

type Runner interface {
	Run(ctx context.Context, in workflow.Input) (*workflow.Result, error)
}

type Dependencies struct {
	Logger *slog.Logger
	Runner Runner
	// Defaults fills every Input field a request does not set.
	Defaults workflow.Input
	// TokenSource authenticates the daemon to the ledger. When nil the
	// caller's bearer token is forwarded instead.
	TokenSource auth.TokenSource
	// OperatorToken is the bearer token callers must present when
	// TokenSource is set. Required in that case.
	OperatorToken string
	// RegistryTokenSource is optional; without it registry calls are
	// anonymous.
	RegistryTokenSource auth.TokenSource

	Journal        journal.Store
	MetricsHandler http.Handler
	MaxBodyBytes   int64
}

func NewRouter(deps Dependencies) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxBodyBytes == 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	if deps.TokenSource != nil && deps.OperatorToken == "" {
		return nil, errors.New("api: an operator token is required when the daemon holds ledger credentials")
	}

	createTransferV, err := security.NewJSONSchemaValidator(createTransferSchema)
	if err != nil {
		return nil, err
	}

	onAuthError := func(w http.ResponseWriter, r *http.Request, status int, code string) {
		security.WriteJSONError(w, r, status, code)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(security.BodySizeLimit(deps.MaxBodyBytes))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/v1/transfers", func(r chi.Router) {
		r.Use(auth.BearerToken(onAuthError))
		if deps.TokenSource != nil {
			r.Use(auth.RequireToken(deps.OperatorToken, onAuthError))
		}

		create := r.With(createTransferV.Middleware)
		create.Post("/", handleCreateTransfer(deps))

		r.Get("/", handleListTransfers(deps))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return r, nil
}

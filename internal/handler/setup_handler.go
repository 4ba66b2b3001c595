package handler

import (
	"net/http"

	"github.com/boddenberg/controle-financeiro-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Setup: credentials, schema script and connection test
// ============================================================

type configureRequest struct {
	URL string `json:"supabase_url"`
	Key string `json:"supabase_key"`
}

func setupStatusHandler(setup *service.SetupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /setup")
		defer span.End()

		writeJSON(w, http.StatusOK, setup.Status(ctx))
	}
}

func setupConfigureHandler(setup *service.SetupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /setup")
		defer span.End()

		var req configureRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		status, err := setup.Configure(ctx, req.URL, req.Key)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func setupTablesHandler(setup *service.SetupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		script, err := setup.SchemaSQL()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(script))
	}
}

func setupTestHandler(setup *service.SetupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /setup/test")
		defer span.End()

		writeJSON(w, http.StatusOK, setup.TestConnection(ctx))
	}
}

package handler

import (
	"context"
	"net/http"

	"github.com/boddenberg/controle-financeiro-go/internal/service"
	"go.uber.org/zap"
)

type contextKey string

const financeKey contextKey = "finance"

// RequireFinance resolves the finance service for the request and injects it
// into the context. Requests are refused with 503 until credentials are set
// and the tables exist.
func RequireFinance(setup *service.SetupService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			finance, err := setup.Finance(r.Context())
			if err != nil {
				logger.Warn("finance: store not ready",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				handleServiceError(w, err, logger)
				return
			}

			ctx := context.WithValue(r.Context(), financeKey, finance)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FinanceFromContext extracts the finance service injected by RequireFinance.
func FinanceFromContext(ctx context.Context) *service.FinanceService {
	v, _ := ctx.Value(financeKey).(*service.FinanceService)
	return v
}

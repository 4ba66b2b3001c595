package handler

import (
	"net/http"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Accounts Handlers
// ============================================================

func listAccountsHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts")
		defer span.End()

		accounts, err := FinanceFromContext(ctx).ListAccounts(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if accounts == nil {
			accounts = []domain.Account{}
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

func createAccountHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts")
		defer span.End()

		var req domain.NewAccount
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		acct, err := FinanceFromContext(ctx).CreateAccount(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, acct)
	}
}

func getAccountHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}")
		defer span.End()

		accountID, err := idParam(r, "accountId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int64("account.id", accountID))

		detail, err := FinanceFromContext(ctx).AccountDetail(ctx, accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if detail.Transactions == nil {
			detail.Transactions = []domain.Transaction{}
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func updateAccountHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/accounts/{accountId}")
		defer span.End()

		accountID, err := idParam(r, "accountId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var req domain.AccountUpdate
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		acct, err := FinanceFromContext(ctx).UpdateAccount(ctx, accountID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, acct)
	}
}

func deleteAccountHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/accounts/{accountId}")
		defer span.End()

		accountID, err := idParam(r, "accountId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := FinanceFromContext(ctx).DeleteAccount(ctx, accountID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func postTransactionHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountId}/transactions")
		defer span.End()

		accountID, err := idParam(r, "accountId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var req domain.NewTransaction
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		tx, err := FinanceFromContext(ctx).PostTransaction(ctx, accountID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

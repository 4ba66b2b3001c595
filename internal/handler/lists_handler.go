package handler

import (
	"net/http"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Shopping lists: CRUD, items and settlement
// ============================================================

type createListRequest struct {
	Name string `json:"nome"`
}

type payListRequest struct {
	AccountID int64 `json:"conta_id"`
}

func listsOverviewHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/lists")
		defer span.End()

		overview, err := FinanceFromContext(ctx).ListsOverview(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, overview)
	}
}

func createListHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/lists")
		defer span.End()

		var req createListRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		list, err := FinanceFromContext(ctx).CreateList(ctx, req.Name)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, list)
	}
}

func getListHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/lists/{listId}")
		defer span.End()

		listID, err := idParam(r, "listId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int64("list.id", listID))

		detail, err := FinanceFromContext(ctx).ListDetail(ctx, listID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if detail.Items == nil {
			detail.Items = []domain.ListItem{}
		}
		if detail.Accounts == nil {
			detail.Accounts = []domain.Account{}
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func deleteListHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/lists/{listId}")
		defer span.End()

		listID, err := idParam(r, "listId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := FinanceFromContext(ctx).DeleteList(ctx, listID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addItemHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/lists/{listId}/items")
		defer span.End()

		listID, err := idParam(r, "listId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var req domain.NewListItem
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		item, err := FinanceFromContext(ctx).AddItem(ctx, listID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	}
}

func removeItemHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/lists/{listId}/items/{itemId}")
		defer span.End()

		listID, err := idParam(r, "listId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		itemID, err := idParam(r, "itemId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := FinanceFromContext(ctx).RemoveItem(ctx, listID, itemID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func payListHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/lists/{listId}/pay")
		defer span.End()

		listID, err := idParam(r, "listId")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var req payListRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.AccountID <= 0 {
			writeError(w, http.StatusBadRequest, "conta_id is required")
			return
		}
		span.SetAttributes(attribute.Int64("list.id", listID), attribute.Int64("account.id", req.AccountID))

		settlement, err := FinanceFromContext(ctx).PayList(ctx, listID, req.AccountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, settlement)
	}
}

package service

import (
	"context"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Balance ledger
// ============================================================

// PostTransaction records a transaction and moves the account balance by its
// signed amount. Negative balances are allowed.
func (s *FinanceService) PostTransaction(ctx context.Context, accountID int64, req *domain.NewTransaction) (*domain.Transaction, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.PostTransaction")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("account.id", accountID),
		attribute.String("transaction.kind", string(req.Kind)),
		attribute.String("transaction.amount", req.Amount.String()),
	)
	defer s.withTiming("post_transaction")()

	if err := validateTransaction(req); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(accountKey(accountID))
	defer unlock()

	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, s.observe(err)
	}
	if !domain.AmountFits(req.Kind.Apply(acct.Balance, domain.RoundAmount(req.Amount))) {
		return nil, &domain.ErrValidation{Field: "valor", Message: "resulting balance must not exceed " + domain.MaxAmount.StringFixed(2)}
	}

	tx, err := s.post(ctx, accountID, req)
	if err != nil {
		return nil, s.observe(err)
	}
	return tx, nil
}

// post inserts the transaction, then re-reads and writes the balance.
// The caller holds the account lock.
func (s *FinanceService) post(ctx context.Context, accountID int64, req *domain.NewTransaction) (*domain.Transaction, error) {
	opID := s.operationID()
	undo := newUndoLog("post_transaction", opID)

	amount := domain.RoundAmount(req.Amount)
	entry := &domain.NewTransaction{Kind: req.Kind, Amount: amount, Description: req.Description}

	// Registered before the insert: if the insert outcome is unknown the row
	// may still exist.
	undo.push("delete transaction", func(ctx context.Context) error {
		return s.store.DeleteTransactionsByOperation(ctx, opID)
	})

	tx, err := s.store.InsertTransaction(ctx, accountID, entry, opID)
	if err != nil {
		return nil, s.compensate(ctx, undo, err)
	}

	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, s.compensate(ctx, undo, err)
	}

	previous := acct.Balance
	undo.push("restore balance", func(ctx context.Context) error {
		return s.store.SetAccountBalance(ctx, accountID, previous)
	})
	balance := req.Kind.Apply(previous, amount)
	if err := s.store.SetAccountBalance(ctx, accountID, balance); err != nil {
		return nil, s.compensate(ctx, undo, err)
	}

	s.metrics.IncrPosting(req.Kind)
	s.logger.Info("transaction posted",
		zap.Int64("account_id", accountID),
		zap.Int64("transaction_id", tx.ID),
		zap.String("operation_id", opID),
		zap.String("kind", string(req.Kind)),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", balance.StringFixed(2)),
	)
	return tx, nil
}

func validateTransaction(req *domain.NewTransaction) error {
	if req == nil {
		return &domain.ErrValidation{Field: "tipo", Message: "required"}
	}
	if !req.Kind.Valid() {
		return &domain.ErrValidation{Field: "tipo", Message: "must be 'entrada' or 'saida'"}
	}
	if !domain.RoundAmount(req.Amount).IsPositive() {
		return &domain.ErrValidation{Field: "valor", Message: "must be greater than zero"}
	}
	if !domain.AmountFits(req.Amount) {
		return &domain.ErrValidation{Field: "valor", Message: "must not exceed " + domain.MaxAmount.StringFixed(2)}
	}
	return nil
}

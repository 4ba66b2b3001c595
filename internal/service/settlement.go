package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// List settlement
// ============================================================

// PayList debits the list total from the account, records one exit
// transaction describing the items and marks the list completed.
// Nothing is written when the balance does not cover the total.
func (s *FinanceService) PayList(ctx context.Context, listID, accountID int64) (*domain.Settlement, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.PayList")
	defer span.End()
	span.SetAttributes(attribute.Int64("list.id", listID), attribute.Int64("account.id", accountID))
	defer s.withTiming("pay_list")()

	unlockList := s.locks.Lock(listKey(listID))
	defer unlockList()
	unlockAccount := s.locks.Lock(accountKey(accountID))
	defer unlockAccount()

	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, s.observe(err)
	}
	if list.Completed {
		s.metrics.IncrSettlement(observability.OutcomeRejected)
		return nil, &domain.ErrConflict{Message: fmt.Sprintf("list %d is already completed", listID)}
	}

	items, err := s.store.ListItems(ctx, listID)
	if err != nil {
		return nil, s.observe(err)
	}
	if len(items) == 0 {
		s.metrics.IncrSettlement(observability.OutcomeRejected)
		return nil, &domain.ErrValidation{Field: "itens", Message: "list has no items"}
	}
	total := domain.ListTotal(items)

	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, s.observe(err)
	}
	if acct.Balance.LessThan(total) {
		s.metrics.IncrSettlement(observability.OutcomeRejected)
		s.logger.Info("settlement rejected: insufficient funds",
			zap.Int64("list_id", listID),
			zap.Int64("account_id", accountID),
			zap.String("balance", acct.Balance.StringFixed(2)),
			zap.String("total", total.StringFixed(2)),
		)
		return nil, &domain.ErrInsufficientFunds{Available: acct.Balance, Required: total}
	}

	opID := s.operationID()
	undo := newUndoLog("pay_list", opID)

	undo.push("delete transaction", func(ctx context.Context) error {
		return s.store.DeleteTransactionsByOperation(ctx, opID)
	})
	tx, err := s.store.InsertTransaction(ctx, accountID, &domain.NewTransaction{
		Kind:        domain.KindExit,
		Amount:      total,
		Description: domain.SettlementDescription(list.Name, items),
	}, opID)
	if err != nil {
		return nil, s.failSettlement(ctx, undo, err)
	}

	previous := acct.Balance
	balance := previous.Sub(total)
	undo.push("restore balance", func(ctx context.Context) error {
		return s.store.SetAccountBalance(ctx, accountID, previous)
	})
	if err := s.store.SetAccountBalance(ctx, accountID, balance); err != nil {
		return nil, s.failSettlement(ctx, undo, err)
	}

	completedAt := s.now().UTC()
	undo.push("reopen list", func(ctx context.Context) error {
		return s.store.ReopenList(ctx, listID, accountID, completedAt)
	})
	if err := s.store.CompleteList(ctx, listID, accountID, completedAt); err != nil {
		return nil, s.failSettlement(ctx, undo, err)
	}

	s.metrics.IncrPosting(domain.KindExit)
	s.metrics.IncrSettlement(observability.OutcomeCompleted)
	s.logger.Info("list settled",
		zap.Int64("list_id", listID),
		zap.Int64("account_id", accountID),
		zap.String("operation_id", opID),
		zap.Int("items", len(items)),
		zap.String("total", total.StringFixed(2)),
		zap.String("balance", balance.StringFixed(2)),
	)

	return &domain.Settlement{
		ListID:      listID,
		AccountID:   accountID,
		AccountName: acct.Name,
		Total:       total,
		NewBalance:  balance,
		Transaction: tx,
		CompletedAt: completedAt,
	}, nil
}

func (s *FinanceService) failSettlement(ctx context.Context, undo *undoLog, cause error) error {
	s.metrics.IncrSettlement(observability.OutcomeFailed)
	return s.observe(s.compensate(ctx, undo, cause))
}

package service

import (
	"context"
	"strings"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OpeningBalanceDescription labels the transaction that funds a new account.
const OpeningBalanceDescription = "Saldo inicial"

// ============================================================
// Accounts
// ============================================================

func (s *FinanceService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.ListAccounts")
	defer span.End()

	accounts, err := s.store.ListAccounts(ctx)
	return accounts, s.observe(err)
}

// CreateAccount opens an account. A non-zero opening balance is posted as a
// transaction so the balance still equals the transaction history.
func (s *FinanceService) CreateAccount(ctx context.Context, req *domain.NewAccount) (*domain.Account, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.CreateAccount")
	defer span.End()
	defer s.withTiming("create_account")()

	if err := validateAccountFields(req.Name, req.Bank, req.Category); err != nil {
		return nil, err
	}
	if !domain.AmountFits(req.OpeningBalance) {
		return nil, &domain.ErrValidation{Field: "saldo", Message: "must not exceed " + domain.MaxAmount.StringFixed(2)}
	}

	acct, err := s.store.CreateAccount(ctx, req)
	if err != nil {
		return nil, s.observe(err)
	}
	span.SetAttributes(attribute.Int64("account.id", acct.ID))

	opening := domain.RoundAmount(req.OpeningBalance)
	if !opening.IsZero() {
		entry := &domain.NewTransaction{Kind: domain.KindEntrance, Amount: opening, Description: OpeningBalanceDescription}
		if opening.IsNegative() {
			entry.Kind = domain.KindExit
			entry.Amount = opening.Neg()
		}

		unlock := s.locks.Lock(accountKey(acct.ID))
		_, err := s.post(ctx, acct.ID, entry)
		unlock()
		if err != nil {
			undo := newUndoLog("create_account", "")
			undo.push("delete account", func(ctx context.Context) error {
				return s.store.DeleteAccount(ctx, acct.ID)
			})
			return nil, s.observe(s.compensate(ctx, undo, err))
		}

		if acct, err = s.store.GetAccount(ctx, acct.ID); err != nil {
			return nil, s.observe(err)
		}
	}

	s.logger.Info("account created",
		zap.Int64("account_id", acct.ID),
		zap.String("category", acct.Category),
		zap.String("opening_balance", opening.StringFixed(2)),
	)
	return acct, nil
}

// UpdateAccount edits the descriptive fields. The balance is never touched.
func (s *FinanceService) UpdateAccount(ctx context.Context, accountID int64, req *domain.AccountUpdate) (*domain.Account, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.UpdateAccount")
	defer span.End()
	span.SetAttributes(attribute.Int64("account.id", accountID))

	if err := validateAccountFields(req.Name, req.Bank, req.Category); err != nil {
		return nil, err
	}

	if err := s.store.UpdateAccount(ctx, accountID, req); err != nil {
		return nil, s.observe(err)
	}
	acct, err := s.store.GetAccount(ctx, accountID)
	return acct, s.observe(err)
}

// DeleteAccount removes the account with its transactions. Lists it settled
// stay completed with no account.
func (s *FinanceService) DeleteAccount(ctx context.Context, accountID int64) error {
	ctx, span := financeTracer.Start(ctx, "FinanceService.DeleteAccount")
	defer span.End()
	span.SetAttributes(attribute.Int64("account.id", accountID))

	unlock := s.locks.Lock(accountKey(accountID))
	defer unlock()

	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return s.observe(err)
	}
	if err := s.store.DeleteAccount(ctx, accountID); err != nil {
		return s.observe(err)
	}

	s.logger.Info("account deleted", zap.Int64("account_id", accountID))
	return nil
}

// AccountDetail returns the account and its most recent transactions.
func (s *FinanceService) AccountDetail(ctx context.Context, accountID int64) (*domain.AccountDetail, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.AccountDetail")
	defer span.End()
	span.SetAttributes(attribute.Int64("account.id", accountID))

	var detail domain.AccountDetail

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		acct, err := s.store.GetAccount(gCtx, accountID)
		detail.Account = acct
		return err
	})
	g.Go(func() error {
		txs, err := s.store.ListRecentTransactions(gCtx, accountID, recentTransactionsLimit)
		detail.Transactions = txs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, s.observe(err)
	}

	return &detail, nil
}

func validateAccountFields(name, bank, category string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return &domain.ErrValidation{Field: "nome", Message: "required"}
	case strings.TrimSpace(bank) == "":
		return &domain.ErrValidation{Field: "banco", Message: "required"}
	case strings.TrimSpace(category) == "":
		return &domain.ErrValidation{Field: "categoria", Message: "required"}
	}
	return nil
}

package service

import (
	"context"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"
)

// Summarize totals all balances overall and per category. Nothing is cached.
func (s *FinanceService) Summarize(ctx context.Context) (*domain.Summary, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.Summarize")
	defer span.End()

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, s.observe(err)
	}
	summary := domain.Summarize(accounts)
	return &summary, nil
}

// Dashboard is the summary plus the accounts grouped by category.
func (s *FinanceService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.Dashboard")
	defer span.End()

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, s.observe(err)
	}
	return &domain.Dashboard{
		Summary:    domain.Summarize(accounts),
		Categories: domain.GroupByCategory(accounts),
	}, nil
}

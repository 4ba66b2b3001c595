package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/memory"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/observability"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/resilience"
	"github.com/boddenberg/controle-financeiro-go/internal/port"
	"github.com/boddenberg/controle-financeiro-go/internal/repository"
	"github.com/boddenberg/controle-financeiro-go/internal/service"
)

var undoCfg = resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	svc     *service.FinanceService
	store   *faultyStore
	mem     *memory.Store
	metrics *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memory.New()
	store := &faultyStore{FinanceStore: repository.New(mem)}
	metrics := observability.NewMetrics()
	return &fixture{
		svc:     service.NewFinanceService(store, undoCfg, metrics, zap.NewNop()),
		store:   store,
		mem:     mem,
		metrics: metrics,
	}
}

func (f *fixture) account(t *testing.T, name, category, opening string) *domain.Account {
	t.Helper()
	acct, err := f.svc.CreateAccount(context.Background(), &domain.NewAccount{
		Name: name, Bank: "Banco", Category: category, OpeningBalance: dec(opening),
	})
	if err != nil {
		t.Fatalf("create account %s: %v", name, err)
	}
	return acct
}

func (f *fixture) list(t *testing.T, name string, items ...domain.NewListItem) *domain.ShoppingList {
	t.Helper()
	ctx := context.Background()
	list, err := f.svc.CreateList(ctx, name)
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	for i := range items {
		if _, err := f.svc.AddItem(ctx, list.ID, &items[i]); err != nil {
			t.Fatalf("add item: %v", err)
		}
	}
	return list
}

func (f *fixture) balance(t *testing.T, accountID int64) decimal.Decimal {
	t.Helper()
	acct, err := f.store.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return acct.Balance
}

func (f *fixture) transactions(t *testing.T, accountID int64) []domain.Transaction {
	t.Helper()
	txs, err := f.store.ListRecentTransactions(context.Background(), accountID, 1000)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return txs
}

var errBoom = &domain.ErrStoreUnavailable{Table: "test", Op: "write", Err: errors.New("boom")}

// faultyStore fails selected writes on demand. The lost* faults apply the
// write and then report errBoom, as when a response is dropped after commit.
type faultyStore struct {
	port.FinanceStore

	failSetBalance        int // next n calls fail without writing
	lostSetBalance        int // next n calls write, then fail
	failDeleteByOp        bool
	failCompleteList      bool
	lostCompleteList      bool
	failInsertTransaction bool

	// beforeCompleteList runs ahead of every CompleteList call.
	beforeCompleteList func(ctx context.Context, listID int64)
}

func (s *faultyStore) SetAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	if s.failSetBalance > 0 {
		s.failSetBalance--
		return errBoom
	}
	if s.lostSetBalance > 0 {
		s.lostSetBalance--
		if err := s.FinanceStore.SetAccountBalance(ctx, id, balance); err != nil {
			return err
		}
		return errBoom
	}
	return s.FinanceStore.SetAccountBalance(ctx, id, balance)
}

func (s *faultyStore) DeleteTransactionsByOperation(ctx context.Context, opID string) error {
	if s.failDeleteByOp {
		return errBoom
	}
	return s.FinanceStore.DeleteTransactionsByOperation(ctx, opID)
}

func (s *faultyStore) CompleteList(ctx context.Context, listID, accountID int64, at time.Time) error {
	if s.beforeCompleteList != nil {
		s.beforeCompleteList(ctx, listID)
	}
	if s.failCompleteList {
		return errBoom
	}
	if s.lostCompleteList {
		if err := s.FinanceStore.CompleteList(ctx, listID, accountID, at); err != nil {
			return err
		}
		return errBoom
	}
	return s.FinanceStore.CompleteList(ctx, listID, accountID, at)
}

func (s *faultyStore) InsertTransaction(ctx context.Context, accountID int64, tx *domain.NewTransaction, opID string) (*domain.Transaction, error) {
	if s.failInsertTransaction {
		return nil, errBoom
	}
	return s.FinanceStore.InsertTransaction(ctx, accountID, tx, opID)
}

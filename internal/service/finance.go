// Package service provides the business logic layer (use cases).
// FinanceService keeps account balances consistent with their transaction
// history and settles shopping lists against accounts.
package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/observability"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/resilience"
	"github.com/boddenberg/controle-financeiro-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var financeTracer = otel.Tracer("service/finance")

// recentTransactionsLimit is how many transactions the account page shows.
const recentTransactionsLimit = 50

// completedListsLimit is how many settled lists the lists page shows.
const completedListsLimit = 10

// FinanceService orchestrates ledger postings, settlements and CRUD over a
// FinanceStore. Balance writes are serialized per account in this process.
type FinanceService struct {
	store   port.FinanceStore
	locks   *keyedLocks
	undoCfg resilience.Config
	metrics *observability.Metrics
	logger  *zap.Logger

	now         func() time.Time
	operationID func() string
}

// NewFinanceService creates a finance service. undoCfg controls how
// compensation steps are retried.
func NewFinanceService(store port.FinanceStore, undoCfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *FinanceService {
	return &FinanceService{
		store:       store,
		locks:       newKeyedLocks(),
		undoCfg:     undoCfg,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
		operationID: uuid.NewString,
	}
}

// TablesExist reports whether the backing tables are provisioned.
func (s *FinanceService) TablesExist(ctx context.Context) bool {
	return s.store.TablesExist(ctx)
}

// observe counts store failures before handing err back.
func (s *FinanceService) observe(err error) error {
	var unavailable *domain.ErrStoreUnavailable
	if errors.As(err, &unavailable) {
		s.metrics.IncrStoreError(unavailable.Table)
	}
	return err
}

func accountKey(id int64) string { return "account:" + strconv.FormatInt(id, 10) }
func listKey(id int64) string    { return "list:" + strconv.FormatInt(id, 10) }

// withTiming records the duration of operation when the returned func runs.
func (s *FinanceService) withTiming(operation string) func() {
	start := time.Now()
	return func() { s.metrics.RecordOperationDuration(operation, time.Since(start)) }
}

// detached keeps request values (trace, logger fields) but survives the
// caller going away, so compensation can finish.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

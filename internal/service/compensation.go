package service

import (
	"context"
	"errors"

	"github.com/boddenberg/controle-financeiro-go/internal/domain"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/observability"
	"github.com/boddenberg/controle-financeiro-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// undoLog records how to revert each write of a multi-step operation.
type undoLog struct {
	operation   string
	operationID string
	steps       []undoStep
}

type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

func newUndoLog(operation, operationID string) *undoLog {
	return &undoLog{operation: operation, operationID: operationID}
}

func (u *undoLog) push(name string, fn func(ctx context.Context) error) {
	u.steps = append(u.steps, undoStep{name: name, fn: fn})
}

// compensate reverts the recorded steps in reverse order, each retried with
// backoff. It returns cause when everything was undone and ErrPartialWrite
// otherwise.
func (s *FinanceService) compensate(ctx context.Context, u *undoLog, cause error) error {
	ctx = detached(ctx)

	var failures []error
	for i := len(u.steps) - 1; i >= 0; i-- {
		step := u.steps[i]
		err := resilience.RetryWithBackoff(ctx, s.undoCfg, func() error {
			return step.fn(ctx)
		})
		if err != nil {
			s.logger.Error("compensation step failed",
				zap.String("operation", u.operation),
				zap.String("operation_id", u.operationID),
				zap.String("step", step.name),
				zap.Error(err),
			)
			failures = append(failures, err)
		}
	}

	if len(failures) > 0 {
		s.metrics.IncrCompensation(observability.OutcomeFailed)
		return &domain.ErrPartialWrite{
			Operation:       u.operation,
			OperationID:     u.operationID,
			Err:             cause,
			CompensationErr: errors.Join(failures...),
		}
	}

	s.metrics.IncrCompensation(observability.OutcomeApplied)
	s.logger.Warn("operation rolled back",
		zap.String("operation", u.operation),
		zap.String("operation_id", u.operationID),
		zap.Int("steps", len(u.steps)),
		zap.Error(cause),
	)
	return cause
}

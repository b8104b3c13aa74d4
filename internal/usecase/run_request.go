package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/queue"
)

// RunRequestUsecase is the producer side of the run path: it enqueues a
// run job and blocks on the RPC reply so the HTTP caller gets the result
// synchronously.
type RunRequestUsecase struct {
	publisher queue.Publisher
	wait      time.Duration
	logger    *zap.Logger
}

// NewRunRequestUsecase creates a new RunRequestUsecase. wait bounds how
// long a caller blocks on the worker's reply.
func NewRunRequestUsecase(pub queue.Publisher, wait time.Duration, logger *zap.Logger) *RunRequestUsecase {
	return &RunRequestUsecase{
		publisher: pub,
		wait:      wait,
		logger:    logger,
	}
}

// Execute validates the request and runs it through the queue.
func (uc *RunRequestUsecase) Execute(ctx context.Context, req *domain.RunRequest) (*domain.RunResult, error) {
	if !req.Language.IsValid() {
		return nil, domain.ErrUnsupportedLanguage
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, domain.ErrEmptySourceCode
	}
	if len(req.Code) > maxSourceCodeSize {
		return nil, domain.ErrPayloadTooLarge
	}
	if len(req.Testcases) == 0 {
		return nil, fmt.Errorf("%w: no testcases", domain.ErrRunFailed)
	}

	jobID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	job := &domain.RunJob{
		JobID:     jobID,
		Code:      req.Code,
		Language:  req.Language,
		Testcases: req.Testcases,
		CreatedAt: time.Now().UTC(),
	}

	result, err := uc.publisher.PublishRunAndWait(ctx, job, uc.wait)
	if err != nil {
		uc.logger.Warn("Run job did not complete",
			zap.String("job_id", jobID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

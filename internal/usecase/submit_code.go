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
	"github.com/arbiter-oj/arbiter/internal/repository"
)

const maxSourceCodeSize = 1 << 20 // 1 MB

// SubmitCodeUsecase creates a QUEUED submission and enqueues the submit
// job. Fire-and-forget: the caller gets the submission id right away and
// polls (or streams) for the verdict.
type SubmitCodeUsecase struct {
	submissions repository.SubmissionRepository
	publisher   queue.Publisher
	logger      *zap.Logger
}

// NewSubmitCodeUsecase creates a new SubmitCodeUsecase.
func NewSubmitCodeUsecase(submissions repository.SubmissionRepository, pub queue.Publisher, logger *zap.Logger) *SubmitCodeUsecase {
	return &SubmitCodeUsecase{
		submissions: submissions,
		publisher:   pub,
		logger:      logger,
	}
}

// Execute validates the request, persists the submission and publishes
// the job.
func (uc *SubmitCodeUsecase) Execute(ctx context.Context, req *domain.SubmitRequest) (*domain.SubmitResponse, error) {
	if !req.Language.IsValid() {
		return nil, domain.ErrUnsupportedLanguage
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, domain.ErrEmptySourceCode
	}
	if len(req.Code) > maxSourceCodeSize {
		return nil, domain.ErrPayloadTooLarge
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	sub := &domain.Submission{
		ID:        id,
		UserID:    req.UserID,
		ProblemID: req.ProblemID,
		ContestID: req.ContestID,
		Code:      req.Code,
		Language:  req.Language,
		Verdict:   domain.VerdictNotJudged,
		Status:    domain.StatusQueued,
	}

	if err := uc.submissions.Create(ctx, sub); err != nil {
		uc.logger.Error("Failed to create submission", zap.Error(err), zap.String("submission_id", id.String()))
		return nil, fmt.Errorf("create submission: %w", err)
	}

	job := &domain.SubmitJob{
		SubmissionID: id,
		ProblemID:    req.ProblemID,
		Code:         req.Code,
		Language:     req.Language,
		CreatedAt:    time.Now().UTC(),
	}

	if err := uc.publisher.PublishSubmit(ctx, job); err != nil {
		uc.logger.Error("Failed to publish submit job", zap.Error(err), zap.String("submission_id", id.String()))
		// The job will never run; leave the submission terminal.
		_ = uc.submissions.SetResult(ctx, id, &domain.SubmissionResult{
			Verdict: domain.VerdictInternalError,
			Status:  domain.StatusFailed,
		})
		return nil, domain.ErrPublishFailed
	}

	uc.logger.Info("Submission enqueued",
		zap.String("submission_id", id.String()),
		zap.String("language", string(req.Language)),
	)

	return &domain.SubmitResponse{
		SubmissionID: id,
		Status:       string(domain.StatusQueued),
	}, nil
}

package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/repository"
)

// GetSubmissionUsecase handles fetching a submission's status and results.
type GetSubmissionUsecase struct {
	submissions repository.SubmissionRepository
	logger      *zap.Logger
}

// NewGetSubmissionUsecase creates a new GetSubmissionUsecase.
func NewGetSubmissionUsecase(submissions repository.SubmissionRepository, logger *zap.Logger) *GetSubmissionUsecase {
	return &GetSubmissionUsecase{
		submissions: submissions,
		logger:      logger,
	}
}

// Execute retrieves a submission by its ID.
func (uc *GetSubmissionUsecase) Execute(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	sub, err := uc.submissions.GetByID(ctx, id)
	if err != nil {
		uc.logger.Debug("Submission not found", zap.String("submission_id", id.String()), zap.Error(err))
		return nil, domain.ErrSubmissionNotFound
	}
	return sub, nil
}

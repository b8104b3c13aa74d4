package mock

import (
	"context"
	"time"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/queue"
)

// Ensure Publisher implements queue.Publisher.
var _ queue.Publisher = (*Publisher)(nil)

// Publisher is a test double for queue.Publisher.
type Publisher struct {
	PublishSubmitFn     func(ctx context.Context, job *domain.SubmitJob) error
	PublishRunAndWaitFn func(ctx context.Context, job *domain.RunJob, wait time.Duration) (*domain.RunResult, error)

	SubmitJobs []*domain.SubmitJob
	RunJobs    []*domain.RunJob
}

func (m *Publisher) PublishSubmit(ctx context.Context, job *domain.SubmitJob) error {
	m.SubmitJobs = append(m.SubmitJobs, job)
	if m.PublishSubmitFn != nil {
		return m.PublishSubmitFn(ctx, job)
	}
	return nil
}

func (m *Publisher) PublishRunAndWait(ctx context.Context, job *domain.RunJob, wait time.Duration) (*domain.RunResult, error) {
	m.RunJobs = append(m.RunJobs, job)
	if m.PublishRunAndWaitFn != nil {
		return m.PublishRunAndWaitFn(ctx, job, wait)
	}
	return &domain.RunResult{TotalTestcases: len(job.Testcases), PassedCount: len(job.Testcases)}, nil
}

func (m *Publisher) Close() error {
	return nil
}

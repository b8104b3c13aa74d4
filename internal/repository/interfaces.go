package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/executor"
)

// SubmissionRepository persists graded submissions. Between MarkRunning
// and a terminal write the submission is owned exclusively by the judge
// worker processing it.
type SubmissionRepository interface {
	// Create inserts a new QUEUED submission.
	Create(ctx context.Context, sub *domain.Submission) error

	// GetByID fetches a submission by its id.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error)

	// MarkRunning transitions a submission to RUNNING.
	MarkRunning(ctx context.Context, id uuid.UUID) error

	// SetResult stores the terminal outcome of a judged submission.
	SetResult(ctx context.Context, id uuid.UUID, result *domain.SubmissionResult) error
}

// TestcaseRepository reads the stored testcases of a problem.
type TestcaseRepository interface {
	// ListByProblem returns all testcases of a problem ordered by position.
	ListByProblem(ctx context.Context, problemID uuid.UUID) ([]domain.Testcase, error)
}

// StatsRepository mutates the derived user and problem counters.
type StatsRepository interface {
	// GetProblem fetches the problem fields the pipeline needs (difficulty).
	GetProblem(ctx context.Context, id uuid.UUID) (*domain.Problem, error)

	// IncrementSolved bumps the user's total and per-difficulty solved counters.
	IncrementSolved(ctx context.Context, userID uuid.UUID, difficulty domain.Difficulty) error

	// IncrementProblemCounters bumps a problem's total submission counter,
	// and the accepted counter when accepted is true.
	IncrementProblemCounters(ctx context.Context, problemID uuid.UUID, accepted bool) error
}

// SolvedMarkerStore is the recent-submission marker guarding first-solve
// accounting: at most one counted increment per (user, problem).
type SolvedMarkerStore interface {
	// Exists reports whether a marker already exists for (user, problem).
	Exists(ctx context.Context, userID, problemID uuid.UUID) (bool, error)

	// Upsert writes the marker with the latest timestamp. Idempotent.
	Upsert(ctx context.Context, userID, problemID uuid.UUID) error
}

// CacheInvalidator drops cached aggregates after a submission is judged.
// Readers of those aggregates tolerate eventual consistency bounded by
// this invalidation step.
type CacheInvalidator interface {
	InvalidateAggregates(ctx context.Context) error
}

// Sandbox is the slice of the execution client the workers consume.
type Sandbox interface {
	Submit(ctx context.Context, req executor.SubmitRequest) (string, error)
	PollUntilDone(ctx context.Context, token string, maxAttempts int, delay time.Duration) (*executor.ExecutionResult, error)
}

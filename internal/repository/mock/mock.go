package mock

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/executor"
	"github.com/arbiter-oj/arbiter/internal/repository"
)

// ---- SubmissionRepository mock ----

var _ repository.SubmissionRepository = (*SubmissionRepository)(nil)

// SubmissionRepository is a test double for repository.SubmissionRepository.
type SubmissionRepository struct {
	mu sync.Mutex

	CreateFn      func(ctx context.Context, sub *domain.Submission) error
	GetByIDFn     func(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
	MarkRunningFn func(ctx context.Context, id uuid.UUID) error
	SetResultFn   func(ctx context.Context, id uuid.UUID, result *domain.SubmissionResult) error

	// Recorded calls for assertions.
	Created    []*domain.Submission
	RunningIDs []uuid.UUID
	Results    []ResultUpdate
}

type ResultUpdate struct {
	ID     uuid.UUID
	Result *domain.SubmissionResult
}

func (m *SubmissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	m.mu.Lock()
	m.Created = append(m.Created, sub)
	m.mu.Unlock()
	if m.CreateFn != nil {
		return m.CreateFn(ctx, sub)
	}
	return nil
}

func (m *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, domain.ErrSubmissionNotFound
}

func (m *SubmissionRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	m.RunningIDs = append(m.RunningIDs, id)
	m.mu.Unlock()
	if m.MarkRunningFn != nil {
		return m.MarkRunningFn(ctx, id)
	}
	return nil
}

func (m *SubmissionRepository) SetResult(ctx context.Context, id uuid.UUID, result *domain.SubmissionResult) error {
	m.mu.Lock()
	m.Results = append(m.Results, ResultUpdate{ID: id, Result: result})
	m.mu.Unlock()
	if m.SetResultFn != nil {
		return m.SetResultFn(ctx, id, result)
	}
	return nil
}

// ---- TestcaseRepository mock ----

var _ repository.TestcaseRepository = (*TestcaseRepository)(nil)

// TestcaseRepository is a test double for repository.TestcaseRepository.
type TestcaseRepository struct {
	ListByProblemFn func(ctx context.Context, problemID uuid.UUID) ([]domain.Testcase, error)
}

func (m *TestcaseRepository) ListByProblem(ctx context.Context, problemID uuid.UUID) ([]domain.Testcase, error) {
	if m.ListByProblemFn != nil {
		return m.ListByProblemFn(ctx, problemID)
	}
	return nil, nil
}

// ---- StatsRepository mock ----

var _ repository.StatsRepository = (*StatsRepository)(nil)

// StatsRepository is a test double for repository.StatsRepository.
type StatsRepository struct {
	mu sync.Mutex

	GetProblemFn               func(ctx context.Context, id uuid.UUID) (*domain.Problem, error)
	IncrementSolvedFn          func(ctx context.Context, userID uuid.UUID, difficulty domain.Difficulty) error
	IncrementProblemCountersFn func(ctx context.Context, problemID uuid.UUID, accepted bool) error

	SolvedIncrements  []SolvedIncrement
	CounterIncrements []CounterIncrement
}

type SolvedIncrement struct {
	UserID     uuid.UUID
	Difficulty domain.Difficulty
}

type CounterIncrement struct {
	ProblemID uuid.UUID
	Accepted  bool
}

func (m *StatsRepository) GetProblem(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	if m.GetProblemFn != nil {
		return m.GetProblemFn(ctx, id)
	}
	return &domain.Problem{ID: id, Difficulty: domain.DifficultyEasy}, nil
}

func (m *StatsRepository) IncrementSolved(ctx context.Context, userID uuid.UUID, difficulty domain.Difficulty) error {
	m.mu.Lock()
	m.SolvedIncrements = append(m.SolvedIncrements, SolvedIncrement{UserID: userID, Difficulty: difficulty})
	m.mu.Unlock()
	if m.IncrementSolvedFn != nil {
		return m.IncrementSolvedFn(ctx, userID, difficulty)
	}
	return nil
}

func (m *StatsRepository) IncrementProblemCounters(ctx context.Context, problemID uuid.UUID, accepted bool) error {
	m.mu.Lock()
	m.CounterIncrements = append(m.CounterIncrements, CounterIncrement{ProblemID: problemID, Accepted: accepted})
	m.mu.Unlock()
	if m.IncrementProblemCountersFn != nil {
		return m.IncrementProblemCountersFn(ctx, problemID, accepted)
	}
	return nil
}

// ---- SolvedMarkerStore mock ----

var _ repository.SolvedMarkerStore = (*SolvedMarkerStore)(nil)

// SolvedMarkerStore is a test double for repository.SolvedMarkerStore.
type SolvedMarkerStore struct {
	mu sync.Mutex

	ExistsFn func(ctx context.Context, userID, problemID uuid.UUID) (bool, error)
	UpsertFn func(ctx context.Context, userID, problemID uuid.UUID) error

	ExistsCalls []MarkerKey
	UpsertCalls []MarkerKey
}

type MarkerKey struct {
	UserID    uuid.UUID
	ProblemID uuid.UUID
}

func (m *SolvedMarkerStore) Exists(ctx context.Context, userID, problemID uuid.UUID) (bool, error) {
	m.mu.Lock()
	m.ExistsCalls = append(m.ExistsCalls, MarkerKey{UserID: userID, ProblemID: problemID})
	m.mu.Unlock()
	if m.ExistsFn != nil {
		return m.ExistsFn(ctx, userID, problemID)
	}
	return false, nil // default: first solve
}

func (m *SolvedMarkerStore) Upsert(ctx context.Context, userID, problemID uuid.UUID) error {
	m.mu.Lock()
	m.UpsertCalls = append(m.UpsertCalls, MarkerKey{UserID: userID, ProblemID: problemID})
	m.mu.Unlock()
	if m.UpsertFn != nil {
		return m.UpsertFn(ctx, userID, problemID)
	}
	return nil
}

// ---- CacheInvalidator mock ----

var _ repository.CacheInvalidator = (*CacheInvalidator)(nil)

// CacheInvalidator is a test double for repository.CacheInvalidator.
type CacheInvalidator struct {
	mu sync.Mutex

	InvalidateFn func(ctx context.Context) error

	InvalidateCalls int
}

func (m *CacheInvalidator) InvalidateAggregates(ctx context.Context) error {
	m.mu.Lock()
	m.InvalidateCalls++
	m.mu.Unlock()
	if m.InvalidateFn != nil {
		return m.InvalidateFn(ctx)
	}
	return nil
}

// ---- Sandbox mock ----

var _ repository.Sandbox = (*Sandbox)(nil)

// Sandbox is a test double for repository.Sandbox.
type Sandbox struct {
	mu sync.Mutex

	SubmitFn        func(ctx context.Context, req executor.SubmitRequest) (string, error)
	PollUntilDoneFn func(ctx context.Context, token string, maxAttempts int, delay time.Duration) (*executor.ExecutionResult, error)

	SubmitCalls []executor.SubmitRequest
	PollCalls   []string
}

func (m *Sandbox) Submit(ctx context.Context, req executor.SubmitRequest) (string, error) {
	m.mu.Lock()
	m.SubmitCalls = append(m.SubmitCalls, req)
	n := len(m.SubmitCalls)
	m.mu.Unlock()
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, req)
	}
	return "token-" + strconv.Itoa(n), nil
}

func (m *Sandbox) PollUntilDone(ctx context.Context, token string, maxAttempts int, delay time.Duration) (*executor.ExecutionResult, error) {
	m.mu.Lock()
	m.PollCalls = append(m.PollCalls, token)
	m.mu.Unlock()
	if m.PollUntilDoneFn != nil {
		return m.PollUntilDoneFn(ctx, token, maxAttempts, delay)
	}
	return &executor.ExecutionResult{
		Status: executor.Status{ID: 3, Description: "Accepted"},
		Stdout: "ok\n",
		Time:   "0.01",
		Memory: 1024,
	}, nil
}

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/executor"
	qmock "github.com/arbiter-oj/arbiter/internal/queue/mock"
	"github.com/arbiter-oj/arbiter/internal/repository/mock"
	"github.com/arbiter-oj/arbiter/internal/usecase"
)

func testLimits() usecase.Limits {
	return usecase.Limits{
		CPUTimeSeconds:  2.0,
		MemoryKB:        128000,
		MaxPollAttempts: 3,
		PollDelay:       time.Millisecond,
	}
}

func newJudgeUsecase(
	subs *mock.SubmissionRepository,
	tcs *mock.TestcaseRepository,
	stats *mock.StatsRepository,
	marker *mock.SolvedMarkerStore,
	cache *mock.CacheInvalidator,
	sandbox *mock.Sandbox,
) *usecase.JudgeSubmissionUsecase {
	return usecase.NewJudgeSubmissionUsecase(subs, tcs, stats, marker, cache, sandbox, testLimits(), zap.NewNop())
}

func queuedSubmission(userID, problemID uuid.UUID) *domain.Submission {
	return &domain.Submission{
		ID:        uuid.New(),
		UserID:    userID,
		ProblemID: problemID,
		Code:      "print(input())",
		Language:  domain.LangPython,
		Verdict:   domain.VerdictNotJudged,
		Status:    domain.StatusQueued,
	}
}

func acceptedResult(stdout string) *executor.ExecutionResult {
	return &executor.ExecutionResult{
		Status: executor.Status{ID: 3, Description: "Accepted"},
		Stdout: stdout,
		Time:   "0.02",
		Memory: 2048,
	}
}

// Test: all testcases pass, submission completes ACCEPTED and the side
// effects (solved counters, problem counters, cache invalidation) fire.
func TestJudge_AllAccepted(t *testing.T) {
	userID := uuid.New()
	problemID := uuid.New()
	sub := queuedSubmission(userID, problemID)

	subs := &mock.SubmissionRepository{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
			return sub, nil
		},
	}
	tcs := &mock.TestcaseRepository{
		ListByProblemFn: func(ctx context.Context, pid uuid.UUID) ([]domain.Testcase, error) {
			return []domain.Testcase{
				{Stdin: "1", ExpectedOutput: "1", Position: 0},
				{Stdin: "2", ExpectedOutput: "2", Position: 1},
			}, nil
		},
	}
	stats := &mock.StatsRepository{}
	marker := &mock.SolvedMarkerStore{}
	cache := &mock.CacheInvalidator{}
	sandbox := &mock.Sandbox{
		PollUntilDoneFn: func(ctx context.Context, token string, maxAttempts int, delay time.Duration) (*executor.ExecutionResult, error) {
			// Echo back what the second testcase expects so trimmed
			// output comparison passes either way.
			out := "1"
			if len(token) > 0 && token[len(token)-1] == '2' {
				out = "2"
			}
			return acceptedResult(out + "\n"), nil
		},
	}

	uc := newJudgeUsecase(subs, tcs, stats, marker, cache, sandbox)
	job := &domain.SubmitJob{SubmissionID: sub.ID, ProblemID: problemID, Code: sub.Code, Language: sub.Language}

	if err := uc.Execute(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(subs.RunningIDs) != 1 || subs.RunningIDs[0] != sub.ID {
		t.Fatalf("expected MarkRunning for %s, got %v", sub.ID, subs.RunningIDs)
	}
	if len(subs.Results) != 1 {
		t.Fatalf("expected 1 result write, got %d", len(subs.Results))
	}
	res := subs.Results[0].Result
	if res.Verdict != domain.VerdictAccepted {
		t.Errorf("expected ACCEPTED, got %s", res.Verdict)
	}
	if res.Status != domain.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", res.Status)
	}
	if len(res.TestcaseResults) != 2 {
		t.Errorf("expected 2 testcase results, got %d", len(res.TestcaseResults))
	}
	if res.TotalRuntimeMs != 40 {
		t.Errorf("expected total runtime 40ms, got %d", res.TotalRuntimeMs)
	}
	if res.TotalMemoryKB != 2048 {
		t.Errorf("expected peak memory 2048KB, got %d", res.TotalMemoryKB)
	}

	if len(stats.SolvedIncrements) != 1 {
		t.Fatalf("expected 1 solved increment, got %d", len(stats.SolvedIncrements))
	}
	if stats.SolvedIncrements[0].UserID != userID {
		t.Errorf("solved increment recorded for wrong user")
	}
	if len(stats.CounterIncrements) != 1 || !stats.CounterIncrements[0].Accepted {
		t.Errorf("expected 1 accepted problem-counter increment, got %+v", stats.CounterIncrements)
	}
	if len(marker.UpsertCalls) != 1 {
		t.Errorf("expected 1 marker upsert, got %d", len(marker.UpsertCalls))
	}
	if cache.InvalidateCalls != 1 {
		t.Errorf("expected 1 cache invalidation, got %d", cache.InvalidateCalls)
	}
}

// Test: compile error on every testcase resolves to the first failure's
// verdict and skips the solved counters.
func TestJudge_CompileError(t *testing.T) {
	sub := queuedSubmission(uuid.New(), uuid.New())

	subs := &mock.SubmissionRepository{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
			return sub, nil
		},
	}
	tcs := &mock.TestcaseRepository{
		ListByProblemFn: func(ctx context.Context, pid uuid.UUID) ([]domain.Testcase, error) {
			return []domain.Testcase{
				{Stdin: "1", ExpectedOutput: "1"},
				{Stdin: "2", ExpectedOutput: "2"},
				{Stdin: "3", ExpectedOutput: "3"},
			}, nil
		},
	}
	stats := &mock.StatsRepository{}
	marker := &mock.SolvedMarkerStore{}
	cache := &mock.CacheInvalidator{}
	// Broken code fails compilation on every testcase run.
	sandbox := &mock.Sandbox{
		PollUntilDoneFn: func(ctx context.Context, token string, maxAttempts int, delay time.Duration) (*executor.ExecutionResult, error) {
			return &executor.ExecutionResult{
				Status:        executor.Status{ID: 6, Description: "Compilation Error"},
				CompileOutput: "syntax error\n",
			}, nil
		},
	}

	uc := newJudgeUsecase(subs, tcs, stats, marker, cache, sandbox)
	job := &domain.SubmitJob{SubmissionID: sub.ID, ProblemID: sub.ProblemID, Code: sub.Code, Language: sub.Language}

	if err := uc.Execute(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := subs.Results[0].Result
	if res.Verdict != domain.VerdictCompileError {
		t.Errorf("expected COMPILE_ERROR, got %s", res.Verdict)
	}
	if res.Status != domain.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", res.Status)
	}
	if len(res.TestcaseResults) != 3 {
		t.Errorf("expected 3 testcase results, got %d", len(res.TestcaseResults))
	}
	if len(stats.SolvedIncrements) != 0 {
		t.Errorf("solved counters must not move on a rejected submission")
	}
	if len(marker.UpsertCalls) != 0 {
		t.Errorf("marker must not be written on a rejected submission")
	}
	// Problem counters and cache invalidation still fire.
	if len(stats.CounterIncrements) != 1 || stats.CounterIncrements[0].Accepted {
		t.Errorf("expected 1 non-accepted counter increment, got %+v", stats.CounterIncrements)
	}
	if cache.InvalidateCalls != 1 {
		t.Errorf("expected cache invalidation, got %d", cache.InvalidateCalls)
	}
}

// Test: a mix of passing and failing testcases resolves to PARTIAL.
func TestJudge_Partial(t *testing.T) {
	sub := queuedSubmission(uuid.New(), uuid.New())

	subs := &mock.SubmissionRepository{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
			return sub, nil
		},
	}
	tcs := &mock.TestcaseRepository{
		ListByProblemFn: func(ctx context.Context, pid uuid.UUID) ([]domain.Testcase, error) {
			return []domain.Testcase{{Stdin: "1", ExpectedOutput: "1"}, {Stdin: "2", ExpectedOutput: "2"}}, nil
		},
	}
	calls := 0
	sandbox := &mock.Sandbox{
		PollUntilDoneFn: func(ctx context.Context, token string, maxAttempts int, delay time.Duration) (*executor.ExecutionResult, error) {
			calls++
			if calls == 1 {
				return acceptedResult("1\n"), nil
			}
			return &executor.ExecutionResult{
				Status: executor.Status{ID: 4, Description: "Wrong Answer"},
				Stdout: "3\n",
			}, nil
		},
	}

	uc := newJudgeUsecase(subs, tcs, &mock.StatsRepository{}, &mock.SolvedMarkerStore{}, &mock.CacheInvalidator{}, sandbox)
	job := &domain.SubmitJob{SubmissionID: sub.ID, ProblemID: sub.ProblemID, Code: sub.Code, Language: sub.Language}

	if err := uc.Execute(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := subs.Results[0].Result.Verdict; got != domain.VerdictPartial {
		t.Errorf("expected PARTIAL, got %s", got)
	}
}

// Test: a sandbox stdout that only matches after trimming still counts
// as passed; a real mismatch downgrades to WRONG_ANSWER.
func TestJudge_TrimmedOutputComparison(t *testing.T) {
	sub := queuedSubmission(uuid.New(), uuid.New())

	subs := &mock.SubmissionRepository{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
			return sub, nil
		},
	}
	tcs := &mock.TestcaseRepository{
		ListByProblemFn: func(ctx context.Context, pid uuid.UUID) ([]domain.Testcase, error) {
			return []domain.Testcase{{Stdin: "1", ExpectedOutput: "hello"}}, nil
		},
	}
	sandbox := &mock.Sandbox{
		PollUntilDoneFn: func(ctx context.Context, token string, maxAttempts int, delay time.Duration) (*executor.ExecutionResult, error) {
			// Sandbox says accepted but the actual output differs.
			return acceptedResult("goodbye\n"), nil
		},
	}

	uc := newJudgeUsecase(subs, tcs, &mock.StatsRepository{}, &mock.SolvedMarkerStore{}, &mock.CacheInvalidator{}, sandbox)
	job := &domain.SubmitJob{SubmissionID: sub.ID, ProblemID: sub.ProblemID, Code: sub.Code, Language: sub.Language}

	if err := uc.Execute(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := subs.Results[0].Result.Verdict; got != domain.VerdictWrongAnswer {
		t.Errorf("expected WRONG_ANSWER downgrade, got %s", got)
	}
}

// Test: hidden testcases never leak input or expected output into the
// stored results.
func TestJudge_HiddenTestcaseStripping(t *testing.T) {
	sub := queuedSubmission(uuid.New(), uuid.New())

	subs := &mock.SubmissionRepository{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
			return sub, nil
		},
	}
	tcs := &mock.TestcaseRepository{
		ListByProblemFn: func(ctx context.Context, pid uuid.UUID) ([]domain.Testcase, error) {
			return []domain.Testcase{
				{Stdin: "public in", ExpectedOutput: "ok", IsHidden: false},
				{Stdin: "secret in", ExpectedOutput: "ok", IsHidden: true},
			}, nil
		},
	}
	sandbox := &mock.Sandbox{
		PollUntilDoneFn: func(ctx context.Context, token string, maxAttempts int, delay time.Duration) (*executor.ExecutionResult, error) {
			return acceptedResult("ok\n"), nil
		},
	}

	uc := newJudgeUsecase(subs, tcs, &mock.StatsRepository{}, &mock.SolvedMarkerStore{}, &mock.CacheInvalidator{}, sandbox)
	job := &domain.SubmitJob{SubmissionID: sub.ID, ProblemID: sub.ProblemID, Code: sub.Code, Language: sub.Language}

	if err := uc.Execute(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := subs.Results[0].Result.TestcaseResults
	if results[0].Input != "public in" || results[0].ExpectedOutput != "ok" {
		t.Errorf("visible testcase lost its input/expected output: %+v", results[0])
	}
	if results[1].Input != "" || results[1].ExpectedOutput != "" {
		t.Errorf("hidden testcase leaked data: %+v", results[1])
	}
	if !results[1].Passed {
		t.Errorf("hidden testcase should still carry its outcome")
	}
}

// Test: a second accepted submission on the same problem refreshes the
// marker but never double-counts the solve.
func TestJudge_RepeatSolveNotDoubleCounted(t *testing.T) {
	sub := queuedSubmission(uuid.New(), uuid.New())

	subs := &mock.SubmissionRepository{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
			return sub, nil
		},
	}
	tcs := &mock.TestcaseRepository{
		ListByProblemFn: func(ctx context.Context, pid uuid.UUID) ([]domain.Testcase, error) {
			return []domain.Testcase{{Stdin: "1", ExpectedOutput: "ok"}}, nil
		},
	}
	stats := &mock.StatsRepository{}
	marker := &mock.SolvedMarkerStore{
		ExistsFn: func(ctx context.Context, userID, problemID uuid.UUID) (bool, error) {
			return true, nil // already solved once before
		},
	}
	sandbox := &mock.Sandbox{
		PollUntilDoneFn: func(ctx context.Context, token string, maxAttempts int, delay time.Duration) (*executor.ExecutionResult, error) {
			return acceptedResult("ok\n"), nil
		},
	}

	uc := newJudgeUsecase(subs, tcs, stats, marker, &mock.CacheInvalidator{}, sandbox)
	job := &domain.SubmitJob{SubmissionID: sub.ID, ProblemID: sub.ProblemID, Code: sub.Code, Language: sub.Language}

	if err := uc.Execute(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stats.SolvedIncrements) != 0 {
		t.Errorf("repeat solve must not increment solved counters")
	}
	if len(marker.UpsertCalls) != 1 {
		t.Errorf("marker must still be refreshed on a repeat solve, got %d upserts", len(marker.UpsertCalls))
	}
}

// Test: the broker delivers at-least-once, so the same submit job can
// arrive twice (requeue on shutdown, crash between result write and
// ack). The second delivery must not re-enter RUNNING, re-run the
// sandbox or double the problem counters.
func TestJudge_RedeliveredJobNotRejudged(t *testing.T) {
	sub := queuedSubmission(uuid.New(), uuid.New())
	status := domain.StatusQueued

	subs := &mock.SubmissionRepository{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
			view := *sub
			view.Status = status
			return &view, nil
		},
		MarkRunningFn: func(ctx context.Context, id uuid.UUID) error {
			if status.IsTerminal() {
				return domain.ErrAlreadyJudged
			}
			status = domain.StatusRunning
			return nil
		},
		SetResultFn: func(ctx context.Context, id uuid.UUID, result *domain.SubmissionResult) error {
			status = result.Status
			return nil
		},
	}
	tcs := &mock.TestcaseRepository{
		ListByProblemFn: func(ctx context.Context, pid uuid.UUID) ([]domain.Testcase, error) {
			return []domain.Testcase{{Stdin: "1", ExpectedOutput: "ok"}}, nil
		},
	}
	stats := &mock.StatsRepository{}
	cache := &mock.CacheInvalidator{}
	sandbox := &mock.Sandbox{}

	uc := newJudgeUsecase(subs, tcs, stats, &mock.SolvedMarkerStore{}, cache, sandbox)
	job := &domain.SubmitJob{SubmissionID: sub.ID, ProblemID: sub.ProblemID, Code: sub.Code, Language: sub.Language}

	if err := uc.Execute(context.Background(), job); err != nil {
		t.Fatalf("first delivery: unexpected error: %v", err)
	}
	if status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED after first delivery, got %s", status)
	}

	if err := uc.Execute(context.Background(), job); err != nil {
		t.Fatalf("redelivery must be skipped cleanly, got error: %v", err)
	}

	if status != domain.StatusCompleted {
		t.Errorf("redelivery re-entered %s from COMPLETED", status)
	}
	if len(sandbox.SubmitCalls) != 1 {
		t.Errorf("expected 1 sandbox execution across both deliveries, got %d", len(sandbox.SubmitCalls))
	}
	if len(stats.CounterIncrements) != 1 {
		t.Errorf("expected problem counters incremented once, got %d", len(stats.CounterIncrements))
	}
	if len(subs.Results) != 1 {
		t.Errorf("expected 1 result write, got %d", len(subs.Results))
	}
}

/// Test: one broken testcase run becomes an INTERNAL_ERROR result and
// judging continues over the remaining testcases.
func TestJudge_TestcaseFailureIsolated(t *testing.T) {
	sub := queuedSubmission(uuid.New(), uuid.New())

	subs := &mock.SubmissionRepository{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
			return sub, nil
		},
	}
	tcs := &mock.TestcaseRepository{
		ListByProblemFn: func(ctx context.Context, pid uuid.UUID) ([]domain.Testcase, error) {
			return []domain.Testcase{
				{Stdin: "1", ExpectedOutput: "ok"},
				{Stdin: "2", ExpectedOutput: "ok"},
				{Stdin: "3", ExpectedOutput: "ok"},
			}, nil
		},
	}
	submitCalls := 0
	sandbox := &mock.Sandbox{
		SubmitFn: func(ctx context.Context, req executor.SubmitRequest) (string, error) {
			submitCalls++
			if submitCalls == 2 {
				return "", domain.ErrRemoteSubmit
			}
			return "tok", nil
		},
		PollUntilDoneFn: func(ctx context.Context, token string, maxAttempts int, delay time.Duration) (*executor.ExecutionResult, error) {
			return acceptedResult("ok\n"), nil
		},
	}

	uc := newJudgeUsecase(subs, tcs, &mock.StatsRepository{}, &mock.SolvedMarkerStore{}, &mock.CacheInvalidator{}, sandbox)
	job := &domain.SubmitJob{SubmissionID: sub.ID, ProblemID: sub.ProblemID, Code: sub.Code, Language: sub.Language}

	if err := uc.Execute(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if submitCalls != 3 {
		t.Fatalf("expected all 3 testcases attempted, got %d", submitCalls)
	}
	res := subs.Results[0].Result
	if len(res.TestcaseResults) != 3 {
		t.Fatalf("expected 3 results, got %d", len(res.TestcaseResults))
	}
	if res.TestcaseResults[1].Verdict != domain.VerdictInternalError {
		t.Errorf("broken testcase should record INTERNAL_ERROR, got %s", res.TestcaseResults[1].Verdict)
	}
	if res.Verdict != domain.VerdictPartial {
		t.Errorf("expected PARTIAL with 2/3 passed, got %s", res.Verdict)
	}
}

// Test: a problem with no stored testcases fails the submission.
func TestJudge_NoTestcases(t *testing.T) {
	sub := queuedSubmission(uuid.New(), uuid.New())

	subs := &mock.SubmissionRepository{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
			return sub, nil
		},
	}
	tcs := &mock.TestcaseRepository{}

	uc := newJudgeUsecase(subs, tcs, &mock.StatsRepository{}, &mock.SolvedMarkerStore{}, &mock.CacheInvalidator{}, &mock.Sandbox{})
	job := &domain.SubmitJob{SubmissionID: sub.ID, ProblemID: sub.ProblemID, Code: sub.Code, Language: sub.Language}

	err := uc.Execute(context.Background(), job)
	if !errors.Is(err, domain.ErrNoTestcases) {
		t.Fatalf("expected ErrNoTestcases, got %v", err)
	}

	if len(subs.Results) != 1 {
		t.Fatalf("expected failure to be persisted, got %d writes", len(subs.Results))
	}
	res := subs.Results[0].Result
	if res.Status != domain.StatusFailed || res.Verdict != domain.VerdictInternalError {
		t.Errorf("expected FAILED/INTERNAL_ERROR, got %s/%s", res.Status, res.Verdict)
	}
}

// Test: an unknown submission id fails the job and leaves a FAILED record.
func TestJudge_SubmissionMissing(t *testing.T) {
	subs := &mock.SubmissionRepository{} // GetByID defaults to not found

	uc := newJudgeUsecase(subs, &mock.TestcaseRepository{}, &mock.StatsRepository{}, &mock.SolvedMarkerStore{}, &mock.CacheInvalidator{}, &mock.Sandbox{})
	job := &domain.SubmitJob{SubmissionID: uuid.New(), ProblemID: uuid.New()}

	if err := uc.Execute(context.Background(), job); err == nil {
		t.Fatal("expected error for missing submission")
	}
	if len(subs.Results) != 1 || subs.Results[0].Result.Status != domain.StatusFailed {
		t.Fatalf("expected FAILED write, got %+v", subs.Results)
	}
}

// Test: run jobs execute every testcase and report pass counts.
func TestRunCode_AllTestcases(t *testing.T) {
	polls := 0
	sandbox := &mock.Sandbox{
		PollUntilDoneFn: func(ctx context.Context, token string, maxAttempts int, delay time.Duration) (*executor.ExecutionResult, error) {
			polls++
			if polls == 2 {
				return &executor.ExecutionResult{
					Status: executor.Status{ID: 4, Description: "Wrong Answer"},
					Stdout: "nope\n",
				}, nil
			}
			return acceptedResult("ok\n"), nil
		},
	}

	uc := usecase.NewRunCodeUsecase(sandbox, testLimits(), zap.NewNop())
	job := &domain.RunJob{
		JobID:    uuid.New(),
		Code:     "print('ok')",
		Language: domain.LangPython,
		Testcases: []domain.RunTestcase{
			{Stdin: "a", ExpectedOutput: "ok"},
			{Stdin: "b", ExpectedOutput: "ok"},
			{Stdin: "c", ExpectedOutput: "ok"},
		},
	}

	result, err := uc.Execute(context.Background(), job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalTestcases != 3 {
		t.Errorf("expected 3 testcases, got %d", result.TotalTestcases)
	}
	if result.PassedCount != 2 {
		t.Errorf("expected 2 passed, got %d", result.PassedCount)
	}
	if result.Results[1].Verdict != domain.VerdictWrongAnswer {
		t.Errorf("expected WRONG_ANSWER on second testcase, got %s", result.Results[1].Verdict)
	}
	if result.Results[2].Index != 2 {
		t.Errorf("results must keep input order, got index %d", result.Results[2].Index)
	}
}

// Test: any sandbox failure aborts the whole run job with no partial
// result.
func TestRunCode_AbortsOnFailure(t *testing.T) {
	submitCalls := 0
	sandbox := &mock.Sandbox{
		SubmitFn: func(ctx context.Context, req executor.SubmitRequest) (string, error) {
			submitCalls++
			if submitCalls == 2 {
				return "", domain.ErrRemoteSubmit
			}
			return "tok", nil
		},
	}

	uc := usecase.NewRunCodeUsecase(sandbox, testLimits(), zap.NewNop())
	job := &domain.RunJob{
		JobID:    uuid.New(),
		Code:     "x",
		Language: domain.LangCpp,
		Testcases: []domain.RunTestcase{
			{Stdin: "a", ExpectedOutput: "1"},
			{Stdin: "b", ExpectedOutput: "2"},
			{Stdin: "c", ExpectedOutput: "3"},
		},
	}

	result, err := uc.Execute(context.Background(), job)
	if !errors.Is(err, domain.ErrRemoteSubmit) {
		t.Fatalf("expected ErrRemoteSubmit, got %v", err)
	}
	if result != nil {
		t.Fatalf("run jobs must not return partial results, got %+v", result)
	}
	if submitCalls != 2 {
		t.Errorf("expected abort after second testcase, got %d submits", submitCalls)
	}
}

// Test: submit creates a QUEUED submission and publishes the job.
func TestSubmitCode_Success(t *testing.T) {
	subs := &mock.SubmissionRepository{}
	pub := &qmock.Publisher{}
	uc := usecase.NewSubmitCodeUsecase(subs, pub, zap.NewNop())

	req := &domain.SubmitRequest{
		UserID:    uuid.New(),
		ProblemID: uuid.New(),
		Language:  domain.LangGo,
		Code:      "package main\nfunc main() {}",
	}

	resp, err := uc.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != string(domain.StatusQueued) {
		t.Errorf("expected QUEUED status, got %s", resp.Status)
	}

	if len(subs.Created) != 1 {
		t.Fatalf("expected 1 created submission, got %d", len(subs.Created))
	}
	created := subs.Created[0]
	if created.Verdict != domain.VerdictNotJudged {
		t.Errorf("new submission must start NOT_JUDGED, got %s", created.Verdict)
	}
	if created.ID != resp.SubmissionID {
		t.Errorf("response id %s does not match created id %s", resp.SubmissionID, created.ID)
	}

	if len(pub.SubmitJobs) != 1 {
		t.Fatalf("expected 1 published job, got %d", len(pub.SubmitJobs))
	}
	if pub.SubmitJobs[0].SubmissionID != created.ID {
		t.Errorf("published job carries wrong submission id")
	}
}

// Test: submit request validation.
func TestSubmitCode_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     *domain.SubmitRequest
		wantErr error
	}{
		{
			name:    "unsupported language",
			req:     &domain.SubmitRequest{UserID: uuid.New(), ProblemID: uuid.New(), Language: "brainfuck", Code: "+"},
			wantErr: domain.ErrUnsupportedLanguage,
		},
		{
			name:    "empty code",
			req:     &domain.SubmitRequest{UserID: uuid.New(), ProblemID: uuid.New(), Language: domain.LangPython, Code: "   \n"},
			wantErr: domain.ErrEmptySourceCode,
		},
		{
			name:    "oversized code",
			req:     &domain.SubmitRequest{UserID: uuid.New(), ProblemID: uuid.New(), Language: domain.LangPython, Code: "a" + string(make([]byte, 1<<20))},
			wantErr: domain.ErrPayloadTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := &mock.SubmissionRepository{}
			uc := usecase.NewSubmitCodeUsecase(subs, &qmock.Publisher{}, zap.NewNop())

			_, err := uc.Execute(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(subs.Created) != 0 {
				t.Errorf("invalid request must not create a submission")
			}
		})
	}
}

// Test: a failed publish leaves the submission terminal FAILED so it
// never sits QUEUED forever.
func TestSubmitCode_PublishFailure(t *testing.T) {
	subs := &mock.SubmissionRepository{}
	pub := &qmock.Publisher{
		PublishSubmitFn: func(ctx context.Context, job *domain.SubmitJob) error {
			return errors.New("broker down")
		},
	}
	uc := usecase.NewSubmitCodeUsecase(subs, pub, zap.NewNop())

	req := &domain.SubmitRequest{
		UserID:    uuid.New(),
		ProblemID: uuid.New(),
		Language:  domain.LangPython,
		Code:      "print(1)",
	}

	_, err := uc.Execute(context.Background(), req)
	if !errors.Is(err, domain.ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}
	if len(subs.Results) != 1 {
		t.Fatalf("expected 1 result write, got %d", len(subs.Results))
	}
	if subs.Results[0].Result.Status != domain.StatusFailed {
		t.Errorf("expected FAILED status, got %s", subs.Results[0].Result.Status)
	}
}

// Test: run requests block on the queue reply and pass it through.
func TestRunRequest_Success(t *testing.T) {
	pub := &qmock.Publisher{
		PublishRunAndWaitFn: func(ctx context.Context, job *domain.RunJob, wait time.Duration) (*domain.RunResult, error) {
			return &domain.RunResult{TotalTestcases: 1, PassedCount: 1}, nil
		},
	}
	uc := usecase.NewRunRequestUsecase(pub, time.Second, zap.NewNop())

	req := &domain.RunRequest{
		Language:  domain.LangPython,
		Code:      "print('hi')",
		Testcases: []domain.RunTestcase{{Stdin: "", ExpectedOutput: "hi"}},
	}

	result, err := uc.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PassedCount != 1 {
		t.Errorf("expected 1 passed, got %d", result.PassedCount)
	}
	if len(pub.RunJobs) != 1 {
		t.Fatalf("expected 1 published run job, got %d", len(pub.RunJobs))
	}
	if len(pub.RunJobs[0].Testcases) != 1 {
		t.Errorf("run job lost its testcases")
	}
}

// Test: run request with no testcases is rejected before publishing.
func TestRunRequest_NoTestcases(t *testing.T) {
	pub := &qmock.Publisher{}
	uc := usecase.NewRunRequestUsecase(pub, time.Second, zap.NewNop())

	req := &domain.RunRequest{Language: domain.LangPython, Code: "print(1)"}

	_, err := uc.Execute(context.Background(), req)
	if !errors.Is(err, domain.ErrRunFailed) {
		t.Fatalf("expected ErrRunFailed, got %v", err)
	}
	if len(pub.RunJobs) != 0 {
		t.Errorf("invalid run request must not be published")
	}
}

// Test: fetching a submission maps repository misses to not-found.
func TestGetSubmission(t *testing.T) {
	sub := queuedSubmission(uuid.New(), uuid.New())
	subs := &mock.SubmissionRepository{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
			if id == sub.ID {
				return sub, nil
			}
			return nil, domain.ErrSubmissionNotFound
		},
	}
	uc := usecase.NewGetSubmissionUsecase(subs, zap.NewNop())

	got, err := uc.Execute(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != sub.ID {
		t.Errorf("fetched wrong submission")
	}

	if _, err := uc.Execute(context.Background(), uuid.New()); !errors.Is(err, domain.ErrSubmissionNotFound) {
		t.Fatalf("expected ErrSubmissionNotFound, got %v", err)
	}
}

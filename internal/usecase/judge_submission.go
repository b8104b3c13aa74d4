package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/executor"
	"github.com/arbiter-oj/arbiter/internal/metrics"
	"github.com/arbiter-oj/arbiter/internal/repository"
	"github.com/arbiter-oj/arbiter/internal/verdict"
)

// JudgeSubmissionUsecase judges a graded submission: it runs all stored
// testcases, resolves the aggregate verdict, persists the outcome and
// applies the first-solve accounting side effects. Unlike run jobs, a
// broken testcase is isolated so it cannot prevent judging the rest.
type JudgeSubmissionUsecase struct {
	submissions repository.SubmissionRepository
	testcases   repository.TestcaseRepository
	stats       repository.StatsRepository
	marker      repository.SolvedMarkerStore
	cache       repository.CacheInvalidator
	sandbox     repository.Sandbox
	limits      Limits
	logger      *zap.Logger
}

// NewJudgeSubmissionUsecase creates a new JudgeSubmissionUsecase.
func NewJudgeSubmissionUsecase(
	submissions repository.SubmissionRepository,
	testcases repository.TestcaseRepository,
	stats repository.StatsRepository,
	marker repository.SolvedMarkerStore,
	cache repository.CacheInvalidator,
	sandbox repository.Sandbox,
	limits Limits,
	logger *zap.Logger,
) *JudgeSubmissionUsecase {
	return &JudgeSubmissionUsecase{
		submissions: submissions,
		testcases:   testcases,
		stats:       stats,
		marker:      marker,
		cache:       cache,
		sandbox:     sandbox,
		limits:      limits,
		logger:      logger,
	}
}

// Execute processes one submit job end to end. On any unrecoverable
// error the submission is left FAILED with verdict INTERNAL_ERROR and
// the error is returned so the job is marked failed on the queue.
func (uc *JudgeSubmissionUsecase) Execute(ctx context.Context, job *domain.SubmitJob) error {
	if err := uc.judge(ctx, job); err != nil {
		uc.fail(ctx, job.SubmissionID)
		return err
	}
	return nil
}

func (uc *JudgeSubmissionUsecase) judge(ctx context.Context, job *domain.SubmitJob) error {
	sub, err := uc.submissions.GetByID(ctx, job.SubmissionID)
	if err != nil {
		return fmt.Errorf("load submission: %w", err)
	}

	// MarkRunning refuses terminal submissions, so a redelivered job for an
	// already judged submission is acked here without touching the sandbox
	// or the counters.
	if err := uc.submissions.MarkRunning(ctx, job.SubmissionID); err != nil {
		if errors.Is(err, domain.ErrAlreadyJudged) {
			uc.logger.Warn("Duplicate delivery for judged submission, skipping",
				zap.String("submission_id", job.SubmissionID.String()),
				zap.String("status", string(sub.Status)),
			)
			return nil
		}
		return fmt.Errorf("mark running: %w", err)
	}

	testcases, err := uc.testcases.ListByProblem(ctx, job.ProblemID)
	if err != nil {
		return fmt.Errorf("list testcases: %w", err)
	}
	if len(testcases) == 0 {
		return fmt.Errorf("%w: problem %s", domain.ErrNoTestcases, job.ProblemID)
	}

	results := make([]domain.TestcaseResult, 0, len(testcases))
	totalRuntime := 0
	maxMemory := 0

	for i, tc := range testcases {
		result, err := uc.runTestcase(ctx, job, tc)
		if err != nil {
			// One broken testcase must not prevent judging the rest.
			uc.logger.Error("Testcase execution failed, recording internal error",
				zap.String("submission_id", job.SubmissionID.String()),
				zap.Int("testcase", i),
				zap.Error(err),
			)
			result = domain.TestcaseResult{
				Passed:  false,
				Verdict: domain.VerdictInternalError,
			}
			if !tc.IsHidden {
				result.Input = tc.Stdin
				result.ExpectedOutput = tc.ExpectedOutput
			}
		}

		totalRuntime += result.RuntimeMs
		if result.MemoryKB > maxMemory {
			maxMemory = result.MemoryKB
		}
		results = append(results, result)
	}

	final := verdict.Aggregate(results)

	err = uc.submissions.SetResult(ctx, job.SubmissionID, &domain.SubmissionResult{
		Verdict:         final,
		Status:          domain.StatusCompleted,
		TotalRuntimeMs:  totalRuntime,
		TotalMemoryKB:   maxMemory,
		TestcaseResults: results,
	})
	if err != nil {
		return fmt.Errorf("persist result: %w", err)
	}

	if final == domain.VerdictAccepted {
		if err := uc.recordFirstSolve(ctx, sub); err != nil {
			return err
		}
	}

	if err := uc.stats.IncrementProblemCounters(ctx, job.ProblemID, final == domain.VerdictAccepted); err != nil {
		return fmt.Errorf("problem counters: %w", err)
	}

	if err := uc.cache.InvalidateAggregates(ctx); err != nil {
		return fmt.Errorf("invalidate caches: %w", err)
	}

	metrics.SubmissionsJudged.WithLabelValues(string(final)).Inc()

	uc.logger.Info("Submission judged",
		zap.String("submission_id", job.SubmissionID.String()),
		zap.String("verdict", string(final)),
		zap.Int("testcases", len(results)),
		zap.Int("total_runtime_ms", totalRuntime),
	)
	return nil
}

// runTestcase executes one stored testcase and translates the sandbox
// outcome into a TestcaseResult, stripping input and expected output
// for hidden testcases.
func (uc *JudgeSubmissionUsecase) runTestcase(ctx context.Context, job *domain.SubmitJob, tc domain.Testcase) (domain.TestcaseResult, error) {
	token, err := uc.sandbox.Submit(ctx, executor.SubmitRequest{
		Code:           job.Code,
		Language:       job.Language,
		Stdin:          tc.Stdin,
		ExpectedOutput: tc.ExpectedOutput,
		CPUTimeLimit:   uc.limits.CPUTimeSeconds,
		MemoryLimitKB:  uc.limits.MemoryKB,
	})
	if err != nil {
		return domain.TestcaseResult{}, err
	}

	res, err := uc.sandbox.PollUntilDone(ctx, token, uc.limits.MaxPollAttempts, uc.limits.PollDelay)
	if err != nil {
		return domain.TestcaseResult{}, err
	}

	v := verdict.FromStatusID(res.Status.ID)
	if v == domain.VerdictAccepted && !outputsMatch(res.Stdout, tc.ExpectedOutput) {
		v = domain.VerdictWrongAnswer
	}

	result := domain.TestcaseResult{
		UserOutput: res.Stdout,
		Passed:     v == domain.VerdictAccepted,
		Verdict:    v,
		RuntimeMs:  res.RuntimeMs(),
		MemoryKB:   res.Memory,
	}
	if !tc.IsHidden {
		result.Input = tc.Stdin
		result.ExpectedOutput = tc.ExpectedOutput
	}
	return result, nil
}

// recordFirstSolve increments the user's solved counters exactly once
// per (user, problem), gated by the recent-submission marker, and
// refreshes the marker timestamp in all accepted cases.
func (uc *JudgeSubmissionUsecase) recordFirstSolve(ctx context.Context, sub *domain.Submission) error {
	solvedBefore, err := uc.marker.Exists(ctx, sub.UserID, sub.ProblemID)
	if err != nil {
		return fmt.Errorf("solved marker check: %w", err)
	}

	if !solvedBefore {
		problem, err := uc.stats.GetProblem(ctx, sub.ProblemID)
		if err != nil {
			return fmt.Errorf("load problem: %w", err)
		}
		if err := uc.stats.IncrementSolved(ctx, sub.UserID, problem.Difficulty); err != nil {
			return fmt.Errorf("increment solved: %w", err)
		}
	}

	if err := uc.marker.Upsert(ctx, sub.UserID, sub.ProblemID); err != nil {
		return fmt.Errorf("solved marker upsert: %w", err)
	}
	return nil
}

// fail leaves the submission in FAILED state with an internal-error
// verdict. Best effort: the job error is what propagates.
func (uc *JudgeSubmissionUsecase) fail(ctx context.Context, id uuid.UUID) {
	err := uc.submissions.SetResult(ctx, id, &domain.SubmissionResult{
		Verdict: domain.VerdictInternalError,
		Status:  domain.StatusFailed,
	})
	if err != nil {
		uc.logger.Error("Failed to mark submission FAILED",
			zap.String("submission_id", id.String()),
			zap.Error(err),
		)
	}
}

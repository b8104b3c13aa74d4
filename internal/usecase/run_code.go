package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/executor"
	"github.com/arbiter-oj/arbiter/internal/repository"
	"github.com/arbiter-oj/arbiter/internal/verdict"
)

// Limits are the sandbox resource bounds applied to every testcase run.
type Limits struct {
	CPUTimeSeconds  float64
	MemoryKB        int
	MaxPollAttempts int
	PollDelay       time.Duration
}

// RunCodeUsecase executes an ephemeral run job: every testcase is run
// sequentially against the sandbox, and any per-testcase failure aborts
// the whole job. There is no partial result for a run job.
type RunCodeUsecase struct {
	sandbox repository.Sandbox
	limits  Limits
	logger  *zap.Logger
}

// NewRunCodeUsecase creates a new RunCodeUsecase.
func NewRunCodeUsecase(sandbox repository.Sandbox, limits Limits, logger *zap.Logger) *RunCodeUsecase {
	return &RunCodeUsecase{
		sandbox: sandbox,
		limits:  limits,
		logger:  logger,
	}
}

// Execute runs all testcases of the job in order and returns the
// aggregate result for the producer awaiting this job.
func (uc *RunCodeUsecase) Execute(ctx context.Context, job *domain.RunJob) (*domain.RunResult, error) {
	results := make([]domain.SingleTestcaseResult, 0, len(job.Testcases))
	passed := 0

	for i, tc := range job.Testcases {
		token, err := uc.sandbox.Submit(ctx, executor.SubmitRequest{
			Code:           job.Code,
			Language:       job.Language,
			Stdin:          tc.Stdin,
			ExpectedOutput: tc.ExpectedOutput,
			CPUTimeLimit:   uc.limits.CPUTimeSeconds,
			MemoryLimitKB:  uc.limits.MemoryKB,
		})
		if err != nil {
			uc.logger.Error("Run testcase submit failed",
				zap.String("job_id", job.JobID.String()),
				zap.Int("testcase", i),
				zap.Error(err),
			)
			return nil, err
		}

		res, err := uc.sandbox.PollUntilDone(ctx, token, uc.limits.MaxPollAttempts, uc.limits.PollDelay)
		if err != nil {
			uc.logger.Error("Run testcase poll failed",
				zap.String("job_id", job.JobID.String()),
				zap.Int("testcase", i),
				zap.Error(err),
			)
			return nil, err
		}

		v := verdict.FromStatusID(res.Status.ID)
		if v == domain.VerdictAccepted && !outputsMatch(res.Stdout, tc.ExpectedOutput) {
			v = domain.VerdictWrongAnswer
		}
		if v == domain.VerdictAccepted {
			passed++
		}

		results = append(results, domain.SingleTestcaseResult{
			Index:          i,
			Input:          tc.Stdin,
			ExpectedOutput: tc.ExpectedOutput,
			Stdout:         res.Stdout,
			Stderr:         res.Stderr,
			CompileOutput:  res.CompileOutput,
			Verdict:        v,
			RuntimeMs:      res.RuntimeMs(),
			MemoryKB:       res.Memory,
			ExitCode:       res.ExitCode,
		})
	}

	uc.logger.Info("Run job completed",
		zap.String("job_id", job.JobID.String()),
		zap.Int("total", len(results)),
		zap.Int("passed", passed),
	)

	return &domain.RunResult{
		TotalTestcases: len(results),
		PassedCount:    passed,
		Results:        results,
	}, nil
}

// outputsMatch compares trimmed user output against trimmed expected output.
func outputsMatch(stdout, expected string) bool {
	return strings.TrimSpace(stdout) == strings.TrimSpace(expected)
}

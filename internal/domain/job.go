package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunTestcase is an ad-hoc input/expected-output pair embedded in a RunJob.
type RunTestcase struct {
	Stdin          string `json:"stdin"`
	ExpectedOutput string `json:"expected_output"`
}

// RunJob is an ephemeral "run" job. It is never persisted; the result is
// returned directly to the producer that enqueued it.
type RunJob struct {
	JobID     uuid.UUID     `json:"job_id"`
	Code      string        `json:"code"`
	Language  Language      `json:"language"`
	Testcases []RunTestcase `json:"testcases"`
	CreatedAt time.Time     `json:"created_at"`
}

// SubmitJob is a graded "submit" job referencing a persisted submission.
// Testcases are fetched by the worker, not embedded.
type SubmitJob struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	ProblemID    uuid.UUID `json:"problem_id"`
	Code         string    `json:"code"`
	Language     Language  `json:"language"`
	CreatedAt    time.Time `json:"created_at"`
}

// SingleTestcaseResult is one testcase outcome of a run job.
type SingleTestcaseResult struct {
	Index          int     `json:"index"`
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expected_output"`
	Stdout         string  `json:"stdout"`
	Stderr         string  `json:"stderr,omitempty"`
	CompileOutput  string  `json:"compile_output,omitempty"`
	Verdict        Verdict `json:"verdict"`
	RuntimeMs      int     `json:"runtime_ms"`
	MemoryKB       int     `json:"memory_kb"`
	ExitCode       *int    `json:"exit_code,omitempty"`
}

// RunResult is the aggregate outcome of a run job, returned synchronously
// to whichever producer is awaiting the job.
type RunResult struct {
	TotalTestcases int                    `json:"total_testcases"`
	PassedCount    int                    `json:"passed_count"`
	Results        []SingleTestcaseResult `json:"results"`
}

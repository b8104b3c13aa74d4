package domain

import (
	"time"

	"github.com/google/uuid"
)

// Verdict is the domain-level judgment of a submission or a single testcase.
type Verdict string

const (
	// VerdictNotJudged is the placeholder verdict before the worker runs.
	VerdictNotJudged     Verdict = "NOT_JUDGED"
	VerdictAccepted      Verdict = "ACCEPTED"
	VerdictWrongAnswer   Verdict = "WRONG_ANSWER"
	VerdictTLE           Verdict = "TLE"
	VerdictCompileError  Verdict = "COMPILE_ERROR"
	VerdictRuntimeError  Verdict = "RUNTIME_ERROR"
	VerdictInternalError Verdict = "INTERNAL_ERROR"
	// VerdictPartial means at least one but not all testcases passed.
	VerdictPartial Verdict = "PARTIAL"
)

// SubmissionStatus represents the lifecycle state of a graded submission.
// A submission never re-enters QUEUED once picked up.
type SubmissionStatus string

const (
	StatusQueued    SubmissionStatus = "QUEUED"
	StatusRunning   SubmissionStatus = "RUNNING"
	StatusCompleted SubmissionStatus = "COMPLETED"
	StatusFailed    SubmissionStatus = "FAILED"
)

// IsTerminal returns true if the status represents a final state.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Language represents a supported programming language.
type Language string

const (
	LangCpp        Language = "cpp"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangJava       Language = "java"
	LangGo         Language = "go"
)

// IsValid checks if the language is supported.
func (l Language) IsValid() bool {
	switch l {
	case LangCpp, LangPython, LangJavaScript, LangJava, LangGo:
		return true
	}
	return false
}

// Difficulty is the problem difficulty bucket used for solved counters.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Submission is a graded submission record. It is created QUEUED by the
// producer and mutated only by the judge worker after that (single-writer).
type Submission struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	ProblemID       uuid.UUID        `json:"problem_id"`
	ContestID       *uuid.UUID       `json:"contest_id,omitempty"`
	Code            string           `json:"code"`
	Language        Language         `json:"language"`
	Verdict         Verdict          `json:"verdict"`
	Status          SubmissionStatus `json:"status"`
	TotalRuntimeMs  int              `json:"total_runtime_ms"`
	TotalMemoryKB   int              `json:"total_memory_kb"`
	TestcaseResults []TestcaseResult `json:"testcase_results"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Testcase is an input/expected-output pair attached to a problem.
// Hidden testcases must never leak their input or expected output
// into persisted results.
type Testcase struct {
	ID             uuid.UUID `json:"id"`
	ProblemID      uuid.UUID `json:"problem_id"`
	Stdin          string    `json:"stdin"`
	ExpectedOutput string    `json:"expected_output"`
	IsHidden       bool      `json:"is_hidden"`
	Position       int       `json:"position"`
}

// TestcaseResult is the per-testcase outcome stored on a submission.
// Input and ExpectedOutput are cleared for hidden testcases.
type TestcaseResult struct {
	Input          string  `json:"input,omitempty"`
	ExpectedOutput string  `json:"expected_output,omitempty"`
	UserOutput     string  `json:"user_output,omitempty"`
	Passed         bool    `json:"passed"`
	Verdict        Verdict `json:"verdict"`
	RuntimeMs      int     `json:"runtime_ms"`
	MemoryKB       int     `json:"memory_kb"`
}

// SubmissionResult is the terminal state the judge worker writes back
// onto a submission in one update.
type SubmissionResult struct {
	Verdict         Verdict          `json:"verdict"`
	Status          SubmissionStatus `json:"status"`
	TotalRuntimeMs  int              `json:"total_runtime_ms"`
	TotalMemoryKB   int              `json:"total_memory_kb"`
	TestcaseResults []TestcaseResult `json:"testcase_results"`
}

// Problem carries the fields of a problem the pipeline reads.
type Problem struct {
	ID         uuid.UUID  `json:"id"`
	Difficulty Difficulty `json:"difficulty"`
}

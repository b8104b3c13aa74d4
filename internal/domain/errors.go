package domain

import "errors"

var (
	// ErrUnsupportedLanguage is returned when no runtime-id mapping exists
	// for the requested language. Caller error, never retried.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrRemoteSubmit is returned when submitting to the sandbox fails
	// at the transport or HTTP level.
	ErrRemoteSubmit = errors.New("sandbox submit failed")

	// ErrRemoteFetch is returned when fetching a sandbox result fails.
	ErrRemoteFetch = errors.New("sandbox fetch failed")

	// ErrPollTimeout is returned when a sandbox execution does not reach
	// a terminal status within the poll attempt bound.
	ErrPollTimeout = errors.New("sandbox poll timed out")

	// ErrNoTestcases is returned when a problem has no testcases to judge.
	ErrNoTestcases = errors.New("problem has no testcases")

	// ErrSubmissionNotFound is returned when a submission cannot be found by ID.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrAlreadyJudged is returned when a job references a submission that
	// already reached a terminal state. Deliveries are at-least-once, so a
	// redelivered job must not re-judge.
	ErrAlreadyJudged = errors.New("submission already judged")

	// ErrEmptySourceCode is returned when source code is empty.
	ErrEmptySourceCode = errors.New("source code cannot be empty")

	// ErrPayloadTooLarge is returned when the source code exceeds the size limit.
	ErrPayloadTooLarge = errors.New("source code payload exceeds maximum size (1MB)")

	// ErrPublishFailed is returned when the message broker publish fails.
	ErrPublishFailed = errors.New("failed to publish job to message queue")

	// ErrRunFailed is the generic user-visible error for a failed run job.
	ErrRunFailed = errors.New("failed to run code")
)

package executor

import (
	"strconv"

	"github.com/arbiter-oj/arbiter/internal/domain"
)

// runtimeIDs maps a language to the sandbox service's runtime id.
// The table must match the remote registry exactly.
var runtimeIDs = map[domain.Language]int{
	domain.LangCpp:        54,
	domain.LangPython:     92,
	domain.LangJavaScript: 93,
	domain.LangJava:       91,
	domain.LangGo:         60,
}

// RuntimeID resolves the sandbox runtime id for a language.
func RuntimeID(lang domain.Language) (int, error) {
	id, ok := runtimeIDs[lang]
	if !ok {
		return 0, domain.ErrUnsupportedLanguage
	}
	return id, nil
}

// SubmitRequest describes a single execution to be sent to the sandbox.
type SubmitRequest struct {
	Code           string
	Language       domain.Language
	Stdin          string
	ExpectedOutput string
	CPUTimeLimit   float64 // seconds
	MemoryLimitKB  int
}

// Status is the sandbox's execution status. Ids 1 and 2 mean the
// execution is still queued or processing; anything above is terminal.
type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// ExecutionResult is the decoded result of one sandbox execution.
// Text fields arrive base64-encoded on the wire and are decoded at
// this boundary.
type ExecutionResult struct {
	Token         string `json:"token,omitempty"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
	Message       string `json:"message"`
	Status        Status `json:"status"`
	Time          string `json:"time"`   // seconds, decimal string
	Memory        int    `json:"memory"` // KB
	ExitCode      *int   `json:"exit_code,omitempty"`
}

// RuntimeMs converts the sandbox's decimal-seconds time to milliseconds.
func (r *ExecutionResult) RuntimeMs() int {
	if r.Time == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(r.Time, 64)
	if err != nil {
		return 0
	}
	return int(secs * 1000)
}

// submissionPayload is the wire shape of a sandbox submission.
type submissionPayload struct {
	SourceCode     string  `json:"source_code"`
	LanguageID     int     `json:"language_id"`
	Stdin          string  `json:"stdin,omitempty"`
	ExpectedOutput string  `json:"expected_output,omitempty"`
	CPUTimeLimit   float64 `json:"cpu_time_limit,omitempty"`
	MemoryLimit    int     `json:"memory_limit,omitempty"`
}

// tokenResponse is the sandbox's acknowledgment of a submission.
type tokenResponse struct {
	Token string `json:"token"`
}

// batchPayload wraps submissions for the batch endpoint.
type batchPayload struct {
	Submissions []submissionPayload `json:"submissions"`
}

// batchResultsEnvelope is the wrapped form of a batch results response.
// Some sandbox deployments return a bare array instead.
type batchResultsEnvelope struct {
	Submissions []ExecutionResult `json:"submissions"`
}

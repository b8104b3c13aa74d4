// Package verdict maps raw sandbox status codes to domain verdicts and
// aggregates per-testcase verdicts into a final one.
package verdict

import "github.com/arbiter-oj/arbiter/internal/domain"

// Sandbox status ids. A status above StatusProcessing is terminal.
const (
	StatusInQueue      = 1
	StatusProcessing   = 2
	StatusAccepted     = 3
	StatusWrongAnswer  = 4
	StatusTLE          = 5
	StatusCompileError = 6
)

// FromStatusID maps a raw sandbox status id to a domain verdict.
// Ids 7 through 12 are the sandbox's runtime-error family (SIGSEGV,
// SIGXFSZ, SIGFPE, SIGABRT, NZEC, other). Anything unmapped is treated
// as an internal error.
func FromStatusID(id int) domain.Verdict {
	switch {
	case id == StatusAccepted:
		return domain.VerdictAccepted
	case id == StatusWrongAnswer:
		return domain.VerdictWrongAnswer
	case id == StatusTLE:
		return domain.VerdictTLE
	case id == StatusCompileError:
		return domain.VerdictCompileError
	case id >= 7 && id <= 12:
		return domain.VerdictRuntimeError
	default:
		return domain.VerdictInternalError
	}
}

// IsTerminalStatus reports whether the sandbox status id is final.
func IsTerminalStatus(id int) bool {
	return id > StatusProcessing
}

// Aggregate resolves a final verdict from ordered per-testcase results:
// all passed means ACCEPTED, some passed means PARTIAL, and none passed
// means the verdict of the first failing testcase in input order.
func Aggregate(results []domain.TestcaseResult) domain.Verdict {
	if len(results) == 0 {
		return domain.VerdictInternalError
	}

	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}

	switch {
	case passed == len(results):
		return domain.VerdictAccepted
	case passed > 0:
		return domain.VerdictPartial
	default:
		return results[0].Verdict
	}
}

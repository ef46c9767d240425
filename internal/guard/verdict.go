// Package guard implements the four guardrail checkpoints around an
// assessment run: input validation, tool-call (search query) validation,
// output validation, and the shared sanitization they rely on.
//
// Each stage is a pure function over its input plus the compiled pattern
// sets; stages never share mutable state. Budget enforcement lives in
// internal/session and is consulted by the run coordinator between stages.
package guard

// Stage identifies which checkpoint produced a verdict.
type Stage string

const (
	StageInput  Stage = "input"
	StageTool   Stage = "tool"
	StageOutput Stage = "output"
	StageBudget Stage = "budget"
)

// Outcome is the decision of a guardrail stage.
type Outcome string

const (
	OutcomeAllow    Outcome = "allow"
	OutcomeReject   Outcome = "reject"
	OutcomeSanitize Outcome = "sanitize"
)

// Reason codes surfaced to callers. Pattern names and denylist contents are
// never included in caller-facing reasons.
const (
	ReasonEmptyInput           = "EmptyInput"
	ReasonInputTooLong         = "InputTooLong"
	ReasonInjectionPattern     = "InjectionPatternDetected"
	ReasonProhibitedTerm       = "ProhibitedTerm"
	ReasonQueryTooLong         = "QueryTooLong"
	ReasonEmptyQuery           = "EmptyQuery"
	ReasonSearchBudgetExceeded = "SearchBudgetExceeded"
	ReasonMalformedOutput      = "MalformedOutput"
	ReasonUnsafeOutput         = "UnsafeOutput"
)

// Verdict is the result of a single guardrail invocation. Ephemeral:
// produced and consumed within one check, persisted only to the audit log.
type Verdict struct {
	Stage     Stage
	Outcome   Outcome
	Reason    string
	Sanitized string // set when Outcome is OutcomeSanitize
}

// Allowed reports whether the checked value may proceed (possibly sanitized).
func (v Verdict) Allowed() bool {
	return v.Outcome != OutcomeReject
}

// Value returns the text to use downstream: the sanitized form when the
// stage rewrote it, otherwise the original.
func (v Verdict) Value(original string) string {
	if v.Outcome == OutcomeSanitize {
		return v.Sanitized
	}
	return original
}

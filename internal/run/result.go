// Package run owns one end-to-end assessment execution: the state machine
// that applies input guardrails, drives the agent loop under session
// budgets, mediates tool calls through the search gateway, and validates
// output before anything reaches the caller.
package run

import (
	"github.com/aivet-io/aivet/internal/guard"
	"github.com/aivet-io/aivet/internal/search"
)

// State of an assessment run.
type State string

const (
	StateCreated          State = "created"
	StateInputValidated   State = "input_validated"
	StateResearching      State = "researching"
	StateOutputValidating State = "output_validating"
	StateCompleted        State = "completed"
	StateRejected         State = "rejected"
	StateFailed           State = "failed"
)

// SafeFailureMessage is the fixed text returned when output validation
// rejects the agent's report. The offending raw text is never forwarded.
const SafeFailureMessage = "The assessment could not be completed safely. No report is available for this request."

// Request is one raw assessment request. Immutable once accepted; consumed
// exactly once.
type Request struct {
	AITool    string `json:"ai_tool"`
	Identity  string `json:"identity"`
	SessionID string `json:"session_id,omitempty"`
}

// Citations groups collected evidence by trust tier, each tier sorted for
// citation (Primary first overall, alphabetical within tier).
type Citations struct {
	Primary   []search.Result `json:"primary"`
	Secondary []search.Result `json:"secondary"`
}

// Result is a completed assessment.
type Result struct {
	VerdictText        string    `json:"verdict_text"`
	RiskClassification string    `json:"risk_classification"`
	Findings           string    `json:"findings"`
	Report             string    `json:"report"`
	Citations          Citations `json:"citations"`
}

// Rejection reports a guardrail-driven refusal. A policy outcome, reported
// distinctly from infrastructure failure.
type Rejection struct {
	Stage   guard.Stage `json:"stage"`
	Reason  string      `json:"reason"`
	Message string      `json:"message"`
}

// Failure reports an infrastructure fault or exhausted budget. Citations
// carries whatever evidence was safely gathered before the cut-off.
type Failure struct {
	Reason    string    `json:"reason"`
	Citations Citations `json:"citations,omitempty"`
}

// Outcome is the terminal result of a run: exactly one of Result,
// Rejection, or Failure is set, matching State.
type Outcome struct {
	RunID     string     `json:"run_id"`
	SessionID string     `json:"session_id"`
	State     State      `json:"state"`
	Result    *Result    `json:"result,omitempty"`
	Rejection *Rejection `json:"rejection,omitempty"`
	Failure   *Failure   `json:"failure,omitempty"`
}

// buildCitations deduplicates collected results by URL and splits them by
// tier in citation order.
func buildCitations(collected []search.Result) Citations {
	seen := make(map[string]bool, len(collected))
	var unique []search.Result
	for _, r := range collected {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		unique = append(unique, r)
	}

	var c Citations
	for _, r := range search.SortForCitation(unique) {
		if r.Tier == search.TierPrimary {
			c.Primary = append(c.Primary, r)
		} else {
			c.Secondary = append(c.Secondary, r)
		}
	}
	return c
}

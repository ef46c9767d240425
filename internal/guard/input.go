package guard

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Guard evaluates the input, tool-call, and output checkpoints against one
// compiled rule set. Safe for concurrent use; all state is read-only.
type Guard struct {
	rules         *RuleSet
	maxInputChars int
	maxQueryChars int
}

// New creates a Guard from a compiled rule set and the configured limits.
func New(rules *RuleSet, maxInputChars, maxQueryChars int) *Guard {
	return &Guard{
		rules:         rules,
		maxInputChars: maxInputChars,
		maxQueryChars: maxQueryChars,
	}
}

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// sanitize trims, strips control characters, and collapses runs of
// whitespace to a single space.
func sanitize(s string) string {
	s = controlChars.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CheckInput validates a raw assessment request before the agent sees it.
// The request is rejected when empty, over the length limit, matching an
// injection heuristic, or containing a prohibited term. Otherwise the
// sanitized form is returned; OutcomeAllow means no rewrite was needed.
//
// Pattern matching runs on the sanitized text: stripping control characters
// first means a phrase split by them cannot slip past the patterns only to
// be reassembled by the sanitizer on the allow path.
func (g *Guard) CheckInput(input string) Verdict {
	clean := sanitize(input)
	if clean == "" {
		return Verdict{Stage: StageInput, Outcome: OutcomeReject, Reason: ReasonEmptyInput}
	}
	if len(input) > g.maxInputChars {
		return Verdict{Stage: StageInput, Outcome: OutcomeReject, Reason: ReasonInputTooLong}
	}

	lower := strings.ToLower(clean)
	if name := g.rules.matchInjection(lower); name != "" {
		log.Warn().Str("pattern", name).Msg("input_injection_rejected")
		return Verdict{Stage: StageInput, Outcome: OutcomeReject, Reason: ReasonInjectionPattern}
	}
	if term := g.rules.matchDenyTerm(lower); term != "" {
		log.Warn().Str("term", term).Msg("input_prohibited_term_rejected")
		return Verdict{Stage: StageInput, Outcome: OutcomeReject, Reason: ReasonProhibitedTerm}
	}

	if clean == input {
		return Verdict{Stage: StageInput, Outcome: OutcomeAllow}
	}
	return Verdict{Stage: StageInput, Outcome: OutcomeSanitize, Sanitized: clean}
}

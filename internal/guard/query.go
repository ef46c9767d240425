package guard

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// CheckQuery validates an agent-issued search query before dispatch. The
// agent itself can be manipulated into issuing unsafe queries, so the same
// injection and denylist checks as input validation apply. A rejection here
// is not fatal for the run: the coordinator turns it into a structured
// refusal the agent can reason about.
//
// As in CheckInput, matching runs on the sanitized text so control
// characters cannot split a denylisted or injected phrase past the patterns.
func (g *Guard) CheckQuery(query string) Verdict {
	clean := sanitize(query)
	if clean == "" {
		return Verdict{Stage: StageTool, Outcome: OutcomeReject, Reason: ReasonEmptyQuery}
	}
	if len(query) > g.maxQueryChars {
		return Verdict{Stage: StageTool, Outcome: OutcomeReject, Reason: ReasonQueryTooLong}
	}

	lower := strings.ToLower(clean)
	if name := g.rules.matchInjection(lower); name != "" {
		log.Warn().Str("pattern", name).Msg("query_injection_rejected")
		return Verdict{Stage: StageTool, Outcome: OutcomeReject, Reason: ReasonInjectionPattern}
	}
	if term := g.rules.matchDenyTerm(lower); term != "" {
		log.Warn().Str("term", term).Msg("query_prohibited_term_rejected")
		return Verdict{Stage: StageTool, Outcome: OutcomeReject, Reason: ReasonProhibitedTerm}
	}

	if !g.rules.hasAdvisoryTerm(lower) {
		log.Warn().Msg("query_not_compliance_related")
	}

	if clean == query {
		return Verdict{Stage: StageTool, Outcome: OutcomeAllow}
	}
	return Verdict{Stage: StageTool, Outcome: OutcomeSanitize, Sanitized: clean}
}

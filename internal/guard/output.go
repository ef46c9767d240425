package guard

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// RedactionPlaceholder replaces spans removed from agent output.
const RedactionPlaceholder = "[REDACTED]"

// Required report sections. The agent is instructed to produce exactly this
// structure; output missing any of them is malformed and never forwarded.
var requiredSections = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsummary\s+verdict\b`),
	regexp.MustCompile(`(?i)\bcompliance\s+findings\b`),
	regexp.MustCompile(`(?i)\bcitations\b`),
}

var (
	// Fenced code blocks have no place in a compliance report; the agent is
	// told not to emit executable content.
	codeFence = regexp.MustCompile("(?s)```.*?```")

	// URL spans are exempt from PII scanning so citation links survive
	// redaction (e.g. mailto-less contact pages with encoded addresses).
	urlSpan = regexp.MustCompile(`https?://[^\s)\]>]+`)
)

// CheckOutput validates the agent's final report before it reaches the
// caller. High-confidence harmful content rejects the output outright;
// structural gaps reject with MalformedOutput; PII and embedded code blocks
// are redacted in place. The caller must never forward the raw text on a
// Reject verdict.
func (g *Guard) CheckOutput(text string) Verdict {
	if strings.TrimSpace(text) == "" {
		return Verdict{Stage: StageOutput, Outcome: OutcomeReject, Reason: ReasonMalformedOutput}
	}

	for _, p := range g.rules.Harmful {
		if p.Regexp.MatchString(text) {
			log.Warn().Str("pattern", p.Name).Msg("output_harmful_content_rejected")
			return Verdict{Stage: StageOutput, Outcome: OutcomeReject, Reason: ReasonUnsafeOutput}
		}
	}

	for _, section := range requiredSections {
		if !section.MatchString(text) {
			return Verdict{Stage: StageOutput, Outcome: OutcomeReject, Reason: ReasonMalformedOutput}
		}
	}

	redacted, changed := g.redact(text)
	if !changed {
		return Verdict{Stage: StageOutput, Outcome: OutcomeAllow}
	}
	return Verdict{Stage: StageOutput, Outcome: OutcomeSanitize, Sanitized: redacted}
}

// redact removes fenced code blocks and PII occurring outside URL spans.
func (g *Guard) redact(text string) (string, bool) {
	changed := false

	if codeFence.MatchString(text) {
		text = codeFence.ReplaceAllString(text, RedactionPlaceholder)
		changed = true
		log.Info().Msg("output_code_block_redacted")
	}

	urls := urlSpan.FindAllStringIndex(text, -1)
	for _, p := range g.rules.PII {
		matches := p.Regexp.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}
		// Replace from the end so earlier indices stay valid.
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			if insideAny(m, urls) {
				continue
			}
			text = text[:m[0]] + RedactionPlaceholder + text[m[1]:]
			changed = true
			log.Info().Str("pii_type", p.Type).Msg("output_pii_redacted")
		}
		// Recompute URL spans after edits shifted offsets.
		urls = urlSpan.FindAllStringIndex(text, -1)
	}

	return text, changed
}

// insideAny reports whether span m lies entirely within any of the spans.
func insideAny(m []int, spans [][]int) bool {
	for _, s := range spans {
		if m[0] >= s[0] && m[1] <= s[1] {
			return true
		}
	}
	return false
}

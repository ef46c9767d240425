package run

import (
	"regexp"
	"strings"
)

var (
	reVerdictHead   = regexp.MustCompile(`(?i)summary\s+verdict`)
	reFindingsHead  = regexp.MustCompile(`(?i)compliance\s+findings`)
	reCitationsHead = regexp.MustCompile(`(?i)citations`)

	reRiskLevel = regexp.MustCompile(`(?i)\b(unacceptable|high|limited|minimal)\b`)
)

// parseReport slices the structured fields out of a validated report. The
// output guard has already confirmed the section headings exist, so this is
// best-effort extraction, not re-validation.
func parseReport(report string) (verdict, risk, findings string) {
	verdictAt := headingSpan(reVerdictHead, report)
	findingsAt := headingSpan(reFindingsHead, report)
	citationsAt := headingSpan(reCitationsHead, report)

	verdict = sliceSection(report, verdictAt, firstOf(findingsAt, citationsAt))
	findings = sliceSection(report, findingsAt, citationsAt)

	scope := findings
	if scope == "" {
		scope = report
	}
	if lvl := reRiskLevel.FindString(scope); lvl != "" {
		risk = normalizeRisk(lvl)
	}
	return verdict, risk, findings
}

// headingSpan returns [start, end] of the first heading match, or nil.
func headingSpan(re *regexp.Regexp, s string) []int {
	return re.FindStringIndex(s)
}

// sliceSection returns the text between the end of one heading's line and
// the line containing the next heading.
func sliceSection(report string, from, until []int) string {
	if from == nil {
		return ""
	}
	start := from[1]
	if nl := strings.IndexByte(report[start:], '\n'); nl >= 0 {
		start += nl + 1
	}
	end := len(report)
	if until != nil && until[0] > start {
		// Back up to the start of the heading's line.
		end = until[0]
		if nl := strings.LastIndexByte(report[:end], '\n'); nl >= 0 {
			end = nl
		}
	}
	if start >= end {
		return ""
	}
	return strings.TrimSpace(report[start:end])
}

func firstOf(spans ...[]int) []int {
	var best []int
	for _, s := range spans {
		if s == nil {
			continue
		}
		if best == nil || s[0] < best[0] {
			best = s
		}
	}
	return best
}

func normalizeRisk(level string) string {
	switch strings.ToLower(level) {
	case "unacceptable":
		return "Unacceptable"
	case "high":
		return "High"
	case "limited":
		return "Limited"
	default:
		return "Minimal"
	}
}

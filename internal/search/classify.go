package search

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aivet-io/aivet/patterns"
)

// Tier is the trust classification of a search result.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
)

// Result is a classified search result. Immutable once produced.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Tier    Tier   `json:"source_tier"`
}

type domainsFile struct {
	Domains []string `yaml:"domains"`
}

// LoadPrimaryDomains returns the embedded primary-domain allowlist merged
// with operator additions, lowercased and deduplicated.
func LoadPrimaryDomains(extra []string) ([]string, error) {
	var df domainsFile
	if err := yaml.Unmarshal(patterns.PrimaryDomainsYAML(), &df); err != nil {
		return nil, fmt.Errorf("parsing embedded primary domains: %w", err)
	}
	seen := make(map[string]bool)
	var out []string
	for _, d := range append(df.Domains, extra...) {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out, nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Classifier assigns trust tiers from URL provenance. Classification is a
// pure function of the URL against the allowlist and the assessed tool's
// name: it must not depend on result order or on which backend produced the
// result.
type Classifier struct {
	allow []string // registrable domains, lowercase
}

// NewClassifier builds a classifier over the given primary-domain allowlist.
func NewClassifier(allowlist []string) *Classifier {
	allow := make([]string, 0, len(allowlist))
	for _, d := range allowlist {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			allow = append(allow, d)
		}
	}
	return &Classifier{allow: allow}
}

// Classify returns TierPrimary when the URL host belongs to an allowlisted
// domain or its registrable domain carries the assessed tool's normalized
// name (e.g. tool "Notion AI" -> label "notionai" or "notion"),
// TierSecondary otherwise. Unparseable URLs are Secondary.
func (c *Classifier) Classify(toolName, rawURL string) Tier {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return TierSecondary
	}
	host := strings.ToLower(u.Hostname())

	for _, d := range c.allow {
		if hostMatches(host, d) {
			return TierPrimary
		}
	}

	if base := baseLabel(host); base != "" {
		for _, label := range toolLabels(toolName) {
			if base == label {
				return TierPrimary
			}
		}
	}
	return TierSecondary
}

// baseLabel returns the leftmost label of the host's registrable domain,
// approximated as the second-to-last label ("chatgpt" for subdomain hosts
// of chatgpt.com). Only this label may carry the tool's name: a lookalike
// subdomain like chatgpt.fake-reviews.example.com stays Secondary.
func baseLabel(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return ""
	}
	return labels[len(labels)-2]
}

// hostMatches reports whether host equals domain or is a subdomain of it.
// Suffix matching is anchored at a label boundary so "notopenai.com" never
// matches "openai.com".
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// toolLabels derives candidate host labels from the assessed tool's name:
// the full normalized name and its first word (vendors often use the brand's
// first word as their domain).
func toolLabels(toolName string) []string {
	lower := strings.ToLower(strings.TrimSpace(toolName))
	if lower == "" {
		return nil
	}
	full := nonAlnum.ReplaceAllString(lower, "")
	first := nonAlnum.ReplaceAllString(strings.Fields(lower)[0], "")
	if full == "" {
		return nil
	}
	if first == full || first == "" {
		return []string{full}
	}
	return []string{full, first}
}

// SortForCitation orders results Primary before Secondary, alphabetically by
// title within each tier. The gateway itself returns backend order; this
// sort happens at the point of use (report citations).
func SortForCitation(results []Result) []Result {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Tier != sorted[j].Tier {
			return sorted[i].Tier == TierPrimary
		}
		return strings.ToLower(sorted[i].Title) < strings.ToLower(sorted[j].Title)
	})
	return sorted
}

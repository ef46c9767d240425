package guard

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aivet-io/aivet/patterns"
)

// injectionFile is the YAML structure of patterns/injection.yaml.
type injectionFile struct {
	Patterns []patternConfig `yaml:"patterns"`
}

type patternConfig struct {
	Name     string `yaml:"name"`
	Regex    string `yaml:"regex"`
	Severity int    `yaml:"severity,omitempty"`
	Type     string `yaml:"type,omitempty"`
}

// blockedTermsFile is the YAML structure of patterns/blocked_terms.yaml.
type blockedTermsFile struct {
	DenyList      []string `yaml:"deny_list"`
	AdvisoryTerms []string `yaml:"advisory_terms"`
}

// piiFile is the YAML structure of patterns/pii.yaml.
type piiFile struct {
	Patterns []patternConfig `yaml:"patterns"`
	Harmful  []patternConfig `yaml:"harmful"`
}

// compiledPattern is a named, ready-to-use detection pattern.
type compiledPattern struct {
	Name     string
	Type     string
	Severity int
	Regexp   *regexp.Regexp
}

// RuleSet holds all compiled guardrail patterns. Built once at startup and
// shared read-only across stages and runs.
type RuleSet struct {
	Injection     []compiledPattern
	DenyTerms     []string // lowercase
	AdvisoryTerms []string // lowercase
	PII           []compiledPattern
	Harmful       []compiledPattern
}

// LoadRules compiles the embedded default pattern sets, then merges an
// optional override file on top. An override file replaces a section only
// when it provides one, so partial overrides are safe.
func LoadRules(overridePath string) (*RuleSet, error) {
	rs, err := defaultRules()
	if err != nil {
		return nil, err
	}
	if overridePath == "" {
		return rs, nil
	}

	data, err := os.ReadFile(overridePath)
	if err != nil {
		if os.IsNotExist(err) {
			return rs, nil
		}
		return nil, fmt.Errorf("reading pattern override file %s: %w", overridePath, err)
	}
	if err := rs.applyOverride(data); err != nil {
		return nil, fmt.Errorf("applying pattern override file %s: %w", overridePath, err)
	}
	return rs, nil
}

func defaultRules() (*RuleSet, error) {
	var inj injectionFile
	if err := yaml.Unmarshal(patterns.InjectionYAML(), &inj); err != nil {
		return nil, fmt.Errorf("parsing embedded injection patterns: %w", err)
	}
	var terms blockedTermsFile
	if err := yaml.Unmarshal(patterns.BlockedTermsYAML(), &terms); err != nil {
		return nil, fmt.Errorf("parsing embedded blocked terms: %w", err)
	}
	var pii piiFile
	if err := yaml.Unmarshal(patterns.PIIYAML(), &pii); err != nil {
		return nil, fmt.Errorf("parsing embedded PII patterns: %w", err)
	}

	rs := &RuleSet{
		DenyTerms:     lowerAll(terms.DenyList),
		AdvisoryTerms: lowerAll(terms.AdvisoryTerms),
	}
	var err error
	if rs.Injection, err = compileAll(inj.Patterns); err != nil {
		return nil, fmt.Errorf("compiling injection patterns: %w", err)
	}
	if rs.PII, err = compileAll(pii.Patterns); err != nil {
		return nil, fmt.Errorf("compiling PII patterns: %w", err)
	}
	if rs.Harmful, err = compileAll(pii.Harmful); err != nil {
		return nil, fmt.Errorf("compiling harmful-content patterns: %w", err)
	}
	return rs, nil
}

// overrideFile allows a single YAML file to override any pattern section.
type overrideFile struct {
	Injection     []patternConfig `yaml:"injection,omitempty"`
	DenyList      []string        `yaml:"deny_list,omitempty"`
	AdvisoryTerms []string        `yaml:"advisory_terms,omitempty"`
	PII           []patternConfig `yaml:"pii,omitempty"`
	Harmful       []patternConfig `yaml:"harmful,omitempty"`
}

func (rs *RuleSet) applyOverride(data []byte) error {
	var of overrideFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return fmt.Errorf("parsing override YAML: %w", err)
	}
	var err error
	if len(of.Injection) > 0 {
		if rs.Injection, err = compileAll(of.Injection); err != nil {
			return err
		}
	}
	if len(of.DenyList) > 0 {
		rs.DenyTerms = lowerAll(of.DenyList)
	}
	if len(of.AdvisoryTerms) > 0 {
		rs.AdvisoryTerms = lowerAll(of.AdvisoryTerms)
	}
	if len(of.PII) > 0 {
		if rs.PII, err = compileAll(of.PII); err != nil {
			return err
		}
	}
	if len(of.Harmful) > 0 {
		if rs.Harmful, err = compileAll(of.Harmful); err != nil {
			return err
		}
	}
	return nil
}

func compileAll(configs []patternConfig) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(configs))
	for _, pc := range configs {
		re, err := regexp.Compile(pc.Regex)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", pc.Name, err)
		}
		compiled = append(compiled, compiledPattern{
			Name:     pc.Name,
			Type:     pc.Type,
			Severity: pc.Severity,
			Regexp:   re,
		})
	}
	return compiled, nil
}

func lowerAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// matchInjection returns the first matching injection pattern name, or "".
func (rs *RuleSet) matchInjection(text string) string {
	for _, p := range rs.Injection {
		if p.Regexp.MatchString(text) {
			return p.Name
		}
	}
	return ""
}

// matchDenyTerm returns the first denylisted term contained in the
// lowercased text, or "".
func (rs *RuleSet) matchDenyTerm(lower string) string {
	for _, term := range rs.DenyTerms {
		if strings.Contains(lower, term) {
			return term
		}
	}
	return ""
}

// hasAdvisoryTerm reports whether the lowercased text contains at least one
// on-topic compliance term.
func (rs *RuleSet) hasAdvisoryTerm(lower string) bool {
	for _, term := range rs.AdvisoryTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

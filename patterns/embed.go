// Package patterns provides embedded default guardrail pattern definitions.
// YAML files in this directory define the injection heuristics, blocked search
// terms, primary-source domains, and PII redaction patterns compiled by
// internal/guard and internal/search at startup.
package patterns

import _ "embed"

//go:embed injection.yaml
var injectionYAML []byte

//go:embed blocked_terms.yaml
var blockedTermsYAML []byte

//go:embed primary_domains.yaml
var primaryDomainsYAML []byte

//go:embed pii.yaml
var piiYAML []byte

// InjectionYAML returns the embedded prompt-injection pattern definitions.
func InjectionYAML() []byte { return injectionYAML }

// BlockedTermsYAML returns the embedded blocked search term definitions.
func BlockedTermsYAML() []byte { return blockedTermsYAML }

// PrimaryDomainsYAML returns the embedded primary-source domain allowlist.
func PrimaryDomainsYAML() []byte { return primaryDomainsYAML }

// PIIYAML returns the embedded PII redaction pattern definitions.
func PIIYAML() []byte { return piiYAML }

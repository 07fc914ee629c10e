package analyzer

import (
	"fmt"
	"strings"

	"github.com/olegiv/seclog-ai-go/internal/model"
)

// FilterPolicy selects which entries count as security-critical.
type FilterPolicy string

const (
	// PolicySeverity keeps HIGH entries only. This is the canonical rule.
	PolicySeverity FilterPolicy = "severity"

	// PolicyKeyword keeps entries whose message contains "failed",
	// whatever their severity. Kept for compatibility with older reports;
	// it misses "unauthorized" events that PolicySeverity reports.
	PolicyKeyword FilterPolicy = "keyword"
)

// legacyKeyword is the only keyword PolicyKeyword looks for.
const legacyKeyword = "failed"

// ValidFilterPolicies returns the accepted policy names.
func ValidFilterPolicies() []string {
	return []string{string(PolicySeverity), string(PolicyKeyword)}
}

// ParseFilterPolicy converts a config string to a FilterPolicy.
// An empty string selects PolicySeverity.
func ParseFilterPolicy(s string) (FilterPolicy, error) {
	switch FilterPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicySeverity:
		return PolicySeverity, nil
	case PolicyKeyword:
		return PolicyKeyword, nil
	default:
		return "", fmt.Errorf("invalid filter policy: %q (valid policies: %v)", s, ValidFilterPolicies())
	}
}

// IsLegacy reports whether the policy is kept only for compatibility.
func (p FilterPolicy) IsLegacy() bool {
	return p == PolicyKeyword
}

// Qualifies reports whether a single entry passes the policy.
func (p FilterPolicy) Qualifies(e model.LogEntry) bool {
	switch p {
	case PolicyKeyword:
		return strings.Contains(strings.ToLower(e.Message), legacyKeyword)
	default:
		return e.Severity == model.SeverityHigh
	}
}

// Filter returns the entries that pass the policy, in input order.
// The input slice is not modified.
func Filter(entries []model.LogEntry, policy FilterPolicy) []model.LogEntry {
	filtered := make([]model.LogEntry, 0, len(entries))
	for _, e := range entries {
		if policy.Qualifies(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

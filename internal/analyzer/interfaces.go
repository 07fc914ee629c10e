// Package analyzer decides how security-relevant a log entry is.
// It holds the severity classifiers and the filter policies that select the
// entries worth reporting.
package analyzer

import (
	"strings"

	"github.com/olegiv/seclog-ai-go/internal/model"
)

// Classifier assigns a severity to a log message.
// Implementations receive the message already lower-cased and must be pure:
// the same input always yields the same severity.
type Classifier interface {
	// Name returns the registry identifier (e.g., "keyword").
	Name() string

	// Classify returns the severity for a lower-cased message.
	Classify(lowerMessage string) model.Severity
}

// Classify case-folds message and runs it through c.
// The caller keeps the original casing for storage.
func Classify(c Classifier, message string) model.Severity {
	return c.Classify(strings.ToLower(message))
}

// Compile-time interface check
var _ Classifier = (*KeywordClassifier)(nil)

// KeywordClassifier is the substring heuristic used by the reporter:
// "failed" or "unauthorized" is HIGH, "suspicious" is MEDIUM, anything else LOW.
// HIGH keywords win over MEDIUM ones.
type KeywordClassifier struct {
	high   []string
	medium []string
}

// Default keyword sets.
var (
	DefaultHighKeywords   = []string{"failed", "unauthorized"}
	DefaultMediumKeywords = []string{"suspicious"}
)

// NewKeywordClassifier creates a classifier with the default keyword sets.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		high:   DefaultHighKeywords,
		medium: DefaultMediumKeywords,
	}
}

// Name returns "keyword".
func (k *KeywordClassifier) Name() string {
	return "keyword"
}

// Classify implements Classifier.
func (k *KeywordClassifier) Classify(lowerMessage string) model.Severity {
	if containsAny(lowerMessage, k.high) {
		return model.SeverityHigh
	}
	if containsAny(lowerMessage, k.medium) {
		return model.SeverityMedium
	}
	return model.SeverityLow
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

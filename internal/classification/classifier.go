// Package classification maps raw failure reasons from upstream
// interfaces to an exception category and severity. Classification is a
// pure keyword match over ordered rule buckets; the tables are
// configurable so operators can extend them without a deploy.
package classification

import (
	"strings"

	"github.com/biopro/interface-exception-collector/internal/domain/exception"
)

// CategoryRule is one ordered bucket: the first bucket with a matching
// keyword wins.
type CategoryRule struct {
	Category exception.Category
	Keywords []string
}

// SeverityRule buckets severity independently of category.
type SeverityRule struct {
	Severity exception.Severity
	Keywords []string
}

// RuleTable drives classification. Rules are evaluated in order.
type RuleTable struct {
	CategoryRules []CategoryRule
	SeverityRules []SeverityRule
}

// DefaultRuleTable returns the contractual default keyword buckets.
func DefaultRuleTable() RuleTable {
	return RuleTable{
		CategoryRules: []CategoryRule{
			{exception.CategoryBusinessRule, []string{"business rule", "duplicate", "already exists"}},
			{exception.CategoryValidation, []string{"validation", "invalid", "format"}},
			{exception.CategoryTimeout, []string{"timeout", "timed out"}},
			{exception.CategoryNetworkError, []string{"network", "connection"}},
			{exception.CategoryAuthentication, []string{"authentication", "unauthorized"}},
			{exception.CategoryAuthorization, []string{"authorization", "forbidden"}},
			{exception.CategoryExternalService, []string{"external service", "unavailable"}},
		},
		SeverityRules: []SeverityRule{
			{exception.SeverityCritical, []string{"critical", "system error", "data corruption"}},
			{exception.SeverityHigh, []string{"timeout", "timed out", "network", "connection", "external service", "unavailable"}},
			{exception.SeverityMedium, []string{"validation", "invalid", "format", "business rule", "duplicate", "already exists"}},
		},
	}
}

// Classifier classifies failure reasons. It is pure and deterministic:
// no I/O, no state, identical input always yields identical output.
type Classifier struct {
	table RuleTable
}

// New creates a classifier backed by the given rule table. Empty table
// sections fall back to the defaults.
func New(table RuleTable) *Classifier {
	def := DefaultRuleTable()
	if len(table.CategoryRules) == 0 {
		table.CategoryRules = def.CategoryRules
	}
	if len(table.SeverityRules) == 0 {
		table.SeverityRules = def.SeverityRules
	}
	return &Classifier{table: table}
}

// NewDefault creates a classifier with the default rule table.
func NewDefault() *Classifier {
	return New(DefaultRuleTable())
}

// TableWithOverrides replaces the keyword lists of named buckets while
// keeping the default bucket order, so evaluation stays deterministic.
// Keys are category/severity names (e.g. "BUSINESS_RULE", "HIGH");
// unknown names are ignored.
func TableWithOverrides(categoryRules, severityRules map[string][]string) RuleTable {
	table := DefaultRuleTable()
	for i, rule := range table.CategoryRules {
		if kws, ok := categoryRules[string(rule.Category)]; ok {
			table.CategoryRules[i].Keywords = kws
		}
	}
	for i, rule := range table.SeverityRules {
		if kws, ok := severityRules[string(rule.Severity)]; ok {
			table.SeverityRules[i].Keywords = kws
		}
	}
	return table
}

// Classify maps a failure reason to (category, severity). Matching is
// case-insensitive; a nil or empty reason yields (SYSTEM_ERROR, MEDIUM).
func (c *Classifier) Classify(reason string) (exception.Category, exception.Severity) {
	reason = strings.ToLower(strings.TrimSpace(reason))
	if reason == "" {
		return exception.CategorySystemError, exception.SeverityMedium
	}

	category := exception.CategorySystemError
	for _, rule := range c.table.CategoryRules {
		if matchAny(reason, rule.Keywords) {
			category = rule.Category
			break
		}
	}

	severity := exception.SeverityLow
	for _, rule := range c.table.SeverityRules {
		if matchAny(reason, rule.Keywords) {
			severity = rule.Severity
			break
		}
	}

	return category, severity
}

// Retryable reports whether exceptions of the given category are eligible
// for automated or manual retry. Transient infrastructure failures are;
// deterministic rejections (validation, business rules, auth) are not.
func Retryable(category exception.Category) bool {
	switch category {
	case exception.CategoryTimeout,
		exception.CategoryNetworkError,
		exception.CategoryExternalService,
		exception.CategorySystemError:
		return true
	default:
		return false
	}
}

func matchAny(reason string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(reason, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

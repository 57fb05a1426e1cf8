// Package compliance decides whether a finished agent run is accepted.
//
// A Policy maps an agent name to the tools the run must have used; the
// Validator applies it to the run's execution record and stores the verdict.
package compliance

import (
	"strings"
)

// Requirement is the minimum tool usage for one agent category.
type Requirement struct {
	// RequiredTools is satisfied when the run used at least one of them.
	RequiredTools []string
	// MinToolsRequired is a lower bound on the number of tool calls.
	MinToolsRequired int
}

// Rule pairs a category predicate with its requirement.
type Rule struct {
	Category    string
	Match       func(agentName string) bool
	Requirement Requirement
}

// Policy is an ordered rule list; the first matching rule wins.
type Policy struct {
	rules    []Rule
	fallback Requirement
}

// DefaultRequirement applies to agents matching no category.
var DefaultRequirement = Requirement{
	RequiredTools:    []string{"Read"},
	MinToolsRequired: 1,
}

// NewPolicy builds a policy from rules in priority order.
func NewPolicy(fallback Requirement, rules ...Rule) *Policy {
	return &Policy{rules: rules, fallback: fallback}
}

// ContainsFold matches agent names containing substr, ignoring case.
func ContainsFold(substr string) func(string) bool {
	substr = strings.ToLower(substr)
	return func(agentName string) bool {
		return strings.Contains(strings.ToLower(agentName), substr)
	}
}

// CategoryRule is a Rule matched by case-insensitive substring of the agent name.
func CategoryRule(category string, min int, tools ...string) Rule {
	return Rule{
		Category: category,
		Match:    ContainsFold(category),
		Requirement: Requirement{
			RequiredTools:    tools,
			MinToolsRequired: min,
		},
	}
}

// DefaultPolicy is the production category table. Declaration order is
// priority order: "security-testing-agent" resolves to testing.
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultRequirement,
		CategoryRule("analysis", 2, "Read", "Grep", "Bash"),
		CategoryRule("implementation", 3, "Read", "Edit", "Write", "Bash"),
		CategoryRule("testing", 2, "Read", "Bash"),
		CategoryRule("security", 3, "Read", "Grep", "Bash"),
	)
}

// Resolve returns the requirement for agentName and the matched category,
// or the fallback requirement and "" when no rule matches.
func (p *Policy) Resolve(agentName string) (Requirement, string) {
	for _, rule := range p.rules {
		if rule.Match(agentName) {
			return rule.Requirement, rule.Category
		}
	}
	return p.fallback, ""
}

// Rules returns the rules in priority order.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// Overlaps reports whether used contains any of the required tools.
func (r Requirement) Overlaps(used []string) bool {
	for _, u := range used {
		for _, req := range r.RequiredTools {
			if u == req {
				return true
			}
		}
	}
	return false
}

package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicyResolve(t *testing.T) {
	tests := []struct {
		agent    string
		category string
		min      int
		tools    []string
	}{
		{"code-analysis-agent", "analysis", 2, []string{"Read", "Grep", "Bash"}},
		{"Implementation-Agent", "implementation", 3, []string{"Read", "Edit", "Write", "Bash"}},
		{"unit-testing-agent", "testing", 2, []string{"Read", "Bash"}},
		{"SECURITY-auditor", "security", 3, []string{"Read", "Grep", "Bash"}},
		{"security-testing-agent", "testing", 2, []string{"Read", "Bash"}},
		{"analysis-implementation", "analysis", 2, []string{"Read", "Grep", "Bash"}},
		{"docs-writer", "", 1, []string{"Read"}},
		{"", "", 1, []string{"Read"}},
	}

	p := DefaultPolicy()
	for _, tt := range tests {
		t.Run(tt.agent, func(t *testing.T) {
			req, category := p.Resolve(tt.agent)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.min, req.MinToolsRequired)
			assert.Equal(t, tt.tools, req.RequiredTools)
		})
	}
}

func TestPolicyOrderIsPriority(t *testing.T) {
	p := NewPolicy(DefaultRequirement,
		CategoryRule("security", 3, "Grep"),
		CategoryRule("testing", 2, "Bash"),
	)

	_, category := p.Resolve("security-testing-agent")
	assert.Equal(t, "security", category)
}

func TestPolicyRulesIsCopy(t *testing.T) {
	p := DefaultPolicy()
	rules := p.Rules()
	assert.Len(t, rules, 4)

	rules[0] = CategoryRule("other", 9, "X")
	_, category := p.Resolve("analysis-agent")
	assert.Equal(t, "analysis", category)
}

func TestRequirementOverlaps(t *testing.T) {
	req := Requirement{RequiredTools: []string{"Read", "Grep"}}

	assert.True(t, req.Overlaps([]string{"Bash", "Grep"}))
	assert.False(t, req.Overlaps([]string{"Bash", "Edit"}))
	assert.False(t, req.Overlaps(nil))
	// Tool names are case-sensitive.
	assert.False(t, req.Overlaps([]string{"read"}))
}

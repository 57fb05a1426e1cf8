package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/joss/toolgate/internal/compliance"
	"github.com/joss/toolgate/internal/selftest"
	"github.com/joss/toolgate/internal/tool"
)

func init() {
	SetColor(false)
}

func TestVerdictPlain(t *testing.T) {
	r := New(false)
	out := r.Verdict("analysis-agent", 4, compliance.Verdict{
		Accepted: false,
		Reason:   "Used 1 tools, minimum 2 required",
		Category: "analysis",
	})

	assert.Equal(t, "accepted=false agent=analysis-agent session=4 category=analysis reason=\"Used 1 tools, minimum 2 required\"\n", out)
}

func TestVerdictPretty(t *testing.T) {
	r := New(true)
	out := r.Verdict("docs-agent", 1, compliance.Verdict{
		Accepted:    true,
		Reason:      "Validation passed",
		ToolsUsed:   []string{"Read"},
		Requirement: compliance.DefaultRequirement,
	})

	assert.Contains(t, out, "✓ ACCEPTED")
	assert.Contains(t, out, "Category: default")
	assert.Contains(t, out, "Requires: 1 calls, one of Read")
	assert.Contains(t, out, "Used:     Read")
}

func TestVerdictPrettyNoTools(t *testing.T) {
	out := New(true).Verdict("a", 1, compliance.Verdict{Reason: "x", ToolsUsed: []string{}})
	assert.Contains(t, out, "✗ REJECTED")
	assert.Contains(t, out, "(none)")
}

func TestTools(t *testing.T) {
	defs := []tool.Definition{
		tool.NewBash("/tmp").Info(),
	}

	plain := New(false).Tools("shell", defs)
	assert.Contains(t, plain, "Bash\tcommand*:string timeout:integer\t")

	pretty := New(true).Tools("shell", defs)
	assert.Contains(t, pretty, "Tools (shell)")
	assert.Contains(t, pretty, "Bash")

	assert.Equal(t, "No tools registered\n", New(true).Tools("x", nil))
}

func TestArgumentListAnyRequired(t *testing.T) {
	schema := tool.Schema{
		"type": "object",
		"properties": map[string]any{
			"b": map[string]any{"type": "number"},
			"a": map[string]any{"type": "string"},
		},
		"required": []any{"a"},
	}
	assert.Equal(t, "a*:string b:number", argumentList(schema))
	assert.Equal(t, "", argumentList(tool.Schema{}))
}

func TestHealth(t *testing.T) {
	h := &selftest.HealthStatus{
		Status: "unhealthy",
		Uptime: "3s",
		Components: map[string]selftest.ComponentStatus{
			"protocol": {Status: "ok", Latency: 4},
			"store":    {Status: "error", Error: "unable to open database"},
		},
	}

	plain := New(false).Health(h)
	assert.Contains(t, plain, "status=unhealthy uptime=3s\n")
	assert.Contains(t, plain, "protocol=ok latency_ms=4\n")
	assert.Contains(t, plain, `store=error latency_ms=0 error="unable to open database"`)

	pretty := New(true).Health(h)
	assert.Contains(t, pretty, "Toolgate Selftest")
	assert.Contains(t, pretty, "unable to open database")
	assert.Contains(t, pretty, "Overall: ✗ unhealthy")
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Println("hello %s", "there")
	w.Item("item %d", 1)
	w.Print("raw")
	w.Empty("")

	assert.Equal(t, "hello there\n  item 1\nraw\n", buf.String())
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "✓", BoolIcon(true))
	assert.Equal(t, "✗", BoolIcon(false))
	assert.Equal(t, "!", StatusIcon("degraded"))
	assert.Equal(t, "•", StatusIcon("unknown"))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
}

package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/joss/toolgate/internal/compliance"
	"github.com/joss/toolgate/internal/selftest"
	"github.com/joss/toolgate/internal/tool"
)

// Renderer formats command results, with colors when pretty.
type Renderer struct {
	pretty bool
}

// New creates a new renderer.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// Verdict formats a validation outcome.
func (r *Renderer) Verdict(agent string, session int64, v compliance.Verdict) string {
	var sb strings.Builder

	if !r.pretty {
		fmt.Fprintf(&sb, "accepted=%v agent=%s session=%d category=%s reason=%q\n",
			v.Accepted, agent, session, categoryLabel(v.Category), v.Reason)
		return sb.String()
	}

	status := color.GreenString("✓ ACCEPTED")
	if !v.Accepted {
		status = color.RedString("✗ REJECTED")
	}

	sb.WriteString(color.CyanString("Agent Validation\n"))
	sb.WriteString(rule(40))
	fmt.Fprintf(&sb, "  Agent:    %s\n", agent)
	fmt.Fprintf(&sb, "  Session:  %d\n", session)
	fmt.Fprintf(&sb, "  Category: %s\n", categoryLabel(v.Category))
	if len(v.Requirement.RequiredTools) > 0 {
		fmt.Fprintf(&sb, "  Requires: %d calls, one of %s\n",
			v.Requirement.MinToolsRequired, strings.Join(v.Requirement.RequiredTools, ", "))
	}
	if v.ToolsUsed != nil {
		used := "(none)"
		if len(v.ToolsUsed) > 0 {
			used = strings.Join(v.ToolsUsed, ", ")
		}
		fmt.Fprintf(&sb, "  Used:     %s\n", color.HiBlackString(used))
	}
	fmt.Fprintf(&sb, "\n%s  %s\n", status, v.Reason)
	return sb.String()
}

func categoryLabel(category string) string {
	if category == "" {
		return "default"
	}
	return category
}

// Tools formats a catalog as a table of names and required arguments.
func (r *Renderer) Tools(category string, defs []tool.Definition) string {
	if len(defs) == 0 {
		return "No tools registered\n"
	}

	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Tools (%s)\n", category))
		sb.WriteString(rule(60))
	}

	for _, d := range defs {
		args := argumentList(d.InputSchema)
		if r.pretty {
			fmt.Fprintf(&sb, "  %-14s %s\n", color.YellowString(d.Name), Truncate(d.Description, 60))
			if args != "" {
				fmt.Fprintf(&sb, "  %-14s %s\n", "", color.HiBlackString(args))
			}
		} else {
			fmt.Fprintf(&sb, "%s\t%s\t%s\n", d.Name, args, d.Description)
		}
	}
	return sb.String()
}

// argumentList renders schema properties as "name:type", required ones
// marked with a star.
func argumentList(schema tool.Schema) string {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return ""
	}

	required := map[string]bool{}
	switch req := schema["required"].(type) {
	case []string:
		for _, name := range req {
			required[name] = true
		}
	case []any:
		for _, name := range req {
			if s, ok := name.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		typ := ""
		if p, ok := props[name].(map[string]any); ok {
			typ, _ = p["type"].(string)
		}
		mark := ""
		if required[name] {
			mark = "*"
		}
		parts = append(parts, fmt.Sprintf("%s%s:%s", name, mark, typ))
	}
	return strings.Join(parts, " ")
}

// Health formats a selftest report.
func (r *Renderer) Health(h *selftest.HealthStatus) string {
	var sb strings.Builder

	names := make([]string, 0, len(h.Components))
	for name := range h.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	if !r.pretty {
		fmt.Fprintf(&sb, "status=%s uptime=%s\n", h.Status, h.Uptime)
		for _, name := range names {
			c := h.Components[name]
			fmt.Fprintf(&sb, "%s=%s latency_ms=%d", name, c.Status, c.Latency)
			if c.Error != "" {
				fmt.Fprintf(&sb, " error=%q", c.Error)
			}
			sb.WriteString("\n")
		}
		return sb.String()
	}

	sb.WriteString(color.CyanString("Toolgate Selftest\n"))
	sb.WriteString(rule(40))
	for _, name := range names {
		c := h.Components[name]
		icon := StatusIcon(c.Status)
		switch c.Status {
		case "ok":
			icon = color.GreenString(icon)
		case "degraded":
			icon = color.YellowString(icon)
		default:
			icon = color.RedString(icon)
		}
		fmt.Fprintf(&sb, "  %s %-10s %s\n", icon, name, color.HiBlackString("%dms", c.Latency))
		if c.Error != "" {
			fmt.Fprintf(&sb, "      %s\n", color.RedString(c.Error))
		}
	}
	fmt.Fprintf(&sb, "\n  Overall: %s %s\n", StatusIcon(h.Status), h.Status)
	return sb.String()
}

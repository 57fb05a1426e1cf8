// Package selftest validates the runtime environment and runs toolgate's
// components once, in process, before an orchestrator depends on them.
package selftest

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/joss/toolgate/internal/config"
)

// Environment describes the runtime environment.
type Environment struct {
	// StdoutIsTTY is true when a human, not an orchestrator, is reading stdout.
	StdoutIsTTY bool
	BashPath    string
	WorkDir     string
	WorkDirOK   bool
	StoreKind   string
	StoreTarget string
	Recording   bool
	Warnings    []string
	Errors      []string
}

// Check performs a complete environment validation.
func Check(env *config.ToolgateEnv) *Environment {
	e := &Environment{
		StdoutIsTTY: term.IsTerminal(int(os.Stdout.Fd())),
		WorkDir:     env.WorkDir,
		StoreKind:   env.Store,
		Recording:   env.RecordsUsage(),
	}

	if path, err := exec.LookPath("bash"); err == nil {
		e.BashPath = path
	} else {
		e.Warnings = append(e.Warnings, "bash not found: the shell category will fail every call")
	}

	if info, err := os.Stat(env.WorkDir); err == nil && info.IsDir() {
		e.WorkDirOK = true
	} else {
		e.Errors = append(e.Errors, fmt.Sprintf("Working directory %s is not accessible", env.WorkDir))
	}

	switch env.Store {
	case config.StoreSQLite:
		e.StoreTarget = env.DBPath
		if _, err := os.Stat(filepath.Dir(env.DBPath)); err != nil {
			e.Warnings = append(e.Warnings, fmt.Sprintf("Database directory %s does not exist yet", filepath.Dir(env.DBPath)))
		}
	case config.StoreGraph:
		e.StoreTarget = env.Neo4jURI
	default:
		e.Errors = append(e.Errors, fmt.Sprintf("Unknown store %q (want %s or %s)", env.Store, config.StoreSQLite, config.StoreGraph))
	}

	if env.SessionID > 0 && env.AgentName == "" {
		e.Warnings = append(e.Warnings, "TOOLGATE_SESSION_ID is set without TOOLGATE_AGENT_NAME: tool usage will not be recorded")
	}

	return e
}

// IsHealthy returns true if toolgate can serve tools.
func (e *Environment) IsHealthy() bool {
	return len(e.Errors) == 0
}

// Summary returns a human-readable summary.
func (e *Environment) Summary() string {
	var sb strings.Builder

	sb.WriteString("TOOLGATE ENVIRONMENT CHECK\n")
	sb.WriteString(strings.Repeat("─", 40) + "\n")

	tty := "No (orchestrator mode)"
	if e.StdoutIsTTY {
		tty = "Yes (serve expects a pipe)"
	}
	fmt.Fprintf(&sb, "TTY:          %s\n", tty)

	bash := "NOT FOUND"
	if e.BashPath != "" {
		bash = e.BashPath
	}
	fmt.Fprintf(&sb, "Bash:         %s\n", bash)

	workDir := "Missing"
	if e.WorkDirOK {
		workDir = "OK"
	}
	fmt.Fprintf(&sb, "Workdir:      %s (%s)\n", e.WorkDir, workDir)
	fmt.Fprintf(&sb, "Store:        %s %s\n", e.StoreKind, e.StoreTarget)

	recording := "Off"
	if e.Recording {
		recording = "On"
	}
	fmt.Fprintf(&sb, "Recording:    %s\n", recording)

	if len(e.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, w := range e.Warnings {
			fmt.Fprintf(&sb, "  ! %s\n", w)
		}
	}
	if len(e.Errors) > 0 {
		sb.WriteString("\nErrors:\n")
		for _, err := range e.Errors {
			fmt.Fprintf(&sb, "  ✗ %s\n", err)
		}
	}

	return sb.String()
}

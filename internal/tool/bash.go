package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultBashTimeout = 2 * time.Minute
	maxBashTimeout     = 10 * time.Minute
)

// Bash runs a command with bash -c in the working directory.
type Bash struct {
	workDir string
	timeout time.Duration
}

func NewBash(workDir string) *Bash {
	return &Bash{
		workDir: workDir,
		timeout: defaultBashTimeout,
	}
}

func (b *Bash) Info() Definition {
	return Definition{
		Name:        "Bash",
		Description: "Execute a bash command in the working directory and return its combined output.",
		InputSchema: objectSchema(map[string]any{
			"command": property("string", "The bash command to execute"),
			"timeout": property("integer", "Timeout in milliseconds (max 600000)"),
		}, "command"),
	}
}

func (b *Bash) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	command := stringArg(args, "command")
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("command: %w", ErrInvalidArgs)
	}

	timeout := b.timeout
	if ms, ok := intArg(args, "timeout"); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
		if timeout > maxBashTimeout {
			timeout = maxBashTimeout
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = b.workDir
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += stderr.String()
	}

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	result := &Result{
		Title:  commandTitle(command),
		Output: truncate(output),
		Metadata: map[string]any{
			"command":  command,
			"exitCode": exitCode,
		},
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Output += "\n(command timed out)"
		}
		result.Error = err
	}
	return result, nil
}

func commandTitle(s string) string {
	s = strings.Split(s, "\n")[0]
	if len(s) > 50 {
		return s[:47] + "..."
	}
	return s
}

var _ Handler = (*Bash)(nil)

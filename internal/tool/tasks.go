package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joss/toolgate/internal/compliance"
	"github.com/joss/toolgate/internal/store"
)

// Gate decides whether a finished agent run is accepted.
type Gate interface {
	Validate(ctx context.Context, agentName string, sessionID int64) compliance.Verdict
}

func runProperties(extra map[string]any) map[string]any {
	props := map[string]any{
		"session_id": property("integer", "Session the agent run belongs to (default: the server's session)"),
		"agent_name": property("string", "Name of the agent"),
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// runKey reads the (session, agent) pair, defaulting the session.
func runKey(args map[string]any, defaultSession int64) (int64, string, error) {
	agent := stringArg(args, "agent_name")
	if agent == "" {
		return 0, "", fmt.Errorf("agent_name: %w", ErrInvalidArgs)
	}
	session := defaultSession
	if s, ok := intArg(args, "session_id"); ok {
		session = int64(s)
	}
	if session <= 0 {
		return 0, "", fmt.Errorf("session_id: %w", ErrInvalidArgs)
	}
	return session, agent, nil
}

// ExecuteTask opens an execution record for a new agent run.
type ExecuteTask struct {
	runs    store.RunWriter
	session int64
	newID   func() string
}

func NewExecuteTask(runs store.RunWriter, session int64) *ExecuteTask {
	return &ExecuteTask{
		runs:    runs,
		session: session,
		newID:   func() string { return ulid.Make().String() },
	}
}

func (t *ExecuteTask) Info() Definition {
	return Definition{
		Name:        "execute_task",
		Description: "Start an agent run: creates a pending execution record that tool usage is recorded against.",
		InputSchema: objectSchema(runProperties(map[string]any{
			"description": property("string", "What the agent is asked to do"),
		}), "agent_name"),
	}
}

func (t *ExecuteTask) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	session, agent, err := runKey(args, t.session)
	if err != nil {
		return nil, err
	}

	taskID := t.newID()
	title := fmt.Sprintf("Task %s", agent)
	if err := t.runs.Start(ctx, session, agent); err != nil {
		if store.IsConnection(err) {
			return nil, err
		}
		return &Result{Title: title, Output: err.Error(), Error: err}, nil
	}

	return &Result{
		Title:  title,
		Output: fmt.Sprintf("Started task %s for agent %s in session %d", taskID, agent, session),
		Metadata: map[string]any{
			"task_id":     taskID,
			"session_id":  session,
			"agent_name":  agent,
			"description": stringArg(args, "description"),
		},
	}, nil
}

// CompleteTask stores an agent run's summary and duration.
type CompleteTask struct {
	runs    store.RunWriter
	session int64
}

func NewCompleteTask(runs store.RunWriter, session int64) *CompleteTask {
	return &CompleteTask{runs: runs, session: session}
}

func (t *CompleteTask) Info() Definition {
	return Definition{
		Name:        "complete_task",
		Description: "Finish an agent run by recording its results summary and duration.",
		InputSchema: objectSchema(runProperties(map[string]any{
			"summary":          property("string", "The agent's results summary"),
			"duration_seconds": property("number", "Wall-clock duration of the run in seconds"),
		}), "agent_name", "summary"),
	}
}

func (t *CompleteTask) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	session, agent, err := runKey(args, t.session)
	if err != nil {
		return nil, err
	}

	var duration time.Duration
	if secs, ok := args["duration_seconds"].(float64); ok && secs > 0 {
		duration = time.Duration(secs * float64(time.Second))
	}

	title := fmt.Sprintf("Complete %s", agent)
	if err := t.runs.Complete(ctx, session, agent, stringArg(args, "summary"), duration); err != nil {
		if store.IsConnection(err) {
			return nil, err
		}
		return &Result{Title: title, Output: err.Error(), Error: err}, nil
	}

	return &Result{
		Title:  title,
		Output: fmt.Sprintf("Recorded results for agent %s in session %d", agent, session),
		Metadata: map[string]any{
			"session_id":       session,
			"agent_name":       agent,
			"duration_seconds": duration.Seconds(),
		},
	}, nil
}

// ValidateAgent runs the compliance gate on a finished agent run.
type ValidateAgent struct {
	gate    Gate
	session int64
}

func NewValidateAgent(gate Gate, session int64) *ValidateAgent {
	return &ValidateAgent{gate: gate, session: session}
}

func (t *ValidateAgent) Info() Definition {
	return Definition{
		Name:        "validate_agent",
		Description: "Check that a finished agent run used enough category-appropriate tools and produced output.",
		InputSchema: objectSchema(runProperties(nil), "agent_name"),
	}
}

func (t *ValidateAgent) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	session, agent, err := runKey(args, t.session)
	if err != nil {
		return nil, err
	}

	verdict := t.gate.Validate(ctx, agent, session)
	status := "accepted"
	if !verdict.Accepted {
		status = "rejected"
	}

	return &Result{
		Title:  fmt.Sprintf("Validate %s", agent),
		Output: fmt.Sprintf("%s: %s", status, verdict.Reason),
		Metadata: map[string]any{
			"session_id": session,
			"agent_name": agent,
			"accepted":   verdict.Accepted,
			"reason":     verdict.Reason,
			"category":   verdict.Category,
		},
	}, nil
}

var (
	_ Handler = (*ExecuteTask)(nil)
	_ Handler = (*CompleteTask)(nil)
	_ Handler = (*ValidateAgent)(nil)
)

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/joss/toolgate/internal/graph"
)

// Graph is the execution store backed by Memgraph/Neo4j. Each record is an
// (:AgentExecution) node linked from its (:Session).
type Graph struct {
	db  graph.Driver
	now func() time.Time
}

// Verify Graph implements ExecutionStore
var _ ExecutionStore = (*Graph)(nil)

// NewGraph creates a graph-backed execution store.
func NewGraph(db graph.Driver) *Graph {
	return &Graph{db: db, now: time.Now}
}

func (g *Graph) Ping(ctx context.Context) error {
	if err := g.db.Ping(ctx); err != nil {
		return connectionError("ping", err)
	}
	return nil
}

func (g *Graph) Close() error {
	return g.db.Close()
}

func (g *Graph) Get(ctx context.Context, sessionID int64, agentName string) (*ExecutionRecord, error) {
	records, err := g.db.Execute(ctx, `
		MATCH (e:AgentExecution {session_id: $session_id, agent_name: $agent_name})
		RETURN e.session_id as session_id,
		       e.agent_name as agent_name,
		       e.tools_used as tools_used,
		       e.results_summary as results_summary,
		       e.actual_duration as actual_duration,
		       e.validation_status as validation_status,
		       e.validation_timestamp as validation_timestamp,
		       e.started_at as started_at,
		       e.completed_at as completed_at
		LIMIT 1
	`, keyParams(sessionID, agentName))
	if err != nil {
		return nil, g.classify("get execution", err)
	}
	if len(records) == 0 {
		return nil, NewNotFoundError("execution", keyString(sessionID, agentName))
	}

	r := records[0]
	rec := &ExecutionRecord{
		SessionID:        graph.GetInt64(r, "session_id"),
		AgentName:        graph.GetString(r, "agent_name"),
		ToolsUsed:        toolsProperty(r),
		ResultsSummary:   graph.GetString(r, "results_summary"),
		ActualDuration:   time.Duration(graph.GetFloat(r, "actual_duration") * float64(time.Second)),
		ValidationStatus: Status(graph.GetString(r, "validation_status")),
	}
	rec.ValidationTimestamp = parseGraphTime(graph.GetString(r, "validation_timestamp"))
	if t := parseGraphTime(graph.GetString(r, "started_at")); t != nil {
		rec.StartedAt = *t
	}
	rec.CompletedAt = parseGraphTime(graph.GetString(r, "completed_at"))

	return rec, nil
}

func (g *Graph) UpdateValidation(ctx context.Context, sessionID int64, agentName string, status Status, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("invalid validation status %q", status)
	}
	params := keyParams(sessionID, agentName)
	params["status"] = string(status)
	params["at"] = formatTime(at)

	return g.update(ctx, "update validation", `
		MATCH (e:AgentExecution {session_id: $session_id, agent_name: $agent_name})
		SET e.validation_status = $status, e.validation_timestamp = $at
		RETURN count(e) as updated
	`, sessionID, agentName, params)
}

func (g *Graph) Start(ctx context.Context, sessionID int64, agentName string) error {
	if err := checkKey(sessionID, agentName); err != nil {
		return err
	}
	if _, err := g.Get(ctx, sessionID, agentName); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, keyString(sessionID, agentName))
	} else if !IsNotFound(err) {
		return err
	}

	params := keyParams(sessionID, agentName)
	params["status"] = string(StatusPending)
	params["started_at"] = formatTime(g.now())

	err := g.db.ExecuteWrite(ctx, `
		MERGE (sess:Session {session_id: $session_id})
		CREATE (e:AgentExecution {
			session_id: $session_id,
			agent_name: $agent_name,
			tools_used: [],
			validation_status: $status,
			started_at: $started_at
		})
		CREATE (sess)-[:RAN]->(e)
	`, params)
	if err != nil {
		return g.classify("start execution", err)
	}
	return nil
}

// AppendToolUse extends the list property in a single statement, so the
// append is atomic on the server.
func (g *Graph) AppendToolUse(ctx context.Context, sessionID int64, agentName, tool string) error {
	params := keyParams(sessionID, agentName)
	params["tool"] = tool

	return g.update(ctx, "append tool use", `
		MATCH (e:AgentExecution {session_id: $session_id, agent_name: $agent_name})
		SET e.tools_used = coalesce(e.tools_used, []) + [$tool]
		RETURN count(e) as updated
	`, sessionID, agentName, params)
}

func (g *Graph) Complete(ctx context.Context, sessionID int64, agentName, summary string, duration time.Duration) error {
	params := keyParams(sessionID, agentName)
	params["summary"] = summary
	params["duration"] = duration.Seconds()
	params["completed_at"] = formatTime(g.now())

	return g.update(ctx, "complete execution", `
		MATCH (e:AgentExecution {session_id: $session_id, agent_name: $agent_name})
		SET e.results_summary = $summary, e.actual_duration = $duration, e.completed_at = $completed_at
		RETURN count(e) as updated
	`, sessionID, agentName, params)
}

// update runs a MATCH ... SET query that returns the matched count, and
// reports ErrNotFound when nothing matched.
func (g *Graph) update(ctx context.Context, op, query string, sessionID int64, agentName string, params map[string]any) error {
	records, err := g.db.ExecuteWriteReturning(ctx, query, params)
	if err != nil {
		return g.classify(op, err)
	}
	if len(records) == 0 || graph.GetInt64(records[0], "updated") == 0 {
		return NewNotFoundError("execution", keyString(sessionID, agentName))
	}
	return nil
}

func (g *Graph) classify(op string, err error) error {
	if graph.IsConnectionError(err) {
		return connectionError(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func keyParams(sessionID int64, agentName string) map[string]any {
	return map[string]any{
		"session_id": sessionID,
		"agent_name": agentName,
	}
}

// toolsProperty normalizes tools_used, which is a list when this store
// wrote it and a JSON string when an external writer did.
func toolsProperty(r graph.Record) string {
	if raw := graph.GetString(r, "tools_used"); raw != "" {
		return raw
	}
	if tools, ok := graph.GetStringSlice(r, "tools_used"); ok {
		return EncodeTools(tools)
	}
	return ""
}

func parseGraphTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

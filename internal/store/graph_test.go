package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/toolgate/internal/graph"
)

// fakeDriver answers queries from canned rows and records what it was sent.
type fakeDriver struct {
	rows    []graph.Record
	err     error
	queries []string
	params  []map[string]any
}

func (f *fakeDriver) record(query string, params map[string]any) {
	f.queries = append(f.queries, query)
	f.params = append(f.params, params)
}

func (f *fakeDriver) Execute(ctx context.Context, query string, params map[string]any) ([]graph.Record, error) {
	f.record(query, params)
	return f.rows, f.err
}

func (f *fakeDriver) ExecuteWrite(ctx context.Context, query string, params map[string]any) error {
	f.record(query, params)
	return f.err
}

func (f *fakeDriver) ExecuteWriteReturning(ctx context.Context, query string, params map[string]any) ([]graph.Record, error) {
	f.record(query, params)
	return f.rows, f.err
}

func (f *fakeDriver) Close() error                   { return nil }
func (f *fakeDriver) Ping(ctx context.Context) error { return f.err }

func TestGraphGet(t *testing.T) {
	db := &fakeDriver{rows: []graph.Record{{
		"session_id":           int64(4),
		"agent_name":           "security-agent",
		"tools_used":           []any{"Read", "Grep"},
		"results_summary":      "found two issues",
		"actual_duration":      2.5,
		"validation_status":    "pending",
		"validation_timestamp": nil,
		"started_at":           "2026-01-02T03:04:05Z",
	}}}
	g := NewGraph(db)

	rec, err := g.Get(context.Background(), 4, "security-agent")
	require.NoError(t, err)

	assert.Equal(t, int64(4), rec.SessionID)
	assert.Equal(t, `["Read","Grep"]`, rec.ToolsUsed)
	assert.Equal(t, 2500*time.Millisecond, rec.ActualDuration)
	assert.Equal(t, StatusPending, rec.ValidationStatus)
	assert.Nil(t, rec.ValidationTimestamp)
	assert.Equal(t, 2026, rec.StartedAt.Year())
	assert.Equal(t, int64(4), db.params[0]["session_id"])
	assert.Equal(t, "security-agent", db.params[0]["agent_name"])
}

func TestGraphGetJSONStringTools(t *testing.T) {
	db := &fakeDriver{rows: []graph.Record{{"tools_used": `["Bash"]`}}}
	rec, err := NewGraph(db).Get(context.Background(), 1, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bash"}, DecodeTools(rec.ToolsUsed))
}

func TestGraphGetMixedToolList(t *testing.T) {
	db := &fakeDriver{rows: []graph.Record{{"tools_used": []any{"Read", int64(3), "Edit"}}}}
	rec, err := NewGraph(db).Get(context.Background(), 1, "a")
	require.NoError(t, err)
	assert.Equal(t, `["Read","Edit"]`, rec.ToolsUsed)
}

func TestGraphGetMissingTools(t *testing.T) {
	db := &fakeDriver{rows: []graph.Record{{"agent_name": "a"}}}
	rec, err := NewGraph(db).Get(context.Background(), 1, "a")
	require.NoError(t, err)
	assert.Equal(t, "", rec.ToolsUsed)
	assert.Empty(t, DecodeTools(rec.ToolsUsed))
}

func TestGraphGetNotFound(t *testing.T) {
	_, err := NewGraph(&fakeDriver{}).Get(context.Background(), 1, "missing")
	assert.True(t, IsNotFound(err))
}

func TestGraphConnectionErrors(t *testing.T) {
	db := &fakeDriver{err: errors.New("dial tcp 127.0.0.1:7687: connection refused")}
	g := NewGraph(db)

	_, err := g.Get(context.Background(), 1, "a")
	assert.True(t, IsConnection(err))
	assert.True(t, IsConnection(g.Ping(context.Background())))
}

func TestGraphUpdateValidation(t *testing.T) {
	db := &fakeDriver{rows: []graph.Record{{"updated": int64(1)}}}
	g := NewGraph(db)
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

	require.NoError(t, g.UpdateValidation(context.Background(), 5, "impl", StatusFailed, at))
	assert.Equal(t, "failed", db.params[0]["status"])
	assert.Equal(t, "2026-05-06T07:08:09Z", db.params[0]["at"])

	db.rows = []graph.Record{{"updated": int64(0)}}
	assert.True(t, IsNotFound(g.UpdateValidation(context.Background(), 5, "impl", StatusPassed, at)))
}

func TestGraphAppendToolUse(t *testing.T) {
	db := &fakeDriver{rows: []graph.Record{{"updated": int64(1)}}}
	g := NewGraph(db)

	require.NoError(t, g.AppendToolUse(context.Background(), 5, "impl", "Edit"))
	assert.Equal(t, "Edit", db.params[0]["tool"])
	assert.True(t, strings.Contains(db.queries[0], "coalesce(e.tools_used, []) + [$tool]"))
}

func TestGraphStartExisting(t *testing.T) {
	db := &fakeDriver{rows: []graph.Record{{"agent_name": "impl"}}}
	err := NewGraph(db).Start(context.Background(), 5, "impl")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestGraphStartCreates(t *testing.T) {
	db := &fakeDriver{}
	g := NewGraph(db)
	g.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, g.Start(context.Background(), 6, "impl"))
	require.Len(t, db.queries, 2)
	assert.Contains(t, db.queries[1], "CREATE (e:AgentExecution")
	assert.Equal(t, "pending", db.params[1]["status"])
	assert.Equal(t, "2026-01-01T00:00:00Z", db.params[1]["started_at"])
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "executions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Start(ctx, 1, "testing-agent"))

	rec, err := s.Get(ctx, 1, "testing-agent")
	require.NoError(t, err)
	assert.Equal(t, "[]", rec.ToolsUsed)
	assert.Equal(t, StatusPending, rec.ValidationStatus)
	assert.True(t, rec.StartedAt.Equal(fixed))
	assert.Nil(t, rec.CompletedAt)

	require.NoError(t, s.AppendToolUse(ctx, 1, "testing-agent", "Read"))
	require.NoError(t, s.AppendToolUse(ctx, 1, "testing-agent", "Bash"))
	require.NoError(t, s.Complete(ctx, 1, "testing-agent", "ran the suite", 90*time.Second))

	rec, err = s.Get(ctx, 1, "testing-agent")
	require.NoError(t, err)
	assert.Equal(t, []string{"Read", "Bash"}, DecodeTools(rec.ToolsUsed))
	assert.Equal(t, "ran the suite", rec.ResultsSummary)
	assert.Equal(t, 90*time.Second, rec.ActualDuration)
	require.NotNil(t, rec.CompletedAt)

	validated := fixed.Add(time.Minute)
	require.NoError(t, s.UpdateValidation(ctx, 1, "testing-agent", StatusPassed, validated))

	rec, err = s.Get(ctx, 1, "testing-agent")
	require.NoError(t, err)
	assert.Equal(t, StatusPassed, rec.ValidationStatus)
	require.NotNil(t, rec.ValidationTimestamp)
	assert.True(t, rec.ValidationTimestamp.Equal(validated))
}

func TestSQLiteStartTwice(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	require.NoError(t, s.Start(ctx, 2, "analysis-agent"))
	assert.ErrorIs(t, s.Start(ctx, 2, "analysis-agent"), ErrAlreadyExists)
	assert.ErrorIs(t, s.Start(ctx, 0, "analysis-agent"), ErrInvalidKey)
}

func TestSQLiteMissingRecord(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	_, err := s.Get(ctx, 9, "ghost")
	assert.True(t, IsNotFound(err))

	assert.True(t, IsNotFound(s.UpdateValidation(ctx, 9, "ghost", StatusPassed, time.Now())))
	assert.True(t, IsNotFound(s.AppendToolUse(ctx, 9, "ghost", "Read")))
	assert.True(t, IsNotFound(s.Complete(ctx, 9, "ghost", "x", time.Second)))
}

func TestSQLiteCorruptToolsUsedIsReplacedOnAppend(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	_, err := s.db.Exec(`INSERT INTO agent_executions (session_id, agent_name, tools_used) VALUES (3, 'x', 'not json')`)
	require.NoError(t, err)

	rec, err := s.Get(ctx, 3, "x")
	require.NoError(t, err)
	assert.Equal(t, "not json", rec.ToolsUsed)
	assert.Equal(t, StatusUnset, rec.ValidationStatus)

	require.NoError(t, s.AppendToolUse(ctx, 3, "x", "Grep"))
	rec, err = s.Get(ctx, 3, "x")
	require.NoError(t, err)
	assert.Equal(t, `["Grep"]`, rec.ToolsUsed)
}

func TestSQLiteRejectsUnknownStatus(t *testing.T) {
	s := openTestSQLite(t)
	err := s.UpdateValidation(context.Background(), 1, "a", Status("maybe"), time.Now())
	assert.Error(t, err)
}

func TestSQLiteClosed(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Ping(ctx), ErrClosed)
	_, err := s.Get(ctx, 1, "a")
	assert.ErrorIs(t, err, ErrClosed)
}

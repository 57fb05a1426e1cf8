package compliance

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/toolgate/internal/metrics"
	"github.com/joss/toolgate/internal/store"
)

type update struct {
	status store.Status
	at     time.Time
}

type memStore struct {
	mu        sync.Mutex
	records   map[string]*store.ExecutionRecord
	updates   []update
	getErr    error
	updateErr error
	panicGet  bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*store.ExecutionRecord)}
}

func memKey(sessionID int64, agentName string) string {
	return fmt.Sprintf("%d/%s", sessionID, agentName)
}

func (m *memStore) put(sessionID int64, agentName, tools, summary string) {
	m.records[memKey(sessionID, agentName)] = &store.ExecutionRecord{
		SessionID:      sessionID,
		AgentName:      agentName,
		ToolsUsed:      tools,
		ResultsSummary: summary,
	}
}

func (m *memStore) Get(ctx context.Context, sessionID int64, agentName string) (*store.ExecutionRecord, error) {
	if m.panicGet {
		panic("driver exploded")
	}
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[memKey(sessionID, agentName)]
	if !ok {
		return nil, store.NewNotFoundError("execution", agentName)
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) UpdateValidation(ctx context.Context, sessionID int64, agentName string, status store.Status, at time.Time) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[memKey(sessionID, agentName)]
	if !ok {
		return store.NewNotFoundError("execution", agentName)
	}
	rec.ValidationStatus = status
	ts := at
	rec.ValidationTimestamp = &ts
	m.updates = append(m.updates, update{status: status, at: at})
	return nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestValidator(s RecordStore, opts ...Option) *Validator {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewValidator(s, opts...)
}

func longSummary() string {
	return strings.Repeat("x", 200)
}

func TestValidateAnalysisAccepted(t *testing.T) {
	s := newMemStore()
	s.put(1, "analysis-agent", `["Read","Grep","Bash"]`, longSummary())

	verdict := newTestValidator(s).Validate(context.Background(), "analysis-agent", 1)

	assert.True(t, verdict.Accepted)
	assert.NoError(t, verdict.Err)
	assert.Equal(t, "analysis", verdict.Category)
	assert.Equal(t, []string{"Read", "Grep", "Bash"}, verdict.ToolsUsed)

	require.Len(t, s.updates, 1)
	assert.Equal(t, store.StatusPassed, s.updates[0].status)
	assert.Equal(t, fixedNow, s.updates[0].at)
}

func TestValidateGateScenarios(t *testing.T) {
	tests := []struct {
		name     string
		agent    string
		tools    string
		summary  string
		accepted bool
		reason   string
		err      error
	}{
		{
			name:   "testing agent with one tool",
			agent:  "testing-agent",
			tools:  `["Read"]`,
			reason: "Used 1 tools, minimum 2 required",
			err:    ErrInsufficientToolUsage,
		},
		{
			name:    "implementation agent with empty summary",
			agent:   "implementation-agent",
			tools:   `["Read","Edit","Write","Bash"]`,
			summary: "",
			reason:  "Insufficient output produced",
			err:     ErrInsufficientOutput,
		},
		{
			name:     "testing agent with enough tools and output",
			agent:    "testing-agent",
			tools:    `["Read","Bash"]`,
			summary:  strings.Repeat("y", 120),
			accepted: true,
			reason:   "Validation passed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMemStore()
			s.put(5, tt.agent, tt.tools, tt.summary)

			verdict := newTestValidator(s).Validate(context.Background(), tt.agent, 5)

			assert.Equal(t, tt.accepted, verdict.Accepted)
			assert.Equal(t, tt.reason, verdict.Reason)
			if tt.err != nil {
				assert.ErrorIs(t, verdict.Err, tt.err)
			} else {
				assert.NoError(t, verdict.Err)
			}
		})
	}
}

func TestValidateImplementationTooFewTools(t *testing.T) {
	s := newMemStore()
	s.put(1, "implementation-agent", `["Read"]`, longSummary())

	ok, reason := newTestValidator(s).Check(context.Background(), "implementation-agent", 1)

	assert.False(t, ok)
	assert.Equal(t, "Used 1 tools, minimum 3 required", reason)
}

func TestValidateTestingShortSummary(t *testing.T) {
	s := newMemStore()
	s.put(1, "testing-agent", `["Read","Bash"]`, "ok")

	verdict := newTestValidator(s).Validate(context.Background(), "testing-agent", 1)

	assert.False(t, verdict.Accepted)
	assert.Equal(t, "Insufficient output produced", verdict.Reason)
	assert.ErrorIs(t, verdict.Err, ErrInsufficientOutput)
	assert.True(t, IsRejection(verdict.Err))
}

func TestValidateMissingRequiredTool(t *testing.T) {
	s := newMemStore()
	s.put(1, "security-agent", `["Edit","Write","LS"]`, longSummary())

	verdict := newTestValidator(s).Validate(context.Background(), "security-agent", 1)

	assert.False(t, verdict.Accepted)
	assert.Equal(t, "Must use at least one of: Read, Grep, Bash", verdict.Reason)
	assert.ErrorIs(t, verdict.Err, ErrMissingRequiredTool)
}

func TestValidateOrderSensitiveCategory(t *testing.T) {
	s := newMemStore()
	// Two tools satisfy testing (min 2) but not security (min 3).
	s.put(1, "security-testing-agent", `["Read","Bash"]`, longSummary())

	verdict := newTestValidator(s).Validate(context.Background(), "security-testing-agent", 1)

	assert.True(t, verdict.Accepted)
	assert.Equal(t, "testing", verdict.Category)
}

func TestValidateSummaryTrimmed(t *testing.T) {
	s := newMemStore()
	padded := "   " + strings.Repeat("y", 99) + "\n\n\t"
	s.put(1, "writer", `["Read"]`, padded)

	verdict := newTestValidator(s).Validate(context.Background(), "writer", 1)
	assert.ErrorIs(t, verdict.Err, ErrInsufficientOutput)

	s.put(2, "writer", `["Read"]`, " "+strings.Repeat("é", 100)+" ")
	verdict = newTestValidator(s).Validate(context.Background(), "writer", 2)
	assert.True(t, verdict.Accepted, verdict.Reason)
}

func TestValidateUnparsableTools(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"a":1}`, "null"} {
		t.Run(raw, func(t *testing.T) {
			s := newMemStore()
			s.put(1, "docs-agent", raw, longSummary())

			verdict := newTestValidator(s).Validate(context.Background(), "docs-agent", 1)

			assert.False(t, verdict.Accepted)
			assert.Equal(t, "Used 0 tools, minimum 1 required", verdict.Reason)
			assert.ErrorIs(t, verdict.Err, ErrInsufficientToolUsage)
		})
	}
}

func TestValidateRecordNotFound(t *testing.T) {
	s := newMemStore()

	verdict := newTestValidator(s).Validate(context.Background(), "ghost-agent", 7)

	assert.False(t, verdict.Accepted)
	assert.ErrorIs(t, verdict.Err, ErrRecordNotFound)
	assert.Contains(t, verdict.Reason, "ghost-agent")
	assert.False(t, IsRejection(verdict.Err))
	assert.Empty(t, s.updates)
}

func TestValidateStoreUnavailable(t *testing.T) {
	s := newMemStore()
	s.getErr = errors.New("database is locked")

	verdict := newTestValidator(s).Validate(context.Background(), "analysis-agent", 1)

	assert.False(t, verdict.Accepted)
	assert.ErrorIs(t, verdict.Err, ErrStoreUnavailable)
	assert.Contains(t, verdict.Reason, "database is locked")
}

func TestValidateStorePanicIsContained(t *testing.T) {
	s := newMemStore()
	s.panicGet = true

	var verdict Verdict
	assert.NotPanics(t, func() {
		verdict = newTestValidator(s).Validate(context.Background(), "analysis-agent", 1)
	})
	assert.False(t, verdict.Accepted)
	assert.ErrorIs(t, verdict.Err, ErrStoreUnavailable)
	assert.Contains(t, verdict.Reason, "driver exploded")
}

func TestValidatePassedWriteFailure(t *testing.T) {
	s := newMemStore()
	s.put(1, "analysis-agent", `["Read","Grep"]`, longSummary())
	s.updateErr = errors.New("disk full")

	verdict := newTestValidator(s).Validate(context.Background(), "analysis-agent", 1)

	assert.False(t, verdict.Accepted)
	assert.ErrorIs(t, verdict.Err, ErrStoreUnavailable)
}

func TestValidateFailedWriteIsBestEffort(t *testing.T) {
	s := newMemStore()
	s.put(1, "analysis-agent", `["Read"]`, longSummary())
	s.updateErr = errors.New("disk full")

	verdict := newTestValidator(s).Validate(context.Background(), "analysis-agent", 1)

	assert.False(t, verdict.Accepted)
	assert.ErrorIs(t, verdict.Err, ErrInsufficientToolUsage)
}

func TestValidateFailurePersistence(t *testing.T) {
	s := newMemStore()
	s.put(1, "analysis-agent", `["Read"]`, longSummary())

	newTestValidator(s).Validate(context.Background(), "analysis-agent", 1)
	require.Len(t, s.updates, 1)
	assert.Equal(t, store.StatusFailed, s.updates[0].status)

	s2 := newMemStore()
	s2.put(1, "analysis-agent", `["Read"]`, longSummary())
	newTestValidator(s2, WithFailurePersistence(false)).Validate(context.Background(), "analysis-agent", 1)
	assert.Empty(t, s2.updates)
}

func TestValidateIdempotent(t *testing.T) {
	s := newMemStore()
	s.put(1, "analysis-agent", `["Read","Grep","Bash"]`, longSummary())
	s.put(2, "implementation-agent", `["Read"]`, longSummary())

	v := newTestValidator(s)
	for _, tc := range []struct {
		agent   string
		session int64
	}{{"analysis-agent", 1}, {"implementation-agent", 2}} {
		first := v.Validate(context.Background(), tc.agent, tc.session)
		second := v.Validate(context.Background(), tc.agent, tc.session)
		assert.Equal(t, first.Accepted, second.Accepted)
		assert.Equal(t, first.Reason, second.Reason)
	}
}

func TestValidateCustomPolicy(t *testing.T) {
	s := newMemStore()
	s.put(1, "deploy-bot", `["Bash"]`, longSummary())

	p := NewPolicy(DefaultRequirement, CategoryRule("deploy", 1, "Bash"))
	verdict := newTestValidator(s, WithPolicy(p)).Validate(context.Background(), "deploy-bot", 1)

	assert.True(t, verdict.Accepted)
	assert.Equal(t, "deploy", verdict.Category)
}

func TestValidateCountsMetrics(t *testing.T) {
	s := newMemStore()
	s.put(1, "analysis-agent", `["Read","Grep"]`, longSummary())
	m := metrics.New()

	v := newTestValidator(s, WithMetrics(m))
	v.Validate(context.Background(), "analysis-agent", 1)
	v.Validate(context.Background(), "missing-agent", 1)

	assert.Equal(t, int64(2), m.Validations.Load())
	assert.Equal(t, int64(1), m.ValidationsRejected.Load())
}

func TestValidateAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "executions.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Start(ctx, 3, "analysis-agent"))
	require.NoError(t, db.AppendToolUse(ctx, 3, "analysis-agent", "Read"))
	require.NoError(t, db.AppendToolUse(ctx, 3, "analysis-agent", "Grep"))
	require.NoError(t, db.Complete(ctx, 3, "analysis-agent", longSummary(), 2*time.Second))

	verdict := newTestValidator(db).Validate(ctx, "analysis-agent", 3)
	require.True(t, verdict.Accepted, verdict.Reason)

	rec, err := db.Get(ctx, 3, "analysis-agent")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPassed, rec.ValidationStatus)
	require.NotNil(t, rec.ValidationTimestamp)
	assert.True(t, rec.ValidationTimestamp.Equal(fixedNow))
}

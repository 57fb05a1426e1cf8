// Package store provides access to agent execution records.
// A record is keyed by (session id, agent name) and is created when an
// agent run starts; the compliance gate reads it and writes its verdict.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the validation state of an execution record.
type Status string

const (
	StatusUnset   Status = ""
	StatusPending Status = "pending"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnset, StatusPending, StatusPassed, StatusFailed:
		return true
	}
	return false
}

// ExecutionRecord is one agent run within a session.
type ExecutionRecord struct {
	SessionID int64
	AgentName string

	// ToolsUsed is the persisted JSON array of invoked tool names, in call order.
	// Decoding is left to readers so a corrupt value never hides the rest of the row.
	ToolsUsed string

	ResultsSummary      string
	ActualDuration      time.Duration
	ValidationStatus    Status
	ValidationTimestamp *time.Time
	StartedAt           time.Time
	CompletedAt         *time.Time
}

// Key returns the record's lookup key as a display string.
func (r *ExecutionRecord) Key() string {
	return keyString(r.SessionID, r.AgentName)
}

func keyString(sessionID int64, agentName string) string {
	return fmt.Sprintf("session=%d agent=%s", sessionID, agentName)
}

func checkKey(sessionID int64, agentName string) error {
	if sessionID <= 0 || agentName == "" {
		return fmt.Errorf("%w: %s", ErrInvalidKey, keyString(sessionID, agentName))
	}
	return nil
}

// Store is the minimal interface all stores must implement.
type Store interface {
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// Reader provides read access to execution records.
type Reader interface {
	// Get returns the record for the key, or an error wrapping ErrNotFound.
	Get(ctx context.Context, sessionID int64, agentName string) (*ExecutionRecord, error)
}

// ValidationWriter records compliance verdicts.
type ValidationWriter interface {
	// UpdateValidation sets validation_status and validation_timestamp on one record.
	UpdateValidation(ctx context.Context, sessionID int64, agentName string, status Status, at time.Time) error
}

// RunWriter records the progress of an agent run.
type RunWriter interface {
	// Start creates a pending record with no tools used.
	Start(ctx context.Context, sessionID int64, agentName string) error
	// AppendToolUse appends one tool name to tools_used.
	AppendToolUse(ctx context.Context, sessionID int64, agentName, tool string) error
	// Complete stores the agent's summary and run duration.
	Complete(ctx context.Context, sessionID int64, agentName, summary string, duration time.Duration) error
}

// ExecutionStore combines every execution record operation.
// Consumers should depend on the narrowest interface they need.
type ExecutionStore interface {
	Store
	Reader
	ValidationWriter
	RunWriter
}

// DecodeTools parses a persisted tools_used value. Absent or unparsable
// values yield an empty, non-nil slice.
func DecodeTools(raw string) []string {
	tools := []string{}
	if raw == "" {
		return tools
	}
	if err := json.Unmarshal([]byte(raw), &tools); err != nil || tools == nil {
		return []string{}
	}
	return tools
}

// EncodeTools renders tool names in the persisted tools_used format.
func EncodeTools(tools []string) string {
	if tools == nil {
		tools = []string{}
	}
	data, _ := json.Marshal(tools)
	return string(data)
}

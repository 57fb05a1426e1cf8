// Package logging provides structured JSON logging for toolgate components.
// Events go to stderr; stdout belongs to the protocol channel.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Event represents a structured log event
type Event struct {
	Timestamp string         `json:"ts"`
	Level     Level          `json:"level"`
	Component string         `json:"component"`
	Event     string         `json:"event"`
	Session   int64          `json:"session,omitempty"`
	Agent     string         `json:"agent,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Duration  int64          `json:"duration_ms,omitempty"`
	Error     string         `json:"error,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

var (
	outMu    sync.Mutex
	out      io.Writer = os.Stderr
	minLevel           = LevelInfo
)

// SetOutput redirects all loggers. A nil writer restores stderr.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
}

// SetLevel sets the minimum level emitted. Unknown levels are ignored.
func SetLevel(level Level) {
	outMu.Lock()
	defer outMu.Unlock()
	if _, ok := levelRank[level]; ok {
		minLevel = level
	}
}

func emit(e Event) {
	outMu.Lock()
	defer outMu.Unlock()
	if levelRank[e.Level] < levelRank[minLevel] {
		return
	}
	data, _ := json.Marshal(e)
	fmt.Fprintln(out, string(data))
}

// Logger provides structured logging
type Logger struct {
	component string
	session   int64
	agent     string
}

// New creates a new logger for a component
func New(component string) *Logger {
	return &Logger{component: component}
}

// WithSession sets the execution-record session context
func (l *Logger) WithSession(session int64) *Logger {
	return &Logger{
		component: l.component,
		session:   session,
		agent:     l.agent,
	}
}

// WithAgent sets the agent context
func (l *Logger) WithAgent(agent string) *Logger {
	return &Logger{
		component: l.component,
		session:   l.session,
		agent:     agent,
	}
}

func (l *Logger) event(level Level, event string, extra map[string]any, err error) Event {
	e := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Component: l.component,
		Event:     event,
		Session:   l.session,
		Agent:     l.agent,
		Extra:     extra,
	}
	if err != nil {
		e.Error = err.Error()
	}
	if id, ok := extra["request_id"].(string); ok {
		e.RequestID = id
		delete(extra, "request_id")
		if len(extra) == 0 {
			e.Extra = nil
		}
	}
	return e
}

// Debug logs a debug event
func (l *Logger) Debug(event string, extra map[string]any) {
	emit(l.event(LevelDebug, event, extra, nil))
}

// Info logs an info event
func (l *Logger) Info(event string, extra map[string]any) {
	emit(l.event(LevelInfo, event, extra, nil))
}

// Warn logs a warning event
func (l *Logger) Warn(event string, extra map[string]any, err error) {
	emit(l.event(LevelWarn, event, extra, err))
}

// Error logs an error event
func (l *Logger) Error(event string, extra map[string]any, err error) {
	emit(l.event(LevelError, event, extra, err))
}

// TimedEvent logs an event with duration
func (l *Logger) TimedEvent(event string, start time.Time, extra map[string]any) {
	e := l.event(LevelInfo, event, extra, nil)
	e.Duration = time.Since(start).Milliseconds()
	emit(e)
}

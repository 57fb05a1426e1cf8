// Package metrics counts dispatch and validation outcomes and renders them in
// the Prometheus text exposition format.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds runtime counters for one toolgate process
type Metrics struct {
	// Protocol dispatch
	Requests      atomic.Int64
	ParseErrors   atomic.Int64
	MethodMissing atomic.Int64
	InternalErrs  atomic.Int64

	// Tool calls
	ToolCalls      atomic.Int64
	ToolCallErrors atomic.Int64
	UsageRecorded  atomic.Int64
	UsageFailures  atomic.Int64

	// Validation
	Validations         atomic.Int64
	ValidationsRejected atomic.Int64

	// Timing (last tool call duration in ms)
	LastToolDurationMs atomic.Int64

	mu      sync.Mutex
	perTool map[string]int64

	startTime time.Time
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// New creates an empty metrics set
func New() *Metrics {
	return &Metrics{
		perTool:   make(map[string]int64),
		startTime: time.Now(),
	}
}

// Global returns the process-wide metrics instance
func Global() *Metrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// RecordRequest records one decoded request line.
func (m *Metrics) RecordRequest() {
	m.Requests.Add(1)
}

// RecordParseError records an unparsable line
func (m *Metrics) RecordParseError() {
	m.ParseErrors.Add(1)
}

// RecordMethodNotFound records a request for an unknown method
func (m *Metrics) RecordMethodNotFound() {
	m.MethodMissing.Add(1)
}

// RecordInternalError records a request answered with an internal error
func (m *Metrics) RecordInternalError() {
	m.InternalErrs.Add(1)
}

// RecordToolCall records a call_tool dispatch
func (m *Metrics) RecordToolCall(name string, success bool, durationMs int64) {
	m.ToolCalls.Add(1)
	if !success {
		m.ToolCallErrors.Add(1)
	}
	m.LastToolDurationMs.Store(durationMs)

	m.mu.Lock()
	if m.perTool == nil {
		m.perTool = make(map[string]int64)
	}
	m.perTool[name]++
	m.mu.Unlock()
}

// RecordUsage records an attempt to append to an execution record
func (m *Metrics) RecordUsage(success bool) {
	if success {
		m.UsageRecorded.Add(1)
		return
	}
	m.UsageFailures.Add(1)
}

// RecordValidation records a validator verdict
func (m *Metrics) RecordValidation(accepted bool) {
	m.Validations.Add(1)
	if !accepted {
		m.ValidationsRejected.Add(1)
	}
}

// ToolCount returns how many times name was called
func (m *Metrics) ToolCount(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.perTool[name]
}

func counter(w io.Writer, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n\n", name, v)
}

// WriteTo writes all metrics in Prometheus text format.
func (m *Metrics) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	uptime := time.Since(m.startTime).Seconds()
	fmt.Fprintf(cw, "# HELP toolgate_uptime_seconds Time since toolgate started\n")
	fmt.Fprintf(cw, "# TYPE toolgate_uptime_seconds gauge\n")
	fmt.Fprintf(cw, "toolgate_uptime_seconds %.2f\n\n", uptime)

	counter(cw, "toolgate_requests_total", "Total protocol requests decoded", m.Requests.Load())
	counter(cw, "toolgate_parse_errors_total", "Total unparsable request lines", m.ParseErrors.Load())
	counter(cw, "toolgate_method_not_found_total", "Total requests for unknown methods", m.MethodMissing.Load())
	counter(cw, "toolgate_internal_errors_total", "Total requests answered with an internal error", m.InternalErrs.Load())
	counter(cw, "toolgate_tool_calls_total", "Total tool calls dispatched", m.ToolCalls.Load())
	counter(cw, "toolgate_tool_call_errors_total", "Total failed tool calls", m.ToolCallErrors.Load())
	counter(cw, "toolgate_usage_recorded_total", "Total tool uses appended to execution records", m.UsageRecorded.Load())
	counter(cw, "toolgate_usage_failures_total", "Total failed tool-use appends", m.UsageFailures.Load())
	counter(cw, "toolgate_validations_total", "Total agent validations", m.Validations.Load())
	counter(cw, "toolgate_validations_rejected_total", "Total rejected agent validations", m.ValidationsRejected.Load())

	m.mu.Lock()
	names := make([]string, 0, len(m.perTool))
	for name := range m.perTool {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		fmt.Fprintf(cw, "# HELP toolgate_tool_calls_by_name_total Tool calls per tool\n")
		fmt.Fprintf(cw, "# TYPE toolgate_tool_calls_by_name_total counter\n")
		for _, name := range names {
			fmt.Fprintf(cw, "toolgate_tool_calls_by_name_total{tool=%q} %d\n", name, m.perTool[name])
		}
		fmt.Fprintln(cw)
	}
	m.mu.Unlock()

	fmt.Fprintf(cw, "# HELP toolgate_last_tool_duration_ms Last tool call duration\n")
	fmt.Fprintf(cw, "# TYPE toolgate_last_tool_duration_ms gauge\n")
	fmt.Fprintf(cw, "toolgate_last_tool_duration_ms %d\n", m.LastToolDurationMs.Load())

	return cw.n, cw.err
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}

package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/joss/toolgate/internal/logging"
	"github.com/joss/toolgate/internal/metrics"
	"github.com/joss/toolgate/internal/tool"
)

// UsageRecorder appends a tool name to an execution record's tools_used.
type UsageRecorder interface {
	AppendToolUse(ctx context.Context, sessionID int64, agentName, tool string) error
}

type usage struct {
	recorder  UsageRecorder
	sessionID int64
	agentName string
}

var errNotObject = errors.New("request is not a JSON object")

type methodFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Server dispatches requests to a tool registry.
type Server struct {
	registry *tool.Registry
	info     ServerInfo
	metrics  *metrics.Metrics
	usage    *usage
	log      *logging.Logger
	methods  map[string]methodFunc
}

// Option configures a Server.
type Option func(*Server)

// WithServerInfo sets the name and version reported by initialize.
func WithServerInfo(name, version string) Option {
	return func(s *Server) { s.info = ServerInfo{Name: name, Version: version} }
}

// WithMetrics counts requests and tool calls.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithUsageRecorder records every dispatched tool call against the
// execution record (sessionID, agentName).
func WithUsageRecorder(rec UsageRecorder, sessionID int64, agentName string) Option {
	return func(s *Server) {
		if rec == nil || sessionID <= 0 || agentName == "" {
			s.usage = nil
			return
		}
		s.usage = &usage{recorder: rec, sessionID: sessionID, agentName: agentName}
	}
}

// NewServer creates a server for registry.
func NewServer(registry *tool.Registry, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		info:     ServerInfo{Name: "toolgate", Version: "dev"},
		metrics:  metrics.New(),
		log:      logging.New("protocol"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.methods = map[string]methodFunc{
		MethodInitialize: s.initialize,
		MethodListTools:  s.listTools,
		aliasListTools:   s.listTools,
		MethodCallTool:   s.callTool,
		aliasCallTool:    s.callTool,
		MethodPing:       s.ping,
		notifyInitialize: s.ping,
	}
	return s
}

// Metrics returns the server's counters.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Run reads requests from r and writes responses to w until r is
// exhausted, which is the only clean exit. It returns an error only when
// reading or writing fails or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	dec := NewDecoder(r)
	enc := NewEncoder(w)

	s.log.Info("server_started", map[string]any{
		"tools":     s.registry.Len(),
		"recording": s.usage != nil,
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := dec.ReadLine()
		if errors.Is(err, io.EOF) {
			s.log.Info("server_stopped", map[string]any{"requests": s.metrics.Requests.Load()})
			return nil
		}
		if err != nil {
			return err
		}

		resp := s.Handle(ctx, line)
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

// Handle processes one input line. It returns nil for notifications.
func (s *Server) Handle(ctx context.Context, line []byte) *Response {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte("{")) {
		return s.rejectLine(line, errNotObject)
	}
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return s.rejectLine(line, err)
	}
	s.metrics.RecordRequest()

	requestID := logging.NewRequestID()
	ctx = logging.WithRequestID(ctx, requestID)
	start := time.Now()

	method, ok := s.methods[req.Method]
	if !ok {
		s.metrics.RecordMethodNotFound()
		s.log.Debug("method_not_found", map[string]any{"method": req.Method, "request_id": requestID})
		if req.IsNotification() {
			return nil
		}
		return newError(req.ID, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}

	var result any
	err := logging.NewRecoveryHandler("protocol").WrapError(func() error {
		var err error
		result, err = method(ctx, req.Params)
		return err
	})

	s.log.Debug("request_handled", map[string]any{
		"method":      req.Method,
		"request_id":  requestID,
		"duration_ms": time.Since(start).Milliseconds(),
		"ok":          err == nil,
	})

	if req.IsNotification() {
		return nil
	}
	if err != nil {
		s.metrics.RecordInternalError()
		return newError(req.ID, CodeInternalError, err.Error(), errorData(err))
	}
	return newResult(req.ID, result)
}

// rejectLine answers a line that is not a request object. When the line
// is a JSON object whose id can still be read, the id is echoed.
func (s *Server) rejectLine(line []byte, cause error) *Response {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if bytes.HasPrefix(line, []byte("{")) && json.Unmarshal(line, &probe) == nil && len(probe.ID) > 0 {
		s.metrics.RecordInternalError()
		return newError(probe.ID, CodeInternalError, fmt.Sprintf("Invalid request: %v", cause), nil)
	}

	s.metrics.RecordParseError()
	s.log.Warn("parse_error", map[string]any{"bytes": len(line)}, cause)
	return newError(nil, CodeParseError, "Parse error", nil)
}

func errorData(err error) any {
	name, ok := tool.ToolName(err)
	if !ok {
		return nil
	}
	data := map[string]any{"tool": name}
	var unknown *tool.UnknownToolError
	if errors.As(err, &unknown) && len(unknown.Suggestions) > 0 {
		data["suggestions"] = unknown.Suggestions
	}
	var schema *tool.SchemaError
	if errors.As(err, &schema) {
		data["violations"] = schema.Violations
	}
	return data
}

func (s *Server) initialize(ctx context.Context, params json.RawMessage) (any, error) {
	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ServerInfo:      s.info,
	}, nil
}

func (s *Server) ping(ctx context.Context, params json.RawMessage) (any, error) {
	return map[string]any{}, nil
}

func (s *Server) listTools(ctx context.Context, params json.RawMessage) (any, error) {
	defs := s.registry.List()
	out := &ListToolsResult{Tools: make([]ToolDescriptor, 0, len(defs))}
	for _, d := range defs {
		out.Tools = append(out.Tools, ToolDescriptor{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return out, nil
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, error) {
	var p CallToolParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("invalid call_tool params: %w", err)
		}
	}
	if p.Name == "" {
		return nil, fmt.Errorf("invalid call_tool params: missing tool name")
	}

	start := time.Now()
	res, err := s.registry.Invoke(ctx, p.Name, p.Arguments)
	s.metrics.RecordToolCall(p.Name, err == nil && res.Error == nil, time.Since(start).Milliseconds())
	if err != nil {
		s.log.Warn("tool_call_failed", map[string]any{
			"tool":       p.Name,
			"request_id": logging.GetRequestID(ctx),
		}, err)
		return nil, err
	}

	s.recordUsage(ctx, p.Name)

	return &CallToolResult{
		Content: []Content{{Type: "text", Text: res.Text()}},
		IsError: res.Error != nil,
	}, nil
}

// recordUsage appends name to the configured execution record. Failures
// are logged and never reach the caller.
func (s *Server) recordUsage(ctx context.Context, name string) {
	if s.usage == nil {
		return
	}
	err := s.usage.recorder.AppendToolUse(ctx, s.usage.sessionID, s.usage.agentName, name)
	s.metrics.RecordUsage(err == nil)
	if err != nil {
		s.log.WithSession(s.usage.sessionID).WithAgent(s.usage.agentName).Warn("record_usage_failed", map[string]any{
			"tool":       name,
			"request_id": logging.GetRequestID(ctx),
		}, err)
	}
}

// Package protocol serves a tool registry over line-delimited JSON-RPC.
//
// Each input line holds one request object; each response is written as
// one line, in arrival order:
//
//	-> {"jsonrpc":"2.0","id":1,"method":"call_tool","params":{"name":"Read","arguments":{"file_path":"go.mod"}}}
//	<- {"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"..."}]}}
//
// Requests are handled one at a time; the next line is not read until the
// current response has been written.
package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	// Version is the JSON-RPC version tag on every response.
	Version = "2.0"
	// ProtocolVersion is reported by initialize.
	ProtocolVersion = "2024-11-05"
)

// Error codes
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// Methods. The slash forms are accepted as aliases.
const (
	MethodInitialize = "initialize"
	MethodListTools  = "list_tools"
	MethodCallTool   = "call_tool"
	MethodPing       = "ping"

	aliasListTools   = "tools/list"
	aliasCallTool    = "tools/call"
	notifyInitialize = "notifications/initialized"
)

// Request is one decoded input line. ID is kept raw so string and number
// ids are echoed unchanged.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is one output line. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

func newResult(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

func newError(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	}
}

// ServerInfo names the server in the initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the initialize reply.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ToolDescriptor is one entry of the list_tools reply.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ListToolsResult is the list_tools reply.
type ListToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// CallToolParams are the call_tool parameters.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Content is one block of a call_tool reply.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the call_tool reply.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

package tool

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownTool     = errors.New("unknown tool")
	ErrSchemaViolation = errors.New("invalid arguments")
	ErrHandlerFailure  = errors.New("tool failed")
	ErrDuplicateTool   = errors.New("duplicate tool name")
	// ErrInvalidArgs is returned by handlers for argument values the schema
	// cannot express, such as an empty path.
	ErrInvalidArgs = errors.New("invalid argument value")
)

// UnknownToolError is returned when no tool is registered under Name.
type UnknownToolError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownToolError) Error() string {
	msg := fmt.Sprintf("unknown tool: %s", e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *UnknownToolError) Unwrap() error {
	return ErrUnknownTool
}

// SchemaError lists the ways arguments failed the tool's input schema.
type SchemaError struct {
	Tool       string
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, strings.Join(e.Violations, "; "))
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaViolation
}

// HandlerError wraps an error returned (or a panic raised) by a handler.
type HandlerError struct {
	Tool string
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *HandlerError) Unwrap() []error {
	return []error{ErrHandlerFailure, e.Err}
}

// ToolName extracts the tool name from any of the registry's error types.
func ToolName(err error) (string, bool) {
	var unknown *UnknownToolError
	if errors.As(err, &unknown) {
		return unknown.Name, true
	}
	var schema *SchemaError
	if errors.As(err, &schema) {
		return schema.Tool, true
	}
	var handler *HandlerError
	if errors.As(err, &handler) {
		return handler.Tool, true
	}
	return "", false
}

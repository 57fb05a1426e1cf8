// Package tool holds the named operations a toolgate server exposes.
//
// A Registry is built once per process from a catalog of handlers. Each
// handler declares a JSON Schema for its arguments; Invoke validates
// arguments against it before the handler runs.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/joss/toolgate/internal/logging"
)

// Schema is a JSON Schema object describing a tool's arguments.
type Schema map[string]any

// Definition is a tool's advertised name, description and input schema.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema Schema `json:"inputSchema"`
}

// Handler is the interface all tools must implement
type Handler interface {
	Info() Definition
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

// Result holds the output of a tool execution
type Result struct {
	Title    string
	Output   string
	Metadata map[string]any
	// Error is a soft failure: the call ran but did not succeed. It is
	// reported to the caller inside the call result.
	Error error
}

// Text renders the result as the single text content block of a call reply.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	if r.Output != "" {
		return r.Output
	}
	if len(r.Metadata) > 0 {
		data, err := json.Marshal(r.Metadata)
		if err == nil {
			return string(data)
		}
	}
	if r.Error != nil {
		return r.Error.Error()
	}
	return r.Title
}

type entry struct {
	handler Handler
	def     Definition
	schema  *gojsonschema.Schema
}

// Registry holds the tools of one server. It is not modified after
// construction, so lookups need no locking.
type Registry struct {
	order   []string
	entries map[string]*entry
	log     *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		log:     logging.New("tool"),
	}
}

// NewRegistryWith registers every handler, failing on the first error.
func NewRegistryWith(handlers ...Handler) (*Registry, error) {
	r := NewRegistry()
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a handler. Names must be unique and the declared schema
// must compile.
func (r *Registry) Register(h Handler) error {
	def := h.Info()
	if def.Name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	if _, ok := r.entries[def.Name]; ok {
		return fmt.Errorf("register tool %s: %w", def.Name, ErrDuplicateTool)
	}
	if def.InputSchema == nil {
		def.InputSchema = Schema{"type": "object", "properties": map[string]any{}}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.InputSchema))
	if err != nil {
		return fmt.Errorf("register tool %s: compile schema: %w", def.Name, err)
	}

	r.entries[def.Name] = &entry{handler: h, def: def, schema: schema}
	r.order = append(r.order, def.Name)
	return nil
}

// List returns all definitions in registration order.
func (r *Registry) List() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.entries[name].def)
	}
	return defs
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (Handler, bool) {
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.handler, true
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Invoke validates args and runs the named tool. The returned error is an
// *UnknownToolError, *SchemaError or *HandlerError; soft failures are
// carried in Result.Error instead.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (*Result, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, &UnknownToolError{Name: name, Suggestions: suggest(name, r.order)}
	}
	if args == nil {
		args = map[string]any{}
	}

	if err := validate(e.def.Name, e.schema, args); err != nil {
		return nil, err
	}

	start := time.Now()
	var result *Result
	err := logging.NewRecoveryHandler("tool").WrapError(func() error {
		var err error
		result, err = e.handler.Execute(ctx, args)
		return err
	})
	if err != nil {
		r.log.Warn("tool_failed", map[string]any{"tool": name}, err)
		return nil, &HandlerError{Tool: name, Err: err}
	}
	if result == nil {
		result = &Result{}
	}

	r.log.Debug("tool_executed", map[string]any{
		"tool":        name,
		"duration_ms": time.Since(start).Milliseconds(),
		"soft_error":  result.Error != nil,
	})
	return result, nil
}

package logging

import (
	"fmt"
	"runtime/debug"
)

// RecoveryHandler turns panics in dispatched work into errors so a single
// bad request or tool call cannot stop the serving loop.
type RecoveryHandler struct {
	Component string
}

// NewRecoveryHandler creates a recovery handler for a component
func NewRecoveryHandler(component string) *RecoveryHandler {
	return &RecoveryHandler{Component: component}
}

// WrapError runs fn. A panic is logged with its stack and returned as a
// *PanicError; otherwise fn's own error is returned unchanged.
func (r *RecoveryHandler) WrapError(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			perr := &PanicError{Component: r.Component, Value: rec, Stack: string(debug.Stack())}
			New(r.Component).Error("panic_recovered", map[string]any{"stack": perr.Stack}, fmt.Errorf("%v", rec))
			err = perr
		}
	}()
	return fn()
}

// PanicError is returned by WrapError when fn panicked.
type PanicError struct {
	Component string
	Value     any
	Stack     string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Component, e.Value)
}

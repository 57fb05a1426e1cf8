package compliance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joss/toolgate/internal/logging"
	"github.com/joss/toolgate/internal/metrics"
	"github.com/joss/toolgate/internal/store"
)

// MinSummaryLength is the trimmed results_summary length, in characters,
// below which a run counts as having produced no output.
const MinSummaryLength = 100

// RecordStore is the part of the execution store the validator needs.
type RecordStore interface {
	store.Reader
	store.ValidationWriter
}

// Verdict is the outcome of validating one agent run.
type Verdict struct {
	Accepted    bool
	Reason      string
	Category    string
	ToolsUsed   []string
	Requirement Requirement
	// Err wraps one of the package's rejection errors; nil when accepted.
	Err error
}

// Validator gates completed agent runs.
type Validator struct {
	store           RecordStore
	policy          *Policy
	persistFailures bool
	now             func() time.Time
	metrics         *metrics.Metrics
	log             *logging.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithPolicy replaces the default category table.
func WithPolicy(p *Policy) Option {
	return func(v *Validator) { v.policy = p }
}

// WithFailurePersistence controls whether rejections are written to the
// store as "failed". Enabled by default.
func WithFailurePersistence(enabled bool) Option {
	return func(v *Validator) { v.persistFailures = enabled }
}

// WithClock sets the time source for validation timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// WithMetrics counts verdicts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// NewValidator creates a validator over the given store.
func NewValidator(s RecordStore, opts ...Option) *Validator {
	v := &Validator{
		store:           s,
		policy:          DefaultPolicy(),
		persistFailures: true,
		now:             time.Now,
		log:             logging.New("compliance"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check is Validate reduced to (accepted, reason).
func (v *Validator) Check(ctx context.Context, agentName string, sessionID int64) (bool, string) {
	verdict := v.Validate(ctx, agentName, sessionID)
	return verdict.Accepted, verdict.Reason
}

// Validate fetches the run's record, applies the policy and stores the
// verdict. It never panics or returns an error: every failure becomes a
// rejected Verdict with a reason.
func (v *Validator) Validate(ctx context.Context, agentName string, sessionID int64) Verdict {
	start := time.Now()
	log := v.log.WithSession(sessionID).WithAgent(agentName)

	var verdict Verdict
	err := logging.NewRecoveryHandler("compliance").WrapError(func() error {
		verdict = v.validate(ctx, agentName, sessionID)
		return nil
	})
	if err != nil {
		verdict = Verdict{
			Reason: fmt.Sprintf("Validation error: %v", err),
			Err:    fmt.Errorf("%w: %w", ErrStoreUnavailable, err),
		}
	}

	if v.metrics != nil {
		v.metrics.RecordValidation(verdict.Accepted)
	}

	extra := map[string]any{
		"accepted": verdict.Accepted,
		"reason":   verdict.Reason,
		"category": verdict.Category,
	}
	if verdict.Accepted {
		log.TimedEvent("validation_passed", start, extra)
	} else {
		log.Warn("validation_rejected", extra, verdict.Err)
	}
	return verdict
}

func (v *Validator) validate(ctx context.Context, agentName string, sessionID int64) Verdict {
	rec, err := v.store.Get(ctx, sessionID, agentName)
	if err != nil {
		if store.IsNotFound(err) {
			return Verdict{
				Reason: fmt.Sprintf("No execution record for agent %s in session %d", agentName, sessionID),
				Err:    fmt.Errorf("%w: %w", ErrRecordNotFound, err),
			}
		}
		return Verdict{
			Reason: fmt.Sprintf("Validation error: %v", err),
			Err:    fmt.Errorf("%w: %w", ErrStoreUnavailable, err),
		}
	}

	tools := store.DecodeTools(rec.ToolsUsed)
	req, category := v.policy.Resolve(agentName)

	verdict := evaluate(tools, rec.ResultsSummary, req)
	verdict.Category = category
	verdict.ToolsUsed = tools
	verdict.Requirement = req

	if verdict.Accepted {
		if err := v.store.UpdateValidation(ctx, sessionID, agentName, store.StatusPassed, v.now()); err != nil {
			return Verdict{
				Category:    category,
				ToolsUsed:   tools,
				Requirement: req,
				Reason:      fmt.Sprintf("Validation error: %v", err),
				Err:         fmt.Errorf("%w: %w", ErrStoreUnavailable, err),
			}
		}
		return verdict
	}

	if v.persistFailures {
		if err := v.store.UpdateValidation(ctx, sessionID, agentName, store.StatusFailed, v.now()); err != nil {
			v.log.WithSession(sessionID).WithAgent(agentName).Warn("persist_failure_status", nil, err)
		}
	}
	return verdict
}

// evaluate applies req to a decoded record. It is pure.
func evaluate(tools []string, summary string, req Requirement) Verdict {
	if len(tools) < req.MinToolsRequired {
		return Verdict{
			Reason: fmt.Sprintf("Used %d tools, minimum %d required", len(tools), req.MinToolsRequired),
			Err:    ErrInsufficientToolUsage,
		}
	}

	if !req.Overlaps(tools) {
		return Verdict{
			Reason: fmt.Sprintf("Must use at least one of: %s", strings.Join(req.RequiredTools, ", ")),
			Err:    ErrMissingRequiredTool,
		}
	}

	if utf8.RuneCountInString(strings.TrimSpace(summary)) < MinSummaryLength {
		return Verdict{
			Reason: "Insufficient output produced",
			Err:    ErrInsufficientOutput,
		}
	}

	return Verdict{Accepted: true, Reason: "Validation passed"}
}

// IsRejection reports whether err is one of the policy rejections, as
// opposed to a missing record or an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInsufficientToolUsage) ||
		errors.Is(err, ErrMissingRequiredTool) ||
		errors.Is(err, ErrInsufficientOutput)
}

// Package procedure holds what every protocol procedure shares: its phases,
// its error taxonomy, the retry bound and per-run instrumentation.
package procedure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/gnb-controlplane/internal/async"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
)

const tracerName = "github.com/signalsfoundry/gnb-controlplane/internal/procedure"

var (
	// ErrTimeout is returned by procedures whose peer never answered within
	// the allowed attempts.
	ErrTimeout = errors.New("procedure: no response before timeout")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("procedure: validation failed")
)

// Phase is where a procedure run currently is.
type Phase uint8

const (
	PhaseInit Phase = iota
	PhaseAwaitingResponse
	PhaseRetrying
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseAwaitingResponse:
		return "awaiting_response"
	case PhaseRetrying:
		return "retrying"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// ValidationError reports a request that cannot be built or a response that
// cannot be interpreted.
type ValidationError struct {
	Procedure string
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: invalid message: %s", e.Procedure, e.Reason)
	}
	return fmt.Sprintf("%s: invalid %s: %s", e.Procedure, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(procedure, field, format string, args ...any) *ValidationError {
	return &ValidationError{Procedure: procedure, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// RetryPolicy bounds the number of attempts a procedure makes.
type RetryPolicy struct {
	MaxAttempts int
}

// Attempts returns the effective bound, at least one.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// CanRetry reports whether another attempt may follow attempt (1-based).
func (p RetryPolicy) CanRetry(attempt int) bool {
	return attempt < p.Attempts()
}

// Outcomer is implemented by procedure results that distinguish kinds of
// normal completion (for example "rejected" or "partial").
type Outcomer interface {
	Outcome() string
}

// Recorder receives one observation per finished procedure run.
type Recorder interface {
	ObserveProcedure(name, outcome string, elapsed time.Duration)
}

// Run is the instrumentation of one procedure run: a span, a logger
// carrying the procedure id, and the outcome recorded on completion.
type Run struct {
	Name  string
	Log   logging.Logger
	start time.Time
	span  trace.Span
	rec   Recorder
}

// Begin starts instrumenting a procedure run. The returned context carries
// the span, the procedure id and the annotated logger; use it as the task's
// context.
func Begin(ctx context.Context, name string, log logging.Logger, rec Recorder, attrs ...attribute.KeyValue) (context.Context, *Run) {
	ctx, plog := logging.WithProcedureLogger(ctx, logging.OrNoop(log).With(logging.String("procedure", name)))
	ctx, span := otel.Tracer(tracerName).Start(ctx, name,
		trace.WithAttributes(append(attrs,
			attribute.String("procedure.id", logging.ProcedureIDFromContext(ctx)),
		)...),
	)
	ctx = logging.ContextWithLogger(ctx, plog)
	return ctx, &Run{Name: name, Log: plog, start: time.Now(), span: span, rec: rec}
}

// Attach arranges for the run to be closed when task finishes and returns
// task.
func (r *Run) Attach(task *async.Task) *async.Task {
	task.OnComplete(func(t *async.Task) {
		v, err := t.Result()
		r.finish(Outcome(v, err), err)
	})
	return task
}

// Event adds a span event, used to mark phase changes.
func (r *Run) Event(name string, attrs ...attribute.KeyValue) {
	r.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (r *Run) finish(outcome string, err error) {
	elapsed := time.Since(r.start)
	r.span.SetAttributes(attribute.String("procedure.outcome", outcome))
	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
	}
	r.span.End()
	if r.rec != nil {
		r.rec.ObserveProcedure(r.Name, outcome, elapsed)
	}
	fields := []logging.Field{logging.String("outcome", outcome), logging.Duration("elapsed", elapsed)}
	if err != nil {
		r.Log.Warn(context.Background(), "procedure finished", append(fields, logging.Err(err))...)
		return
	}
	r.Log.Info(context.Background(), "procedure finished", fields...)
}

// Outcome classifies a finished run for metrics and logs.
func Outcome(v any, err error) string {
	switch {
	case err == nil:
		if o, ok := v.(Outcomer); ok {
			return o.Outcome()
		}
		return "success"
	case errors.Is(err, async.ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

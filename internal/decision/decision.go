package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"needle/internal/logging"
)

// Category groups rejections for display. It never drives acceptance.
type Category string

const (
	Permanent Category = "permanent"
	Temporary Category = "temporary"
)

// Rejection is one reason a subject was not accepted.
type Rejection struct {
	Reason   string
	Category Category
}

func (r Rejection) String() string { return r.Reason }

// Decision is the outcome of evaluating a subject. It is accepted exactly when
// it carries no rejections.
type Decision[T any] struct {
	Subject    T
	Rejections []Rejection
}

// NewDecision returns a decision over subject with the given rejections.
func NewDecision[T any](subject T, rejections ...Rejection) *Decision[T] {
	return &Decision[T]{Subject: subject, Rejections: rejections}
}

// Accepted reports whether the decision has no rejections.
func (d *Decision[T]) Accepted() bool { return len(d.Rejections) == 0 }

// TemporarilyRejected reports whether every rejection is temporary.
func (d *Decision[T]) TemporarilyRejected() bool {
	if d.Accepted() {
		return false
	}
	for _, r := range d.Rejections {
		if r.Category != Temporary {
			return false
		}
	}
	return true
}

// Reasons returns the rejection reasons in order.
func (d *Decision[T]) Reasons() []string {
	reasons := make([]string, 0, len(d.Rejections))
	for _, r := range d.Rejections {
		reasons = append(reasons, r.Reason)
	}
	return reasons
}

// Result is what one specification concludes.
type Result struct {
	Accepted bool
	Reason   string
	Category Category
}

// Accept returns an accepting result.
func Accept() Result { return Result{Accepted: true} }

// Reject returns a permanent rejection.
func Reject(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...), Category: Permanent}
}

// RejectTemporarily returns a rejection that may clear on its own.
func RejectTemporarily(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...), Category: Temporary}
}

// Specification is one independent acceptance predicate. Specifications that
// do not apply to a subject accept it.
type Specification[T, C any] interface {
	Name() string
	Evaluate(ctx context.Context, subject T, criteria C) (Result, error)
}

// Evaluate runs every specification against subject and collects all
// rejections. Errors and panics inside a specification become a rejection
// named after it; evaluation continues with the next specification.
func Evaluate[T, C any](ctx context.Context, logger *slog.Logger, specs []Specification[T, C], subject T, criteria C) []Rejection {
	var rejections []Rejection
	for _, spec := range specs {
		result, err := evaluateOne(ctx, spec, subject, criteria)
		if err != nil {
			attrs := []logging.Attr{
				logging.String("specification", spec.Name()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the subject was rejected; check the specification's collaborators"),
			}
			var pe *PanicError
			if errors.As(err, &pe) {
				attrs = append(attrs, logging.String("stack", pe.Stack))
			}
			logging.ErrorWithContext(logger, "specification failed", "specification_error", attrs...)
			rejections = append(rejections, Rejection{Reason: fmt.Sprintf("%s: %v", spec.Name(), err), Category: Permanent})
			continue
		}
		if !result.Accepted {
			category := result.Category
			if category == "" {
				category = Permanent
			}
			rejections = append(rejections, Rejection{Reason: result.Reason, Category: category})
		}
	}
	return rejections
}

func evaluateOne[T, C any](ctx context.Context, spec Specification[T, C], subject T, criteria C) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return spec.Evaluate(ctx, subject, criteria)
}

// PanicError is a recovered panic converted to an error at an item boundary.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Recovered converts a recover() value into an error, or nil.
func Recovered(r any) error {
	if r == nil {
		return nil
	}
	return &PanicError{Value: r, Stack: string(debug.Stack())}
}

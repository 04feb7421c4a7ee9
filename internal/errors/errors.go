// Package errors categorizes pipeline failures so callers can decide
// whether a failure is fatal to the process or scoped to one signal.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Category is the failure class of a TradeError.
type Category string

const (
	// RiskRejected: a pre-trade check failed. The signal is cancelled or
	// left for the next cycle.
	RiskRejected Category = "RISK_REJECTED"
	// DataUnavailable: a price or history fetch failed. The symbol is
	// skipped for this cycle.
	DataUnavailable Category = "DATA_UNAVAILABLE"
	// ApprovalTimeout: no recognized reply before the deadline.
	ApprovalTimeout Category = "APPROVAL_TIMEOUT"
	// ExecutionFailure: the venue rejected, timed out or errored.
	ExecutionFailure Category = "EXECUTION_FAILURE"
	// ConfigurationFatal: required configuration or credentials are
	// missing. The process must not enter the pipeline.
	ConfigurationFatal Category = "CONFIGURATION_FATAL"
)

// TradeError is a categorized error with the component and operation
// where it happened.
type TradeError struct {
	Category  Category
	Component string
	Operation string
	Message   string
	Err       error
}

func (e *TradeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

// New creates a TradeError without an underlying cause.
func New(cat Category, component, operation, message string) *TradeError {
	return &TradeError{
		Category:  cat,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// Wrap attaches a category to err. A nil err returns nil.
func Wrap(err error, cat Category, component, operation, message string) error {
	if err == nil {
		return nil
	}
	return &TradeError{
		Category:  cat,
		Component: component,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// CategoryOf returns the category of the first TradeError in err's chain.
func CategoryOf(err error) (Category, bool) {
	var te *TradeError
	if stderrors.As(err, &te) {
		return te.Category, true
	}
	return "", false
}

// Is reports whether err carries the given category.
func Is(err error, cat Category) bool {
	c, ok := CategoryOf(err)
	return ok && c == cat
}

// IsFatal reports whether err must stop the process.
func IsFatal(err error) bool {
	return Is(err, ConfigurationFatal)
}

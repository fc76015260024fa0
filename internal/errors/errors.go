// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors
var (
	ErrDuplicatePosition  = errors.New("open position already exists")
	ErrUnknownPosition    = errors.New("position not found")
	ErrAlreadyClosed      = errors.New("position already closed")
	ErrInsufficientCash   = errors.New("insufficient cash")
	ErrAlreadyInitialized = errors.New("ledger already initialized")
	ErrNotInitialized     = errors.New("ledger not initialized")
	ErrDateMismatch       = errors.New("date is not the ledger's current date")
	ErrCorruptState       = errors.New("ledger state inconsistent with store")
	ErrTimeout            = errors.New("operation timed out")
	ErrOrderRejected      = errors.New("order rejected")
)

// Rule identifies a risk or sizing rule.
type Rule string

const (
	RuleTradingWindow    Rule = "TradingWindowViolation"
	RuleCircuitBreaker   Rule = "CircuitBreakerActive"
	RuleMaxPositions     Rule = "MaxPositionsReached"
	RuleDuplicate        Rule = "DuplicatePosition"
	RulePositionSize     Rule = "PositionSizeExceeded"
	RuleInvalidStopLoss  Rule = "InvalidStopLoss"
	RuleInsufficientCash Rule = "InsufficientCash"
	RuleRedFlagVeto      Rule = "RedFlagVeto"
	RuleNoOpenPosition   Rule = "NoOpenPosition"
	RuleQuantity         Rule = "QuantityMismatch"
	RuleNoViableSize     Rule = "NoViableSize"
)

// ValidationError represents a single recoverable rule violation.
type ValidationError struct {
	Rule    Rule
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [%s]: %s", e.Rule, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(rule Rule, message string) *ValidationError {
	return &ValidationError{Rule: rule, Message: message}
}

// RejectionError aggregates every violated rule for one intent.
type RejectionError struct {
	Symbol     string
	Violations []*ValidationError
}

func (e *RejectionError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, string(v.Rule))
	}
	return fmt.Sprintf("trade rejected for %s: %s", e.Symbol, strings.Join(parts, ", "))
}

// Rules returns the violated rules in evaluation order.
func (e *RejectionError) Rules() []Rule {
	rules := make([]Rule, 0, len(e.Violations))
	for _, v := range e.Violations {
		rules = append(rules, v.Rule)
	}
	return rules
}

// StateError signals caller or data inconsistency in the ledger.
type StateError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *StateError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("state error [%s] %s: %v", e.Op, e.Symbol, e.Err)
	}
	return fmt.Sprintf("state error [%s]: %v", e.Op, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// NewStateError creates a new StateError.
func NewStateError(op, symbol string, err error) *StateError {
	return &StateError{Op: op, Symbol: symbol, Err: err}
}

// ExternalError represents a collaborator timeout or failure.
type ExternalError struct {
	Collaborator string
	Symbol       string
	Err          error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("external error [%s] %s: %v", e.Collaborator, e.Symbol, e.Err)
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

// NewExternalError creates a new ExternalError.
func NewExternalError(collaborator, symbol string, err error) *ExternalError {
	return &ExternalError{Collaborator: collaborator, Symbol: symbol, Err: err}
}

// FatalError means the ledger can no longer be trusted; the process must halt.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error [%s]: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatalError creates a new FatalError.
func NewFatalError(op string, err error) *FatalError {
	return &FatalError{Op: op, Err: err}
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

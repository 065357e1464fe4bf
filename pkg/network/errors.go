package network

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dd0wney/cluso-hydraulics/pkg/validation"
)

// Sentinel errors
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateID      = errors.New("duplicate identifier")
	ErrInvalidNetwork   = errors.New("invalid network")
	ErrMissingReference = errors.New("missing reference")
)

// NotFoundError reports a lookup of an unknown identifier
type NotFoundError struct {
	Entity string // "node", "link", "pattern", "curve"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// Is matches ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError lists every violation found by Validate
type ValidationError struct {
	Violations []validation.Violation
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "network validation failed with %d violation(s)", len(e.Violations))
	for _, v := range e.Violations {
		b.WriteString("\n  ")
		b.WriteString(v.Error())
	}
	return b.String()
}

// Is matches ErrInvalidNetwork
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidNetwork
}

// ConfigError reports a reference to a pattern or curve that does not exist
type ConfigError struct {
	Op     string // operation that needed the reference, e.g. "demand"
	Owner  string // e.g. "junction 12"
	Entity string // "pattern" or "curve"
	ID     string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("%s: %s references %s %q: %v", e.Op, e.Owner, e.Entity, e.ID, e.Cause)
	}
	return fmt.Sprintf("%s: %s %q: %v", e.Op, e.Entity, e.ID, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// MissingPattern builds the ConfigError for an unknown pattern
func MissingPattern(op, owner, id string) error {
	return &ConfigError{Op: op, Owner: owner, Entity: "pattern", ID: id, Cause: ErrMissingReference}
}

// MissingCurve builds the ConfigError for an unknown curve
func MissingCurve(op, owner, id string) error {
	return &ConfigError{Op: op, Owner: owner, Entity: "curve", ID: id, Cause: ErrMissingReference}
}

// IsNotFound returns true if err is a lookup failure
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

var errPositiveStep = errors.New("time step must be positive")

package inp

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrMalformed        = errors.New("malformed input")
	ErrDuplicateSection = errors.New("duplicate section")
	ErrOrphanLine       = errors.New("data before first section header")
)

// ParseError locates a malformed line of a network file
type ParseError struct {
	Line    int    // 1-based line number, 0 when not tied to a line
	Section string // upper-case section name without brackets
	Text    string // offending line, trimmed
	Msg     string
	Cause   error
}

func (e *ParseError) Error() string {
	loc := fmt.Sprintf("[%s]", e.Section)
	if e.Line > 0 {
		loc = fmt.Sprintf("line %d %s", e.Line, loc)
	}
	if e.Text != "" {
		return fmt.Sprintf("%s: %s: %q", loc, e.Msg, e.Text)
	}
	return fmt.Sprintf("%s: %s", loc, e.Msg)
}

func (e *ParseError) Unwrap() error {
	if e.Cause == nil {
		return ErrMalformed
	}
	return e.Cause
}

func newParseError(l Line, section, format string, args ...any) *ParseError {
	return &ParseError{Line: l.No, Section: section, Text: l.Text, Msg: fmt.Sprintf(format, args...)}
}

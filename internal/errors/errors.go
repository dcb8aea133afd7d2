// Package errors defines the structured error type and taxonomy used
// across carver. Per-block and per-file failures are captured as data in
// the batch report; only configuration errors are fatal, before any file is
// touched.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypePath      ErrorType = "path"
	ErrorTypeParse     ErrorType = "parse"
	ErrorTypeIO        ErrorType = "io"
	ErrorTypeCancelled ErrorType = "cancelled"
	ErrorTypeInternal  ErrorType = "internal"
)

// CarverError is a structured error type with context.
type CarverError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	FilePath string
	Line     int
}

// Error implements the error interface.
func (e *CarverError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *CarverError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by type and code.
func (e *CarverError) Is(target error) bool {
	var t *CarverError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithFile adds source file context.
func (e *CarverError) WithFile(path string) *CarverError {
	e.FilePath = path
	return e
}

// WithLine adds line context.
func (e *CarverError) WithLine(line int) *CarverError {
	e.Line = line
	return e
}

// NewConfigError creates a configuration error. These are fatal and abort
// before any processing starts.
func NewConfigError(code, message string) *CarverError {
	return &CarverError{Type: ErrorTypeConfig, Code: code, Message: message}
}

// NewPathError creates a path rejection error.
func NewPathError(code, message string) *CarverError {
	return &CarverError{Type: ErrorTypePath, Code: code, Message: message}
}

// NewParseError creates a parse error.
func NewParseError(code, message string) *CarverError {
	return &CarverError{Type: ErrorTypeParse, Code: code, Message: message}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *CarverError {
	return &CarverError{Type: ErrorTypeIO, Code: code, Message: message, Cause: cause}
}

// ErrCancelled is returned when the user aborts an interactive update. It
// stops the batch immediately; writes already applied remain.
var ErrCancelled = &CarverError{
	Type:    ErrorTypeCancelled,
	Code:    "cancelled",
	Message: "operation cancelled",
}

// IsCancelled reports whether err represents a user cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	var ce *CarverError
	return errors.As(err, &ce) && ce.Type == ErrorTypeConfig
}

// Collector accumulates per-file errors without stopping the batch.
type Collector struct {
	mu   sync.Mutex
	errs []error
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add records an error. Nil errors are ignored.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

// HasErrors reports whether any error was recorded.
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs) > 0
}

// Errors returns a copy of the recorded errors.
func (c *Collector) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.errs))
	copy(out, c.errs)
	return out
}

// Package errors provides centralized error definitions and error handling utilities
// for dl1merge. It defines domain-specific errors, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - ProcessError: a foreign process (merge tool, scheduler) failed
//   - LayoutError: the production directory does not have the expected layout
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//
// # Usage
//
//	err := errors.NewProcessError("sbatch", []string{"--parsable"}, 1).WithStderr(out)
//	if errors.Is(err, errors.ErrProcessFailed) { ... }
//
//	var layoutErr *errors.LayoutError
//	if errors.As(err, &layoutErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Readiness-related sentinel errors
var (
	// ErrAborted indicates that the operator declined to continue.
	ErrAborted = New("aborted by operator")
	// ErrIncomplete indicates that a file set is missing expected files.
	ErrIncomplete = New("file set incomplete")
	// ErrJobLogsFailed indicates that upstream job logs report failures.
	ErrJobLogsFailed = New("job logs report failures")
	// ErrNotInteractive indicates that a confirmation was needed but no terminal is attached.
	ErrNotInteractive = New("confirmation required but stdin is not a terminal")
)

// Dispatch and relocation sentinel errors
var (
	// ErrProcessFailed indicates that a foreign process exited unsuccessfully.
	ErrProcessFailed = New("process failed")
	// ErrNoJobID indicates that the scheduler did not print a job identifier.
	ErrNoJobID = New("scheduler returned no job id")
	// ErrMergeOutputMissing indicates that a merged archive was not produced.
	ErrMergeOutputMissing = New("merge output missing")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrNotFound indicates a missing resource.
	ErrNotFound = New("not found")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// PipelineError is the base interface for all dl1merge errors.
type PipelineError interface {
	error
	Unwrap() error
	Is(target error) bool
	Severity() Severity
	IsUserFacing() bool
}

type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ProcessError represents an external command that did not succeed.
//
// Example:
//
//	err := errors.NewProcessError("lstchain_merge_hdf5_files", args, 2).WithStderr("no such dir")
//	fmt.Println(err) // "process error [cmd=lstchain_merge_hdf5_files, exit=2]: ..."
type ProcessError struct {
	baseError
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
}

// NewProcessError creates a new ProcessError.
func NewProcessError(name string, args []string, exitCode int) *ProcessError {
	return &ProcessError{
		baseError: baseError{
			message:    "command exited unsuccessfully",
			severity:   SeverityError,
			userFacing: true,
		},
		Name:     name,
		Args:     args,
		ExitCode: exitCode,
	}
}

// WithCause adds a cause to the error.
func (e *ProcessError) WithCause(cause error) *ProcessError {
	e.cause = cause
	return e
}

// WithStderr attaches the captured standard error of the process.
func (e *ProcessError) WithStderr(stderr string) *ProcessError {
	e.Stderr = strings.TrimSpace(stderr)
	return e
}

// CommandLine returns the command as it would be typed in a shell.
func (e *ProcessError) CommandLine() string {
	return strings.TrimSpace(e.Name + " " + strings.Join(e.Args, " "))
}

// Error returns the formatted error message.
func (e *ProcessError) Error() string {
	prefix := fmt.Sprintf("process error [cmd=%s, exit=%d]", e.Name, e.ExitCode)
	msg := fmt.Sprintf("%s: %s", prefix, e.message)
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *ProcessError) Is(target error) bool {
	if _, ok := target.(*ProcessError); ok {
		return true
	}
	if errors.Is(target, ErrProcessFailed) {
		return true
	}
	return e.baseError.Is(target)
}

// LayoutError represents a production directory that does not match the
// expected layout (missing manifest, missing set directory).
//
// Example:
//
//	err := errors.NewLayoutError("manifest unreadable", cause).WithPath("/prod/training.list")
type LayoutError struct {
	baseError
	Path string
	Set  string
}

// NewLayoutError creates a new LayoutError.
func NewLayoutError(message string, cause error) *LayoutError {
	return &LayoutError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithPath adds the offending path to the error context.
func (e *LayoutError) WithPath(path string) *LayoutError {
	e.Path = path
	return e
}

// WithSet adds the file set name to the error context.
func (e *LayoutError) WithSet(set string) *LayoutError {
	e.Set = set
	return e
}

// Error returns the formatted error message.
func (e *LayoutError) Error() string {
	var parts []string
	if e.Set != "" {
		parts = append(parts, fmt.Sprintf("set=%s", e.Set))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := "layout error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("layout error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *LayoutError) Is(target error) bool {
	if _, ok := target.(*LayoutError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if errors.Is(target, ErrNotFound) {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("particle is required in workflow mode").WithField("particle")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsUserFacing returns true if the error message is safe to display to the operator.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var pipelineErr PipelineError
	if As(err, &pipelineErr) {
		return pipelineErr.IsUserFacing()
	}

	return Is(err, ErrAborted)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement PipelineError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var pipelineErr PipelineError
	if As(err, &pipelineErr) {
		return pipelineErr.Severity()
	}

	return SeverityError
}

// ExitCode maps an error to a process exit status for the CLI.
//   - 0: no error
//   - 2: operator aborted
//   - 3: invalid input or layout
//   - 1: anything else
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case Is(err, ErrAborted), Is(err, ErrNotInteractive):
		return 2
	case Is(err, ErrInvalidInput), Is(err, &LayoutError{}):
		return 3
	default:
		return 1
	}
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Package errors provides structured error handling for ragescanner operations.
// It defines the two error kinds that travel inside scan results and scan
// events (platform errors raised by operating system facilities and internal
// errors raised by the scanner itself), error codes for classification, and
// helpers for inspecting errors.
package errors

import (
	stderrors "errors"
	"fmt"
	"syscall"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"
	CodePermission    ErrorCode = "PERMISSION"

	// Scan orchestration errors.
	CodeInvalidRange   ErrorCode = "INVALID_RANGE"
	CodeScanInProgress ErrorCode = "SCAN_IN_PROGRESS"
	CodeEngineInit     ErrorCode = "ENGINE_INIT"
	CodeTaskFailed     ErrorCode = "TASK_FAILED"

	// Probe errors.
	CodePlatform        ErrorCode = "PLATFORM"
	CodeProbeFailed     ErrorCode = "PROBE_FAILED"
	CodeProbeNotSupport ErrorCode = "PROBE_NOT_SUPPORTED"

	// Service errors.
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
)

// Kind names the two families of errors carried by the scan protocol.
type Kind string

const (
	KindPlatform Kind = "platform"
	KindInternal Kind = "internal"
)

// PlatformError is a failure reported by an operating system facility
// (ICMP sockets, neighbour table queries, socket creation). Code carries
// the numeric cause reported by the OS, zero when none was available.
type PlatformError struct {
	Code    uint32
	Message string
	Op      string
	Cause   error
}

// Error implements the error interface.
func (e *PlatformError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("platform error (%d): %s (op: %s)", e.Code, e.Message, e.Op)
	}
	return fmt.Sprintf("platform error (%d): %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *PlatformError) Unwrap() error {
	return e.Cause
}

// NewPlatformError creates a platform error with an explicit OS code.
func NewPlatformError(code uint32, message string) *PlatformError {
	return &PlatformError{
		Code:    code,
		Message: message,
	}
}

// FromSyscall wraps an error returned by an OS call. When the chain contains
// a syscall.Errno its value becomes the error code.
func FromSyscall(op string, err error) *PlatformError {
	pe := &PlatformError{
		Message: err.Error(),
		Op:      op,
		Cause:   err,
	}
	var errno syscall.Errno
	if stderrors.As(err, &errno) {
		pe.Code = uint32(errno)
		pe.Message = errno.Error()
	}
	return pe
}

// InternalError is a failure raised by the scanner itself: malformed ranges,
// bootstrap failures, faulted probe tasks and configuration problems.
type InternalError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *InternalError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *InternalError) WithContext(key string, value interface{}) *InternalError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewInternalError creates a new internal error with the specified code and message.
func NewInternalError(code ErrorCode, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewInternalErrorf creates an internal error with a formatted message.
func NewInternalErrorf(code ErrorCode, format string, args ...interface{}) *InternalError {
	return NewInternalError(code, fmt.Sprintf(format, args...))
}

// WrapInternalError wraps an existing error as an internal error.
func WrapInternalError(code ErrorCode, message string, err error) *InternalError {
	return &InternalError{
		Code:    code,
		Message: fmt.Sprintf("%s: %v", message, err),
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// Utility functions for common error operations

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	var ie *InternalError
	if stderrors.As(err, &ie) {
		return ie.Code
	}
	var pe *PlatformError
	if stderrors.As(err, &pe) {
		return CodePlatform
	}
	return CodeUnknown
}

// KindOf reports which protocol error family err belongs to. Errors that are
// neither platform nor internal errors are reported as internal.
func KindOf(err error) Kind {
	var pe *PlatformError
	if stderrors.As(err, &pe) {
		return KindPlatform
	}
	return KindInternal
}

// IsPlatform reports whether err is, or wraps, a PlatformError.
func IsPlatform(err error) bool {
	var pe *PlatformError
	return stderrors.As(err, &pe)
}

// IsFatal determines if an error indicates a fatal condition that should stop execution.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodePermission, CodeConfiguration, CodeEngineInit:
		return true
	default:
		return false
	}
}

// Description is the wire form of a protocol error.
type Description struct {
	Kind    Kind      `json:"kind"`
	Code    ErrorCode `json:"code"`
	OSCode  uint32    `json:"os_code,omitempty"`
	Message string    `json:"message"`
}

// Describe converts err into its wire form. A nil error yields nil.
func Describe(err error) *Description {
	if err == nil {
		return nil
	}
	d := &Description{
		Kind:    KindOf(err),
		Code:    GetCode(err),
		Message: err.Error(),
	}
	var pe *PlatformError
	if stderrors.As(err, &pe) {
		d.OSCode = pe.Code
	}
	return d
}

// Common error creation functions

// ErrInvalidRange creates an error for a malformed or inverted target range.
func ErrInvalidRange(format string, args ...interface{}) *InternalError {
	return NewInternalErrorf(CodeInvalidRange, format, args...)
}

// ErrScanInProgress creates the error used to reject a second concurrent scan.
func ErrScanInProgress(activeID string) *InternalError {
	return NewInternalError(CodeScanInProgress, "a scan is already in progress").
		WithContext("scan_id", activeID)
}

// ErrEngineInit creates the error reported when the background scan context cannot start.
func ErrEngineInit(err error) *InternalError {
	return WrapInternalError(CodeEngineInit, "failed to initialize scan engine", err)
}

// ErrTaskFailed creates the error recorded when a per-target task faults.
func ErrTaskFailed(reason interface{}) *InternalError {
	return NewInternalErrorf(CodeTaskFailed, "probe task failed: %v", reason)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *InternalError {
	return NewInternalErrorf(CodeValidation, "invalid configuration value for %s: %v", field, value).
		WithContext("field", field)
}

// Package errors provides the unified error type and factory functions for
// BioMapper.  Every layer (domain, application, infrastructure, interfaces)
// uses AppError as the single carrier for structured error information so that
// the pipeline can decide, from the code alone, whether a failure is local and
// recoverable, degrades a resolver call, or is fatal to the whole run.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames above
// the caller (skipping captureStack itself and the factory function).
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// AppError: the canonical error type
// ─────────────────────────────────────────────────────────────────────────────

// AppError is the single structured error type used throughout BioMapper.
// It supports Go 1.13+ wrapping so errors.Is / errors.As / errors.Unwrap work
// transparently across layers.
//
// Usage:
//
//	return errors.MalformedIdentifier("identifier is empty after trimming")
//	return errors.Wrap(err, errors.ErrCodeResolutionTransport, "uniprot lookup failed")
//	return errors.Configuration("unknown match_mode").WithDetail("match_mode=" + m)
type AppError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description.
	Message string

	// Detail carries supplementary context (identifier values, stage names).
	Detail string

	// Cause is the underlying error, if any.
	Cause error

	// Stack is the call stack captured at construction.  It is never part of
	// Error() output.
	Stack string
}

// Error implements the error interface.
// Format: "[<code>] <message>: <detail>", detail omitted when empty.
func (e *AppError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += " (" + e.Cause.Error() + ")"
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a shallow copy of the receiver with Detail set.  Safe on
// a nil receiver.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// ─────────────────────────────────────────────────────────────────────────────
// Primary factory functions
// ─────────────────────────────────────────────────────────────────────────────

// New constructs a fresh AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps err.  A nil err yields nil so Wrap
// can be used inline.  When code is CodeUnknown and err already carries an
// AppError, the original code is preserved.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error-chain inspection helpers
// ─────────────────────────────────────────────────────────────────────────────

// IsCode reports whether any error in err's chain is an *AppError with code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// GetCode extracts the ErrorCode of the first *AppError in err's chain.
// A nil error yields CodeOK; a foreign error yields CodeUnknown.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// IsConfiguration reports whether err is a configuration-time failure.  These
// are the only errors allowed to abort a pipeline run before any stage starts.
func IsConfiguration(err error) bool {
	return ModuleForCode(GetCode(err)) == "CFG"
}

// IsRecoverable reports whether err is local to a single identifier or batch
// and must therefore be logged and skipped (or degraded) rather than
// propagated.
func IsRecoverable(err error) bool {
	switch GetCode(err) {
	case ErrCodeMalformedIdentifier,
		ErrCodeResolutionTimeout,
		ErrCodeResolutionTransport,
		ErrCodeCircuitOpen,
		ErrCodeAuthorityResponseInvalid,
		ErrCodeAuthorityRateLimited:
		return true
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Convenience constructors for the resolution error taxonomy
// ─────────────────────────────────────────────────────────────────────────────

// MalformedIdentifier constructs an IDN_001 error.
func MalformedIdentifier(message string) *AppError {
	return &AppError{Code: ErrCodeMalformedIdentifier, Message: message, Stack: captureStack(1)}
}

// ResolutionTimeout constructs a RES_001 error.
func ResolutionTimeout(message string) *AppError {
	return &AppError{Code: ErrCodeResolutionTimeout, Message: message, Stack: captureStack(1)}
}

// ResolutionTransport constructs a RES_002 error.
func ResolutionTransport(message string) *AppError {
	return &AppError{Code: ErrCodeResolutionTransport, Message: message, Stack: captureStack(1)}
}

// CircuitOpen constructs a RES_003 error.
func CircuitOpen(message string) *AppError {
	return &AppError{Code: ErrCodeCircuitOpen, Message: message, Stack: captureStack(1)}
}

// Configuration constructs a CFG_001 error.
func Configuration(message string) *AppError {
	return &AppError{Code: ErrCodeConfiguration, Message: message, Stack: captureStack(1)}
}

// StageFailed constructs a PIP_001 error.
func StageFailed(message string) *AppError {
	return &AppError{Code: ErrCodeStageFailed, Message: message, Stack: captureStack(1)}
}

// InvariantViolation constructs a PIP_003 error.
func InvariantViolation(message string) *AppError {
	return &AppError{Code: ErrCodeInvariantViolation, Message: message, Stack: captureStack(1)}
}

// InvalidParam constructs a COMMON_002 error.
func InvalidParam(message string) *AppError {
	return &AppError{Code: ErrCodeBadRequest, Message: message, Stack: captureStack(1)}
}

// Internal constructs a COMMON_001 error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message, Stack: captureStack(1)}
}

//Personal.AI order the ending

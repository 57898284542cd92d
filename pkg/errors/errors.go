// Package errors provides structured error handling for the shredder.
//
// Every failure raised while building or feeding a record builder is an
// *Error carrying an ErrorType, a message, optional details and the call
// stack captured at creation. Sentinel values such as ErrUnknownField match
// any *Error of the same type through the standard errors.Is:
//
//	if errors.Is(err, shrederrors.ErrUnknownField) {
//	    // strict ingestion rejected a document
//	}
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeConstruction represents an invalid schema or builder list
	ErrorTypeConstruction ErrorType = "construction"
	// ErrorTypeUnknownField represents a document key missing from the schema
	ErrorTypeUnknownField ErrorType = "unknown_field"
	// ErrorTypeMalformedDocument represents a document whose encoding could not be iterated
	ErrorTypeMalformedDocument ErrorType = "malformed_document"
	// ErrorTypeUnsupportedConversion represents a value kind with no coercion into the column type
	ErrorTypeUnsupportedConversion ErrorType = "unsupported_conversion"
	// ErrorTypeUnsupportedNullType represents a column type with no null representation
	ErrorTypeUnsupportedNullType ErrorType = "unsupported_null_type"
	// ErrorTypeNumericOverflow represents a narrowing cast out of range
	ErrorTypeNumericOverflow ErrorType = "numeric_overflow"
	// ErrorTypeParseFailure represents a string that could not be parsed under strict parsing
	ErrorTypeParseFailure ErrorType = "parse_failure"
	// ErrorTypeDuplicateField represents a repeated key rejected by the duplicate policy
	ErrorTypeDuplicateField ErrorType = "duplicate_field"
	// ErrorTypeNullViolation represents a null destined for a non-nullable column
	ErrorTypeNullViolation ErrorType = "null_violation"
	// ErrorTypeFinished represents use of a builder after Finish
	ErrorTypeFinished ErrorType = "finished"
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeConnection represents connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
)

// Sentinels for errors.Is. They match any *Error of the same type.
var (
	ErrConstruction          = &Error{Type: ErrorTypeConstruction}
	ErrUnknownField          = &Error{Type: ErrorTypeUnknownField}
	ErrMalformedDocument     = &Error{Type: ErrorTypeMalformedDocument}
	ErrUnsupportedConversion = &Error{Type: ErrorTypeUnsupportedConversion}
	ErrUnsupportedNullType   = &Error{Type: ErrorTypeUnsupportedNullType}
	ErrNumericOverflow       = &Error{Type: ErrorTypeNumericOverflow}
	ErrParseFailure          = &Error{Type: ErrorTypeParseFailure}
	ErrDuplicateField        = &Error{Type: ErrorTypeDuplicateField}
	ErrNullViolation         = &Error{Type: ErrorTypeNullViolation}
	ErrBuilderFinished       = &Error{Type: ErrorTypeFinished}
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Type)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a sentinel of the same type.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Type == e.Type
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Detail returns a detail value, or nil.
func (e *Error) Detail(key string) interface{} {
	if e.Details == nil {
		return nil
	}
	return e.Details[key]
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a format string.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the type of the outermost *Error in err's chain, or
// ErrorTypeInternal when err carries none.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}

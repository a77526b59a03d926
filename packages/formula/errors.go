package formula

import (
	"errors"
	"fmt"
)

var (
	// ErrParse indicates a tokenizer or parser failure.
	ErrParse = errors.New("parse error")

	// ErrTooDeep indicates the formula nests deeper than the configured limit.
	ErrTooDeep = errors.New("formula nested too deeply")

	// ErrInvalidOptions indicates inconsistent parse or format options.
	ErrInvalidOptions = errors.New("invalid options")

	// ErrInvalidFunction indicates a function definition the registry rejects.
	ErrInvalidFunction = errors.New("invalid function")
)

// ParseError is returned for every malformed formula. Offset is the 0-based
// character offset in the original text.
type ParseError struct {
	Message string
	Offset  int
	cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v at %d: %s", ErrParse, e.Offset, e.Message)
}

func (e *ParseError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrParse, e.cause}
	}
	return []error{ErrParse}
}

func newParseError(offset int, format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...), Offset: offset}
}

// AppErrorCode classifies workbook API failures. the values follow the
// gRPC status codes; codes that make no sense for a workbook are skipped.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown is used for failures that carry no better classification.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates a malformed address, name or formula.
	InvalidArgument AppErrorCode = 3

	// NotFound means a worksheet, name or table does not exist.
	NotFound AppErrorCode = 5

	// AlreadyExists means an entity with the same name exists.
	AlreadyExists AppErrorCode = 6

	// FailedPrecondition means the workbook is not in a state that allows
	// the operation, e.g. addressing a cell before any worksheet exists.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means an address lies outside the grid.
	OutOfRange AppErrorCode = 11

	// Internal means an invariant of the workbook was broken.
	Internal AppErrorCode = 13
)

// AppError is a workbook API error. formula evaluation never returns one;
// evaluation failures are error values.
type AppError struct {
	Code    AppErrorCode
	Message string
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.cause }

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func wrapApplicationError(code AppErrorCode, err error, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// ErrorCodeOf returns the code of an AppError anywhere in err's chain, or
// Unknown
func ErrorCodeOf(err error) AppErrorCode {
	if err == nil {
		return OK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}

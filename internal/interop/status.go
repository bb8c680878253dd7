package interop

import (
	"errors"
	"fmt"
)

// Status classifies the outcome of an interop operation.
type Status int

// Status codes.
const (
	Success Status = iota
	InvalidArguments
	RuntimeError
)

// String returns the status name used in logs and metrics.
func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case InvalidArguments:
		return "invalid_arguments"
	case RuntimeError:
		return "runtime_error"
	default:
		return "unknown"
	}
}

// Sentinel errors matched by StatusError.Is.
var (
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrRuntime          = errors.New("runtime error")
)

// StatusError carries a non-success Status together with the operation
// that failed and, for native failures, the original error.
type StatusError struct {
	Status Status
	Op     string // Operation that failed (e.g., "init", "interop task")
	Msg    string // Diagnostic message
	Err    error  // Underlying native error, if any
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("interop: %s: %s: %s", e.Op, e.Status, e.Msg)
}

// Unwrap returns the underlying native error.
func (e *StatusError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's status.
func (e *StatusError) Is(target error) bool {
	switch e.Status {
	case InvalidArguments:
		return target == ErrInvalidArguments
	case RuntimeError:
		return target == ErrRuntime
	default:
		return false
	}
}

// StatusOf maps an error returned by this package to its Status. nil is
// Success and errors of foreign origin count as RuntimeError.
func StatusOf(err error) Status {
	if err == nil {
		return Success
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	if errors.Is(err, ErrInvalidArguments) {
		return InvalidArguments
	}
	return RuntimeError
}

func invalidArgs(op, format string, args ...any) error {
	return &StatusError{Status: InvalidArguments, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// runtimeErr wraps a native failure. The native message is kept verbatim.
func runtimeErr(op string, err error) error {
	var se *StatusError
	if errors.As(err, &se) {
		return err
	}
	return &StatusError{Status: RuntimeError, Op: op, Msg: err.Error(), Err: err}
}

// nativeCall runs fn as a native library call. Errors and panics raised by
// the native side come back as RuntimeError; nothing propagates past it.
func nativeCall(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = &StatusError{Status: RuntimeError, Op: op, Msg: e.Error(), Err: e}
				return
			}
			err = &StatusError{Status: RuntimeError, Op: op, Msg: fmt.Sprint(r)}
		}
	}()
	if callErr := fn(); callErr != nil {
		return runtimeErr(op, callErr)
	}
	return nil
}

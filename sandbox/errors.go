package sandbox

import (
	"fmt"
	"os"

	"emperror.dev/errors"
)

type ErrorCode string

const (
	ErrCodeIsDirectory     ErrorCode = "E_ISDIR"
	ErrCodePathResolution  ErrorCode = "E_BADPATH"
	ErrCodeDenylistFile    ErrorCode = "E_DENIED"
	ErrCodeExtensionDenied ErrorCode = "E_BADEXT"
	ErrCodeNotExist        ErrorCode = "E_NOTEXIST"
	ErrCodeAlreadyExists   ErrorCode = "E_EXISTS"
	ErrCodeSizeLimit       ErrorCode = "E_TOOBIG"
	ErrCodeTooBusy         ErrorCode = "E_TOOBUSY"
	ErrCodeNoMatch         ErrorCode = "E_NOMATCH"
	ErrCodeAmbiguousMatch  ErrorCode = "E_AMBIGUOUS"
	ErrCodeUnknownError    ErrorCode = "E_UNKNOWN"
)

type Error struct {
	code ErrorCode

	// The underlying error that caused this one, if there is one.
	err error

	// The relative path that the caller provided for the operation.
	path string

	// The fully resolved path on the host, if it was computed before the
	// failure occurred.
	resolved string
}

// newError returns a new error instance with a stack trace associated. If the
// provided error is already a sandbox *Error it is returned as-is so that the
// original code is not masked by a second layer of wrapping.
func newError(code ErrorCode, err error, path string) error {
	if e := AsError(err); e != nil {
		return err
	}
	return errors.WithStackDepthIf(&Error{code: code, err: err, path: path}, 1)
}

// NewBadPathResolution returns a new BadPathResolution error for a path that
// resolved to a location outside of the sandbox root.
func NewBadPathResolution(path string, resolved string) error {
	return errors.WithStackDepthIf(&Error{code: ErrCodePathResolution, path: path, resolved: resolved}, 1)
}

func (e *Error) Code() ErrorCode {
	return e.code
}

// Unwrap returns the underlying cause of this error, which may be nil for
// errors that originate within the sandbox itself.
func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Error() string {
	switch e.code {
	case ErrCodeIsDirectory:
		return "sandbox: is a directory: " + e.path
	case ErrCodePathResolution:
		r := e.resolved
		if r == "" {
			r = "<empty>"
		}
		return fmt.Sprintf("sandbox: path [%s] resolves to a location outside the sandbox root: %s", e.path, r)
	case ErrCodeDenylistFile:
		return "sandbox: access prohibited: " + e.path + " is on the denylist"
	case ErrCodeExtensionDenied:
		return "sandbox: file extension is not on the allowed list: " + e.path
	case ErrCodeNotExist:
		return "sandbox: does not exist: " + e.path
	case ErrCodeAlreadyExists:
		return "sandbox: already exists: " + e.path
	case ErrCodeSizeLimit:
		return "sandbox: size limit would be exceeded: " + e.path
	case ErrCodeTooBusy:
		return "sandbox: too many concurrent operations, try again later"
	case ErrCodeNoMatch:
		return "sandbox: fragment was not found in file: " + e.path
	case ErrCodeAmbiguousMatch:
		return "sandbox: fragment occurs more than once in file: " + e.path
	}
	m := "sandbox: an error occurred: " + e.path
	if e.err != nil {
		m += ": " + e.err.Error()
	}
	return m
}

// AsError returns the *Error in err's chain, or nil if there is none.
func AsError(err error) *Error {
	var e *Error
	if err != nil && errors.As(err, &e) {
		return e
	}
	return nil
}

// IsErrorCode checks if the given error is a sandbox error of the provided
// error code.
func IsErrorCode(err error, code ErrorCode) bool {
	if e := AsError(err); e != nil {
		return e.code == code
	}
	return false
}

// wrapError wraps an unexpected I/O error with operation context. Sandbox
// errors pass through untouched, a missing file is reported as NotExist, and
// anything else is surfaced as an unknown error.
func wrapError(err error, path string) error {
	if err == nil || AsError(err) != nil {
		return err
	}
	if errors.Is(err, os.ErrNotExist) {
		return newError(ErrCodeNotExist, err, path)
	}
	return newError(ErrCodeUnknownError, err, path)
}

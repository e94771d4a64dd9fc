// Package occa provides a portable, just-in-time compute-kernel
// runtime: a single host-side abstraction for allocating device memory,
// compiling kernel source at runtime, launching kernels, and
// coordinating asynchronous streams across backends.
package occa

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/occa-go/occa/internal/constants"
)

// ErrorCode is the backend-agnostic error taxonomy every backend maps
// its vendor-specific status codes onto.
type ErrorCode string

const (
	// ErrCodeBackendInit means the driver library is missing or failed
	// to initialize.
	ErrCodeBackendInit ErrorCode = "backend init failed"
	// ErrCodeNoSuchDevice means the requested platform/device id is out
	// of range.
	ErrCodeNoSuchDevice ErrorCode = "no such device"
	// ErrCodeContextCreate means context/queue creation failed.
	ErrCodeContextCreate ErrorCode = "context creation failed"
	// ErrCodeBoundsCheck means an offset/length range exceeded a
	// buffer's size.
	ErrCodeBoundsCheck ErrorCode = "bounds check failed"
	// ErrCodeCompileError means the translator or external compiler
	// failed; Msg carries the compiler log.
	ErrCodeCompileError ErrorCode = "compile error"
	// ErrCodeLoadError means module/program/shared-object load or
	// symbol resolution failed.
	ErrCodeLoadError ErrorCode = "load error"
	// ErrCodeLaunchError means the driver rejected a kernel launch.
	ErrCodeLaunchError ErrorCode = "launch error"
	// ErrCodeTransferError means a host<->device or device<->device
	// copy failed.
	ErrCodeTransferError ErrorCode = "transfer error"
	// ErrCodeUnsupported means the operation is unavailable on this
	// backend.
	ErrCodeUnsupported ErrorCode = "unsupported"
)

// Error is the structured error type every runtime and backend
// operation returns.
type Error struct {
	Op      string              // operation that failed, e.g. "BuildFromSource"
	Backend constants.BackendTag // backend tag, empty if not applicable
	Code    ErrorCode
	Errno   syscall.Errno // underlying OS errno, 0 if not applicable
	Msg     string        // human-readable message (compiler log for CompileError)
	Inner   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Backend != "" {
		parts = append(parts, fmt.Sprintf("backend=%s", e.Backend))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("occa: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("occa: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is lets errors.Is match any *Error target with the same Code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// NewError creates a structured error with no OS errno attached.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewBackendError attaches the failing backend's tag to the error.
func NewBackendError(op string, backend constants.BackendTag, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Backend: backend, Code: code, Msg: msg}
}

// NewErrorWithErrno wraps a raw OS errno with a taxonomy code.
func NewErrorWithErrno(op string, code ErrorCode, errno syscall.Errno) *Error {
	return &Error{Op: op, Code: code, Errno: errno, Msg: errno.Error()}
}

// WrapError wraps an arbitrary error under an operation name, mapping
// syscall.Errno values onto the taxonomy via MapErrno.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if oe, ok := inner.(*Error); ok {
		return &Error{Op: op, Backend: oe.Backend, Code: oe.Code, Errno: oe.Errno, Msg: oe.Msg, Inner: oe.Inner}
	}
	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{Op: op, Code: MapErrno(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, Code: ErrCodeUnsupported, Msg: inner.Error(), Inner: inner}
}

// MapErrno maps a raw OS errno onto the taxonomy's closest code. Used
// by backends translating failures from os/exec, dlopen, and file-system
// calls; per-backend vendor status codes (CUresult, cl_int) have their
// own mapping tables per spec.md §1/§7.
func MapErrno(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.ENOENT, syscall.ENODEV:
		return ErrCodeNoSuchDevice
	case syscall.EINVAL, syscall.E2BIG:
		return ErrCodeBoundsCheck
	case syscall.ENOSYS, syscall.EOPNOTSUPP:
		return ErrCodeUnsupported
	case syscall.ENOMEM, syscall.ENOSPC:
		return ErrCodeContextCreate
	case syscall.ETIMEDOUT:
		return ErrCodeTransferError
	default:
		return ErrCodeTransferError
	}
}

// IsCode reports whether err (or any error it wraps) carries code.
func IsCode(err error, code ErrorCode) bool {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Code == code
	}
	return false
}

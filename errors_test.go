package occa

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occa-go/occa/internal/constants"
)

func TestStructuredError(t *testing.T) {
	err := NewError("BuildFromSource", ErrCodeCompileError, "syntax error in kernel")

	assert.Equal(t, "BuildFromSource", err.Op)
	assert.Equal(t, ErrCodeCompileError, err.Code)
	assert.Equal(t, "occa: syntax error in kernel (op=BuildFromSource)", err.Error())
}

func TestBackendError(t *testing.T) {
	err := NewBackendError("Setup", constants.GPU, ErrCodeNoSuchDevice, "device id out of range")

	assert.Equal(t, constants.GPU, err.Backend)
	assert.Equal(t, "occa: device id out of range (op=Setup)", err.Error())
}

func TestErrorWithErrno(t *testing.T) {
	err := NewErrorWithErrno("Malloc", ErrCodeContextCreate, syscall.ENOMEM)

	assert.Equal(t, syscall.ENOMEM, err.Errno)
	assert.Equal(t, ErrCodeContextCreate, err.Code)
}

func TestWrapError(t *testing.T) {
	inner := syscall.ENOENT
	err := WrapError("LoadModule", inner)

	require.NotNil(t, err)
	assert.Equal(t, ErrCodeNoSuchDevice, err.Code)
	assert.Equal(t, syscall.ENOENT, err.Errno)
	assert.True(t, errors.Is(err, syscall.ENOENT))
}

func TestWrapErrorPreservesTaxonomy(t *testing.T) {
	inner := NewError("Compile", ErrCodeCompileError, "boom")
	err := WrapError("BuildFromSource", inner)

	assert.Equal(t, ErrCodeCompileError, err.Code)
	assert.Equal(t, "boom", err.Msg)
}

func TestWrapErrorNil(t *testing.T) {
	assert.Nil(t, WrapError("op", nil))
}

func TestIsCode(t *testing.T) {
	err := NewError("Finish", ErrCodeLaunchError, "launch rejected")

	assert.True(t, IsCode(err, ErrCodeLaunchError))
	assert.False(t, IsCode(err, ErrCodeTransferError))
	assert.False(t, IsCode(nil, ErrCodeLaunchError))
}

func TestErrorIsComparesCode(t *testing.T) {
	a := &Error{Code: ErrCodeBoundsCheck}
	b := &Error{Code: ErrCodeBoundsCheck, Op: "CopyTo"}

	assert.True(t, errors.Is(a, b))
}

func TestMapErrno(t *testing.T) {
	cases := []struct {
		errno    syscall.Errno
		expected ErrorCode
	}{
		{syscall.ENOENT, ErrCodeNoSuchDevice},
		{syscall.EINVAL, ErrCodeBoundsCheck},
		{syscall.ENOSYS, ErrCodeUnsupported},
		{syscall.ENOMEM, ErrCodeContextCreate},
		{syscall.ETIMEDOUT, ErrCodeTransferError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, MapErrno(tc.errno), "errno %v", tc.errno)
	}
}

// Package argpack packs the fixed-arity kernel argument list a Run call
// binds before launch. Arguments are a tagged union of scalars (any
// fixed-width value the ABI understands) and device buffers, encoded
// into a flat byte representation the driver-compute and OpenCL
// backends can hand to their native launch calls without a reflect
// pass per argument.
package argpack

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/occa-go/occa/internal/constants"
)

// Kind distinguishes the two argument shapes a kernel signature accepts.
type Kind int

const (
	// KindScalar is a fixed-width value passed by value.
	KindScalar Kind = iota
	// KindBuffer is a device pointer passed by handle.
	KindBuffer
)

// Arg is one bound kernel argument.
type Arg struct {
	Kind Kind

	// Scalar holds the encoded bytes for a KindScalar arg, little-endian.
	Scalar []byte

	// Buffer holds the backend-native pointer/handle for a KindBuffer
	// arg, as returned by a Memory implementation's Native-equivalent
	// accessor. Backends type-assert this to their concrete pointer
	// type when packing the launch call.
	Buffer any
}

// Scalar encodes v (any fixed-width integer or float type) into a
// KindScalar Arg.
func Scalar(v any) (Arg, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		return Arg{}, fmt.Errorf("argpack: scalar encode: %w", err)
	}
	return Arg{Kind: KindScalar, Scalar: buf.Bytes()}, nil
}

// Buffer wraps a backend-native device pointer into a KindBuffer Arg.
func Buffer(handle any) Arg {
	return Arg{Kind: KindBuffer, Buffer: handle}
}

// List is the ordered, fixed-arity argument list bound to one kernel
// launch. Capped at constants.MaxArgs per spec.md §3.
type List struct {
	args []Arg
}

// NewList allocates a List with room for up to constants.MaxArgs
// entries.
func NewList() *List {
	return &List{args: make([]Arg, 0, constants.MaxArgs)}
}

// Append binds the next positional argument. Returns an error if the
// list is already at constants.MaxArgs.
func (l *List) Append(a Arg) error {
	if len(l.args) >= constants.MaxArgs {
		return fmt.Errorf("argpack: kernel argument list exceeds max arity %d", constants.MaxArgs)
	}
	l.args = append(l.args, a)
	return nil
}

// Len returns the number of bound arguments.
func (l *List) Len() int {
	return len(l.args)
}

// At returns the argument at position i.
func (l *List) At(i int) Arg {
	return l.args[i]
}

// All returns the bound arguments in launch order. The returned slice
// must not be mutated.
func (l *List) All() []Arg {
	return l.args
}

package occa

import (
	"sync"
	"time"

	"github.com/occa-go/occa/internal/argpack"
	"github.com/occa-go/occa/internal/geometry"
	"github.com/occa-go/occa/internal/interfaces"
)

// Kernel is the public facade over a compiled kernel entry point.
type Kernel struct {
	backend interfaces.Kernel
	device  *Device
	info    KernelInfo

	preferredDimSize     int
	preferredDimSizeErr  error
	preferredDimSizeOnce sync.Once
}

// FunctionName returns the kernel's entry-point name.
func (k *Kernel) FunctionName() string {
	return k.backend.FunctionName()
}

// Device returns the Device this Kernel was built on.
func (k *Kernel) Device() *Device {
	return k.device
}

// Run binds args in launch order and enqueues the kernel with geometry
// g on the Device's current stream. The OpenCL and driver-compute
// backends return once the launch is enqueued and the host backend
// returns after the kernel has run; Finish or a tagged Event
// synchronizes with the result on every backend.
func (k *Kernel) Run(g geometry.Geometry, args ...argpack.Arg) error {
	list := argpack.NewList()
	for _, a := range args {
		if err := list.Append(a); err != nil {
			return NewError("Run", ErrCodeBoundsCheck, err.Error())
		}
	}

	cur := k.device.CurrentStream()
	start := time.Now()
	err := k.backend.Run(cur.backend, g, *list)
	k.device.observer.ObserveLaunch(k.FunctionName(), time.Since(start), err)
	if err != nil {
		return WrapError("Run", err)
	}
	return nil
}

// PreferredDimSize returns the device-reported block-multiple hint for
// this kernel, queried once from the backend and cached thereafter.
func (k *Kernel) PreferredDimSize() (int, error) {
	k.preferredDimSizeOnce.Do(func() {
		size, err := k.backend.PreferredDimSize()
		if err != nil {
			k.preferredDimSizeErr = WrapError("PreferredDimSize", err)
			return
		}
		k.preferredDimSize = size
	})
	if k.preferredDimSizeErr != nil {
		return 0, k.preferredDimSizeErr
	}
	return k.preferredDimSize, nil
}

// Free releases the kernel's backend resources.
func (k *Kernel) Free() error {
	if err := k.backend.Free(); err != nil {
		return WrapError("Free", err)
	}
	return nil
}

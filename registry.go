package occa

import "sync"

// registry keeps every live Device in creation order, mirroring the
// teacher's package-level default-logger singleton pattern, so
// TeardownAll can release them in reverse creation order.
var (
	registryMu sync.Mutex
	registry   []*Device
)

func registerDevice(d *Device) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, d)
}

func unregisterDevice(d *Device) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for i, r := range registry {
		if r == d {
			registry = append(registry[:i], registry[i+1:]...)
			return
		}
	}
}

// LiveDevices returns every Device created in this process that has
// not yet been torn down, in creation order.
func LiveDevices() []*Device {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]*Device, len(registry))
	copy(out, registry)
	return out
}

// TeardownAll tears down every live Device in reverse creation order,
// collecting (not stopping at) the first error.
func TeardownAll() error {
	registryMu.Lock()
	live := make([]*Device, len(registry))
	copy(live, registry)
	registryMu.Unlock()

	var firstErr error
	for i := len(live) - 1; i >= 0; i-- {
		if err := live[i].Teardown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

package occa

import "github.com/occa-go/occa/internal/constants"

// Re-export internal/constants for the public API.
const (
	MaxArgs                 = constants.MaxArgs
	DefaultSimdWidth        = constants.DefaultSimdWidth
	DriverPreferredDimSize  = constants.DriverPreferredDimSize
)

// Backend mode tags, re-exported for callers selecting a Device by mode.
const (
	ModeOpenCL        = constants.OpenCL
	ModeDriverCompute = constants.DriverCompute
	ModeHostShared    = constants.HostShared
)

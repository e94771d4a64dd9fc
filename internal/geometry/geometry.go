// Package geometry describes the 3D launch geometry of a kernel: the
// outer (grid) and inner (block) extents, replacing the fixed-arity
// geometry overloads of the original source with a single validated
// value type (spec.md §4.3, §9).
package geometry

import "fmt"

// Dim is a 3D extent. Unused trailing axes are set to 1, not 0.
type Dim struct {
	X, Y, Z uint64
}

// Dim1 builds a 1-dimensional extent.
func Dim1(x uint64) Dim { return Dim{X: x, Y: 1, Z: 1} }

// Dim2 builds a 2-dimensional extent.
func Dim2(x, y uint64) Dim { return Dim{X: x, Y: y, Z: 1} }

// Dim3 builds a 3-dimensional extent.
func Dim3(x, y, z uint64) Dim { return Dim{X: x, Y: y, Z: z} }

// Validate reports an error if any component of d is zero.
func (d Dim) Validate() error {
	if d.X == 0 || d.Y == 0 || d.Z == 0 {
		return fmt.Errorf("geometry: dimension components must be >= 1, got %+v", d)
	}
	return nil
}

// Geometry is the full grid/block pair passed to a kernel launch.
type Geometry struct {
	// Outer is the grid: how many blocks/work-groups are launched.
	Outer Dim
	// Inner is the block: the extent of each block/work-group.
	Inner Dim
	// Dims is the number of active dimensions (1, 2, or 3), fixed at
	// construction time and independent of which axis values are 1.
	Dims int
}

// New validates and builds a Geometry. dims must be 1, 2, or 3 per
// spec.md's data model invariant on Kernel.
func New(dims int, outer, inner Dim) (Geometry, error) {
	if dims < 1 || dims > 3 {
		return Geometry{}, fmt.Errorf("geometry: dims must be in 1..3, got %d", dims)
	}
	if err := outer.Validate(); err != nil {
		return Geometry{}, fmt.Errorf("geometry: invalid outer extent: %w", err)
	}
	if err := inner.Validate(); err != nil {
		return Geometry{}, fmt.Errorf("geometry: invalid inner extent: %w", err)
	}
	return Geometry{Outer: outer, Inner: inner, Dims: dims}, nil
}

// Global returns the outer*inner global extent per axis, the quantity
// OpenCL-style backends pass as globalWorkSize.
func (g Geometry) Global() Dim {
	return Dim{
		X: g.Outer.X * g.Inner.X,
		Y: g.Outer.Y * g.Inner.Y,
		Z: g.Outer.Z * g.Inner.Z,
	}
}

// Total returns the number of work-items the geometry will execute.
func (g Geometry) Total() uint64 {
	global := g.Global()
	return global.X * global.Y * global.Z
}

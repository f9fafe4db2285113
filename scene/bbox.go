package scene

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/harvey121/TurboNeRF/types"
)

// BoundingBox is the axis-aligned box bounding the trainable scene volume.
type BoundingBox struct {
	Min types.Vec3
	Max types.Vec3
}

// Create a cube-shaped bounding box centered at the origin.
func CubeBoundingBox(size float32) BoundingBox {
	half := size * 0.5
	return BoundingBox{
		Min: types.XYZ(-half, -half, -half),
		Max: types.XYZ(half, half, half),
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("bbox(min: %v, max: %v)", b.Min, b.Max)
}

// Get the box dimensions per axis.
func (b BoundingBox) Size() types.Vec3 {
	return b.Max.Sub(b.Min)
}

// Get the largest box dimension.
func (b BoundingBox) MaxExtent() float32 {
	return b.Size().MaxComponent()
}

// Get the box center.
func (b BoundingBox) Center() types.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Check whether a point lies inside the box. Points on the faces count as
// inside.
func (b BoundingBox) Contains(p types.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// Map a world position into the box's unit cube.
func (b BoundingBox) ToUnit(p types.Vec3) types.Vec3 {
	size := b.Size()
	return types.XYZ(
		(p[0]-b.Min[0])/size[0],
		(p[1]-b.Min[1])/size[1],
		(p[2]-b.Min[2])/size[2],
	)
}

// Intersect a ray with the box using the slab method. The direction is
// supplied as its per-component reciprocal. Returns the distance to the
// entry point along the ray (zero when the origin is inside the box) and
// whether the ray hits the box at all.
func (b BoundingBox) Intersect(origin, invDir types.Vec3) (float32, bool) {
	var tMin, tMax float32 = 0, math32.MaxFloat32

	for axis := 0; axis < 3; axis++ {
		t0 := (b.Min[axis] - origin[axis]) * invDir[axis]
		t1 := (b.Max[axis] - origin[axis]) * invDir[axis]
		if invDir[axis] < 0 {
			t0, t1 = t1, t0
		}
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		if tMax < tMin {
			return 0, false
		}
	}

	return tMin, true
}

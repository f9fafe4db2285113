package scene

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/harvey121/TurboNeRF/types"
)

// Camera is a pinhole training camera. The pose maps camera space to world
// space; the camera looks down its local -Z axis with +Y up. Near and Far
// bound the marchable segment along each ray.
type Camera struct {
	Pose types.Mat4

	FocalX float32
	FocalY float32

	// Principal point in pixels.
	CX float32
	CY float32

	Width  uint32
	Height uint32

	Near float32
	Far  float32
}

// Create a camera from a horizontal field of view angle (radians), the way
// dataset descriptors commonly specify intrinsics.
func CameraFromAngleX(pose types.Mat4, angleX float32, width, height uint32, near, far float32) Camera {
	focal := 0.5 * float32(width) / math32.Tan(0.5*angleX)
	return Camera{
		Pose:   pose,
		FocalX: focal,
		FocalY: focal,
		CX:     0.5 * float32(width),
		CY:     0.5 * float32(height),
		Width:  width,
		Height: height,
		Near:   near,
		Far:    far,
	}
}

func (c Camera) String() string {
	return fmt.Sprintf("camera(%dx%d, focal: %3.1f/%3.1f, near: %3.2f, far: %3.2f)",
		c.Width, c.Height, c.FocalX, c.FocalY, c.Near, c.Far)
}

// Generate the world-space ray through a pixel. Coordinates are given in
// pixels; pass the pixel center (x + 0.5, y + 0.5) for training rays. The
// returned direction has unit length.
func (c Camera) RayAt(px, py float32) (origin, dir types.Vec3) {
	camDir := types.XYZ(
		(px-c.CX)/c.FocalX,
		-(py-c.CY)/c.FocalY,
		-1,
	)
	return c.Pose.Translation(), c.Pose.TransformDir(camDir).Normalize()
}

// Rotate the camera around a pivot point, preserving its orientation
// relative to the pivot. Used for orbit-style camera paths.
func (c Camera) Orbit(pivot, axis types.Vec3, angle float32) Camera {
	q := types.QuatFromAxisAngle(axis.Normalize(), angle)

	rotated := q.Mat4().Mul4(c.Pose.SetTranslation(types.Vec3{}))
	position := pivot.Add(q.Rotate(c.Pose.Translation().Sub(pivot)))

	out := c
	out.Pose = rotated.SetTranslation(position)
	return out
}

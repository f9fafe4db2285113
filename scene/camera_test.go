package scene

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/harvey121/TurboNeRF/types"
)

func TestCameraFromAngleX(t *testing.T) {
	cam := CameraFromAngleX(types.Ident4(), math32.Pi/2, 800, 600, 0.1, 10)

	if expFocal := float32(400); math32.Abs(cam.FocalX-expFocal) > 1e-3 {
		t.Fatalf("expected focal length %f for a 90 degree fov; got %f", expFocal, cam.FocalX)
	}
	if cam.CX != 400 || cam.CY != 300 {
		t.Fatalf("expected principal point at the image center; got (%f, %f)", cam.CX, cam.CY)
	}
}

func TestCameraRayAt(t *testing.T) {
	cam := CameraFromAngleX(types.Ident4(), math32.Pi/2, 100, 100, 0.1, 10)

	// The ray through the principal point runs straight down -Z.
	origin, dir := cam.RayAt(cam.CX, cam.CY)
	if origin != (types.Vec3{}) {
		t.Fatalf("expected ray origin at the camera position; got %v", origin)
	}
	if !vec3Near(dir, types.XYZ(0, 0, -1), 1e-6) {
		t.Fatalf("expected center ray direction (0, 0, -1); got %v", dir)
	}

	// Pixels right of center deflect toward +X, pixels above center toward +Y.
	_, dir = cam.RayAt(cam.CX+25, cam.CY)
	if dir[0] <= 0 || dir[1] != 0 {
		t.Fatalf("expected right-of-center ray to lean +X; got %v", dir)
	}
	_, dir = cam.RayAt(cam.CX, cam.CY-25)
	if dir[1] <= 0 {
		t.Fatalf("expected above-center ray to lean +Y; got %v", dir)
	}

	if l := dir.Len(); math32.Abs(l-1) > 1e-6 {
		t.Fatalf("expected unit length ray direction; got length %f", l)
	}
}

func TestCameraOrbit(t *testing.T) {
	pose := types.Ident4().SetTranslation(types.XYZ(0, 0, 2.5))
	cam := CameraFromAngleX(pose, math32.Pi/3, 64, 64, 0.1, 5)

	orbited := cam.Orbit(types.Vec3{}, types.XYZ(0, 1, 0), math32.Pi)

	if got := orbited.Pose.Translation(); !vec3Near(got, types.XYZ(0, 0, -2.5), 1e-5) {
		t.Fatalf("expected orbited camera at (0, 0, -2.5); got %v", got)
	}

	// After half a turn the camera should look back along +Z at the pivot.
	_, dir := orbited.RayAt(orbited.CX, orbited.CY)
	if !vec3Near(dir, types.XYZ(0, 0, 1), 1e-5) {
		t.Fatalf("expected orbited camera to face the pivot; got direction %v", dir)
	}
}

func vec3Near(a, b types.Vec3, eps float32) bool {
	return math32.Abs(a[0]-b[0]) <= eps &&
		math32.Abs(a[1]-b[1]) <= eps &&
		math32.Abs(a[2]-b[2]) <= eps
}

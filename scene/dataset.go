package scene

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/harvey121/TurboNeRF/types"
)

var (
	ErrNoCameras      = errors.New("scene: dataset defines no cameras")
	ErrNoImages       = errors.New("scene: dataset defines no images")
	ErrCameraMismatch = errors.New("scene: camera count does not match image count")
)

// Dataset bundles the immutable world state the training kernels read:
// per-image cameras, the packed image pixels and the scene bounding box.
type Dataset struct {
	Cameras []Camera
	Images  *ImageSet
	BBox    BoundingBox
}

// Check that the dataset is internally consistent.
func (d *Dataset) Validate() error {
	if len(d.Cameras) == 0 {
		return ErrNoCameras
	}
	if d.Images == nil || d.Images.Count == 0 {
		return ErrNoImages
	}
	if len(d.Cameras) != d.Images.Count {
		return fmt.Errorf("%w: %d cameras, %d images", ErrCameraMismatch, len(d.Cameras), d.Images.Count)
	}

	for idx, cam := range d.Cameras {
		if cam.Near >= cam.Far {
			return fmt.Errorf("scene: camera %d: near %f must be less than far %f", idx, cam.Near, cam.Far)
		}
		if cam.FocalX == 0 || cam.FocalY == 0 {
			return fmt.Errorf("scene: camera %d: zero focal length", idx)
		}
	}

	size := d.BBox.Size()
	if size[0] <= 0 || size[1] <= 0 || size[2] <= 0 {
		return fmt.Errorf("scene: degenerate bounding box %v", d.BBox)
	}
	return nil
}

// Generate a synthetic dataset: cameras on a circle around the origin looking
// inward, images filled with a smooth color gradient. Useful for benchmarks
// and as a pipeline smoke fixture when no real capture is at hand.
func SyntheticDataset(nImages int, width, height uint32) (*Dataset, error) {
	if nImages < 1 {
		return nil, ErrNoImages
	}

	bbox := CubeBoundingBox(2)
	images, err := NewImageSet(nImages, int(width), int(height))
	if err != nil {
		return nil, err
	}

	const radius = 2.5
	cameras := make([]Camera, nImages)
	for i := 0; i < nImages; i++ {
		angle := 2 * math32.Pi * float32(i) / float32(nImages)

		// Start behind the scene on +Z looking at the origin, then orbit.
		pose := types.Ident4().SetTranslation(types.XYZ(0, 0, radius))
		cam := CameraFromAngleX(pose, math32.Pi/3, width, height, 0.1, 2*radius)
		cameras[i] = cam.Orbit(types.Vec3{}, types.XYZ(0, 1, 0), angle)

		data := images.ImageData(i)
		for y := 0; y < int(height); y++ {
			for x := 0; x < int(width); x++ {
				base := (y*int(width) + x) * 4
				data[base] = byte(255 * x / int(width))
				data[base+1] = byte(255 * y / int(height))
				data[base+2] = byte(255 * i / nImages)
				data[base+3] = 255
			}
		}
	}

	return &Dataset{Cameras: cameras, Images: images, BBox: bbox}, nil
}

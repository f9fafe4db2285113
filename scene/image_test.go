package scene

import (
	"testing"

	"github.com/chewxy/math32"
)

func TestSrgbToLinearTable(t *testing.T) {
	if srgbToLinear[0] != 0 {
		t.Fatalf("expected black to stay black; got %f", srgbToLinear[0])
	}
	if got := srgbToLinear[255]; math32.Abs(got-1) > 1e-6 {
		t.Fatalf("expected white to map to 1; got %f", got)
	}

	// sRGB mid-gray sits well below linear 0.5.
	if got := srgbToLinear[128]; got < 0.21 || got > 0.22 {
		t.Fatalf("expected sRGB 128 to map near 0.215; got %f", got)
	}

	for i := 1; i < 256; i++ {
		if srgbToLinear[i] <= srgbToLinear[i-1] {
			t.Fatalf("expected strictly increasing table; entry %d not greater than its predecessor", i)
		}
	}
}

func TestImageSetFetch(t *testing.T) {
	images, err := NewImageSet(2, 4, 2)
	if err != nil {
		t.Fatal(err)
	}

	if got := images.PixelsPerImage(); got != 8 {
		t.Fatalf("expected 8 pixels per image; got %d", got)
	}

	// Mark pixel (1, 1) of the second image.
	data := images.ImageData(1)
	base := (1*4 + 1) * 4
	data[base], data[base+1], data[base+2], data[base+3] = 255, 128, 0, 255

	r, g, b, a := images.RGBA(1, 1, 1)
	if r != 255 || g != 128 || b != 0 || a != 255 {
		t.Fatalf("expected raw pixel (255, 128, 0, 255); got (%d, %d, %d, %d)", r, g, b, a)
	}

	// The same pixel in the first image stays untouched.
	if r, _, _, _ = images.RGBA(0, 1, 1); r != 0 {
		t.Fatalf("expected first image to remain zeroed; got red %d", r)
	}
}

func TestLinearPremultipliedFlat(t *testing.T) {
	images, _ := NewImageSet(1, 2, 1)

	// Opaque pure red and a half-transparent white.
	data := images.ImageData(0)
	data[0], data[1], data[2], data[3] = 255, 0, 0, 255
	data[4], data[5], data[6], data[7] = 255, 255, 255, 128

	r, g, b, a := images.LinearPremultipliedFlat(0, 0)
	if math32.Abs(r-1) > 1e-6 || g != 0 || b != 0 || math32.Abs(a-1) > 1e-6 {
		t.Fatalf("expected opaque red to stay (1, 0, 0, 1); got (%f, %f, %f, %f)", r, g, b, a)
	}

	expAlpha := float32(128) / 255
	r, g, b, a = images.LinearPremultipliedFlat(0, 1)
	if math32.Abs(a-expAlpha) > 1e-6 {
		t.Fatalf("expected alpha %f; got %f", expAlpha, a)
	}
	if math32.Abs(r-expAlpha) > 1e-5 || math32.Abs(g-expAlpha) > 1e-5 || math32.Abs(b-expAlpha) > 1e-5 {
		t.Fatalf("expected white channels premultiplied to alpha; got (%f, %f, %f)", r, g, b)
	}
}

func TestSyntheticDataset(t *testing.T) {
	ds, err := SyntheticDataset(4, 16, 16)
	if err != nil {
		t.Fatal(err)
	}
	if err = ds.Validate(); err != nil {
		t.Fatalf("expected synthetic dataset to validate; got %v", err)
	}

	// All cameras keep their distance to the origin.
	expDist := ds.Cameras[0].Pose.Translation().Len()
	for idx, cam := range ds.Cameras {
		if dist := cam.Pose.Translation().Len(); math32.Abs(dist-expDist) > 1e-4 {
			t.Fatalf("[camera %d] expected orbit distance %f; got %f", idx, expDist, dist)
		}
	}
}

func TestDatasetValidate(t *testing.T) {
	ds, _ := SyntheticDataset(2, 8, 8)

	type spec struct {
		mutate   func(*Dataset)
		expError string
	}

	specs := []spec{
		{
			mutate:   func(d *Dataset) { d.Cameras = nil },
			expError: ErrNoCameras.Error(),
		},
		{
			mutate:   func(d *Dataset) { d.Images = nil },
			expError: ErrNoImages.Error(),
		},
		{
			mutate:   func(d *Dataset) { d.Cameras = d.Cameras[:1] },
			expError: ErrCameraMismatch.Error() + ": 1 cameras, 2 images",
		},
		{
			mutate:   func(d *Dataset) { d.Cameras[0].Near = 100 },
			expError: "scene: camera 0: near 100.000000 must be less than far 5.000000",
		},
	}

	for idx, s := range specs {
		clone := *ds
		clone.Cameras = append([]Camera(nil), ds.Cameras...)
		s.mutate(&clone)

		err := clone.Validate()
		if err == nil || err.Error() != s.expError {
			t.Fatalf("[spec %d] expected error %q; got %v", idx, s.expError, err)
		}
	}
}

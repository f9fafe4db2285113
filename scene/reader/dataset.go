package reader

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"time"

	"github.com/chewxy/math32"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/harvey121/TurboNeRF/asset"
	"github.com/harvey121/TurboNeRF/log"
	"github.com/harvey121/TurboNeRF/scene"
	"github.com/harvey121/TurboNeRF/types"
)

var (
	ErrNoFrames     = errors.New("reader: dataset descriptor defines no frames")
	ErrNoIntrinsics = errors.New("reader: descriptor defines neither camera_angle_x nor fl_x/fl_y")
	ErrBadTransform = errors.New("reader: frame transform must be a 4x4 matrix")
)

// frame is one entry of a descriptor's frame list.
type frame struct {
	FilePath        string      `json:"file_path"`
	TransformMatrix [][]float32 `json:"transform_matrix"`
}

// descriptor mirrors the transforms.json shape emitted by common NeRF capture
// tooling. Intrinsics may be given per-axis (fl_x/fl_y, cx/cy, w/h) or derived
// from camera_angle_x and the frame images.
type descriptor struct {
	CameraAngleX float32 `json:"camera_angle_x"`

	FocalX float32 `json:"fl_x"`
	FocalY float32 `json:"fl_y"`
	CX     float32 `json:"cx"`
	CY     float32 `json:"cy"`
	Width  uint32  `json:"w"`
	Height uint32  `json:"h"`

	// Edge length of the scene bounding cube.
	AabbScale float32 `json:"aabb_scale"`

	Near float32 `json:"near"`
	Far  float32 `json:"far"`

	Frames []frame `json:"frames"`
}

// Read a dataset descriptor and every frame image it references. The path may
// be a local file or an http/https URL; frame paths resolve relative to the
// descriptor.
func ReadDataset(pathToDescriptor string) (*scene.Dataset, error) {
	res, err := asset.NewResource(pathToDescriptor, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	return newDatasetReader().Read(res)
}

type datasetReader struct {
	logger log.Logger
}

func newDatasetReader() *datasetReader {
	return &datasetReader{
		logger: log.New("dataset reader"),
	}
}

// Read a dataset from a descriptor resource.
func (r *datasetReader) Read(res *asset.Resource) (*scene.Dataset, error) {
	r.logger.Noticef(`parsing dataset descriptor from "%s"`, res.Path())
	start := time.Now()

	var desc descriptor
	if err := json.NewDecoder(res).Decode(&desc); err != nil {
		return nil, fmt.Errorf("reader: could not parse descriptor %s: %w", res.Path(), err)
	}
	if len(desc.Frames) == 0 {
		return nil, ErrNoFrames
	}
	if desc.CameraAngleX == 0 && (desc.FocalX == 0 || desc.FocalY == 0) {
		return nil, ErrNoIntrinsics
	}

	bbox := scene.CubeBoundingBox(2)
	if desc.AabbScale > 0 {
		bbox = scene.CubeBoundingBox(desc.AabbScale)
	}

	var (
		images  *scene.ImageSet
		cameras = make([]scene.Camera, len(desc.Frames))
	)

	for i, fr := range desc.Frames {
		pose, err := poseFromRows(fr.TransformMatrix)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d", err, i)
		}

		img, err := r.readFrameImage(fr.FilePath, res)
		if err != nil {
			return nil, fmt.Errorf("reader: frame %d: %w", i, err)
		}

		bounds := img.Bounds()
		if images == nil {
			width, height := desc.Width, desc.Height
			if width == 0 || height == 0 {
				width, height = uint32(bounds.Dx()), uint32(bounds.Dy())
			}
			if images, err = scene.NewImageSet(len(desc.Frames), int(width), int(height)); err != nil {
				return nil, err
			}
		}
		if bounds.Dx() != images.Width || bounds.Dy() != images.Height {
			return nil, fmt.Errorf("reader: frame %d is %dx%d; the dataset wants %dx%d",
				i, bounds.Dx(), bounds.Dy(), images.Width, images.Height)
		}
		storeFrame(images, i, img)

		cameras[i] = cameraFor(&desc, pose, bbox, uint32(images.Width), uint32(images.Height))
	}

	ds := &scene.Dataset{Cameras: cameras, Images: images, BBox: bbox}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	r.logger.Noticef("loaded %d frames (%dx%d) in %d ms",
		images.Count, images.Width, images.Height, time.Since(start).Nanoseconds()/1e6)
	return ds, nil
}

// Fetch and decode one frame image (png, jpeg, bmp or tiff). Capture tooling
// sometimes omits the extension from file_path; assume png when it does.
func (r *datasetReader) readFrameImage(filePath string, relTo *asset.Resource) (image.Image, error) {
	framePath := filePath
	if path.Ext(framePath) == "" {
		framePath += ".png"
	}

	frameRes, err := asset.NewResource(framePath, relTo)
	if err != nil {
		return nil, err
	}
	defer frameRes.Close()

	img, _, err := image.Decode(frameRes)
	if err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", frameRes.Path(), err)
	}
	return img, nil
}

// Build the camera for a frame, filling descriptor gaps: focal length from
// camera_angle_x, principal point at the image center, near at 0.1 and far
// stretched so the whole bounding box stays in range.
func cameraFor(desc *descriptor, pose types.Mat4, bbox scene.BoundingBox, width, height uint32) scene.Camera {
	cam := scene.Camera{
		Pose:   pose,
		FocalX: desc.FocalX,
		FocalY: desc.FocalY,
		CX:     desc.CX,
		CY:     desc.CY,
		Width:  width,
		Height: height,
		Near:   desc.Near,
		Far:    desc.Far,
	}

	if cam.FocalX == 0 || cam.FocalY == 0 {
		focal := 0.5 * float32(width) / math32.Tan(0.5*desc.CameraAngleX)
		cam.FocalX, cam.FocalY = focal, focal
	}
	if cam.CX == 0 {
		cam.CX = 0.5 * float32(width)
	}
	if cam.CY == 0 {
		cam.CY = 0.5 * float32(height)
	}
	if cam.Near == 0 {
		cam.Near = 0.1
	}
	if cam.Far == 0 {
		toCenter := pose.Translation().Sub(bbox.Center()).Len()
		cam.Far = toCenter + bbox.MaxExtent()*math32.Sqrt(3)
	}
	return cam
}

// Convert a descriptor's row-major camera-to-world matrix. The convention
// matches scene.Camera: the camera looks down its local -Z with +Y up.
func poseFromRows(rows [][]float32) (types.Mat4, error) {
	if len(rows) != 4 {
		return types.Mat4{}, ErrBadTransform
	}

	var vecs [4]types.Vec4
	for i, row := range rows {
		if len(row) != 4 {
			return types.Mat4{}, ErrBadTransform
		}
		vecs[i] = types.XYZW(row[0], row[1], row[2], row[3])
	}
	return types.Mat4FromRows(vecs[0], vecs[1], vecs[2], vecs[3]), nil
}

// Copy a decoded frame into the set's packed straight-alpha RGBA8 storage.
func storeFrame(images *scene.ImageSet, index int, img image.Image) {
	var (
		data   = images.ImageData(index)
		bounds = img.Bounds()
	)

	if nrgba, ok := img.(*image.NRGBA); ok {
		rowBytes := images.Width * 4
		for y := 0; y < images.Height; y++ {
			src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+rowBytes]
			copy(data[y*rowBytes:(y+1)*rowBytes], src)
		}
		return
	}

	for y := 0; y < images.Height; y++ {
		for x := 0; x < images.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			base := (y*images.Width + x) * 4
			data[base] = c.R
			data[base+1] = c.G
			data[base+2] = c.B
			data[base+3] = c.A
		}
	}
}

package batch

import (
	"errors"
	"fmt"

	"github.com/harvey121/TurboNeRF/device"
	"github.com/harvey121/TurboNeRF/scene"
)

var (
	ErrInvalidBatchSize = errors.New("batch: batch size must be positive")
	ErrNoWorld          = errors.New("batch: no world state supplied")
)

// World bundles the immutable views the kernels read. The grid, box, cameras
// and images are shared read-only; every kernel invocation receives them
// explicitly instead of reaching for globals.
type World struct {
	Grid    *scene.OccupancyGrid
	BBox    scene.BoundingBox
	Cameras []scene.Camera
	Images  *scene.ImageSet
}

// Assemble the kernel world views from a dataset and its occupancy grid.
func NewWorld(ds *scene.Dataset, grid *scene.OccupancyGrid) (*World, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &World{
		Grid:    grid,
		BBox:    ds.BBox,
		Cameras: ds.Cameras,
		Images:  ds.Images,
	}, nil
}

// NetworkInputs is the compacted sample view handed to the network: x at i,
// y at i+Stride, z at i+2*Stride for the multi-channel fields.
type NetworkInputs struct {
	Pos []float32
	Dir []float32
	Dt  []float32

	// N is the live sample count; entries past it are stale.
	N      int
	Stride int
}

// RayTargets couples the ground-truth pixel colors with the per-ray layout
// of the compacted samples, so a loss can map samples back to pixels.
type RayTargets struct {
	Pixels  []float32
	Offsets []uint32
	Counts  []uint32
	Alive   []uint32

	NRays  int
	Stride int
}

// Resources owns a compute device plus the training batch buffers and
// exposes the marching passes as kernel methods. All device memory is
// allocated at construction and reused across iterations.
type Resources struct {
	dev  *device.Device
	bufs *trainingBuffers
}

// Allocate training resources for the given batch size.
func NewResources(dev *device.Device, batchSize int) (*Resources, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("%w; got %d", ErrInvalidBatchSize, batchSize)
	}
	return &Resources{
		dev:  dev,
		bufs: newTrainingBuffers(dev, batchSize),
	}, nil
}

// Get the batch capacity (the channel stride of every buffer).
func (r *Resources) BatchSize() int {
	return r.bufs.capacity
}

// Get the device bytes held by the batch buffers.
func (r *Resources) MemoryAllocated() uint64 {
	return r.dev.MemoryAllocated()
}

// Release the batch buffers.
func (r *Resources) Release() {
	r.bufs.Release()
}

// Get the per-ray uniform randoms consumed by the pixel sampler. The driver
// refills this before every SamplePixels pass.
func (r *Resources) PixelRandoms() []float32 {
	return r.bufs.PixelRandoms.Float32()
}

// Get the per-sample uniform randoms consumed by the sample generator. The
// driver refills this before every GenerateSamples pass.
func (r *Resources) SampleRandoms() []float32 {
	return r.bufs.SampleRandoms.Float32()
}

// Get the per-ray step counts written by CountSteps.
func (r *Resources) StepCounts() []uint32 {
	return r.bufs.StepCounts.Uint32()
}

// Get the per-ray compacted offsets. The external scan fills this from the
// step counts between the two marching passes.
func (r *Resources) Offsets() []uint32 {
	return r.bufs.Offsets.Uint32()
}

// Get the per-ray liveness flags.
func (r *Resources) AliveFlags() []uint32 {
	return r.bufs.Alive.Uint32()
}

// Get the compacted network input view for the first total samples.
func (r *Resources) NetworkInputs(total uint32) NetworkInputs {
	return NetworkInputs{
		Pos:    r.bufs.SamplePos.Float32(),
		Dir:    r.bufs.SampleDir.Float32(),
		Dt:     r.bufs.SampleDT.Float32(),
		N:      int(total),
		Stride: r.bufs.capacity,
	}
}

// Get the ground-truth view for the first nRays rays.
func (r *Resources) Targets(nRays int) RayTargets {
	return RayTargets{
		Pixels:  r.bufs.Pixels.Float32(),
		Offsets: r.bufs.Offsets.Uint32(),
		Counts:  r.bufs.StepCounts.Uint32(),
		Alive:   r.bufs.Alive.Uint32(),
		NRays:   nRays,
		Stride:  r.bufs.capacity,
	}
}

func (r *Resources) checkPassBounds(world *World, nRays int) error {
	if world == nil {
		return ErrNoWorld
	}
	if nRays < 1 || nRays > r.bufs.capacity {
		return fmt.Errorf("batch: ray count %d outside [1, %d]", nRays, r.bufs.capacity)
	}
	return nil
}

package batch

import (
	"reflect"

	"github.com/harvey121/TurboNeRF/device"
)

// trainingBuffers holds the structure-of-arrays state for one training batch.
// Multi-channel buffers store one channel per component with a fixed stride
// of capacity between components: x at i, y at i+capacity, z at i+2*capacity.
type trainingBuffers struct {
	capacity int

	// Ray state written by the pixel sampler.
	Pixels  *device.Buffer // 4 channels, linear premultiplied RGBA
	Origins *device.Buffer // 3 channels
	Dirs    *device.Buffer // 3 channels
	InvDirs *device.Buffer // 3 channels
	T       *device.Buffer
	TMax    *device.Buffer
	Alive   *device.Buffer

	// Marching state written by the counting pass and the external scan.
	StepCounts *device.Buffer
	Offsets    *device.Buffer

	// Uniform random inputs, refilled by the driver before each pass.
	PixelRandoms  *device.Buffer
	SampleRandoms *device.Buffer

	// Compacted network inputs written by the generation pass.
	SamplePos *device.Buffer // 3 channels
	SampleDir *device.Buffer // 3 channels
	SampleDT  *device.Buffer
}

// Allocate the full buffer set up front. Nothing in the training hot path
// allocates afterwards.
func newTrainingBuffers(dev *device.Device, capacity int) *trainingBuffers {
	bs := &trainingBuffers{
		capacity:      capacity,
		Pixels:        dev.Buffer("rayPixels"),
		Origins:       dev.Buffer("rayOrigins"),
		Dirs:          dev.Buffer("rayDirs"),
		InvDirs:       dev.Buffer("rayInvDirs"),
		T:             dev.Buffer("rayT"),
		TMax:          dev.Buffer("rayTMax"),
		Alive:         dev.Buffer("rayAlive"),
		StepCounts:    dev.Buffer("stepCounts"),
		Offsets:       dev.Buffer("rayOffsets"),
		PixelRandoms:  dev.Buffer("pixelRandoms"),
		SampleRandoms: dev.Buffer("sampleRandoms"),
		SamplePos:     dev.Buffer("samplePositions"),
		SampleDir:     dev.Buffer("sampleDirs"),
		SampleDT:      dev.Buffer("sampleDT"),
	}

	bs.Pixels.AllocFloat32(4 * capacity)
	bs.Origins.AllocFloat32(3 * capacity)
	bs.Dirs.AllocFloat32(3 * capacity)
	bs.InvDirs.AllocFloat32(3 * capacity)
	bs.T.AllocFloat32(capacity)
	bs.TMax.AllocFloat32(capacity)
	bs.Alive.AllocUint32(capacity)
	bs.StepCounts.AllocUint32(capacity)
	bs.Offsets.AllocUint32(capacity)
	bs.PixelRandoms.AllocFloat32(capacity)
	bs.SampleRandoms.AllocFloat32(capacity)
	bs.SamplePos.AllocFloat32(3 * capacity)
	bs.SampleDir.AllocFloat32(3 * capacity)
	bs.SampleDT.AllocFloat32(capacity)

	return bs
}

// Release all buffers.
func (bs *trainingBuffers) Release() {
	reflVal := reflect.ValueOf(*bs)
	var iface interface{}
	for fieldIndex := 0; fieldIndex < reflVal.NumField(); fieldIndex++ {
		if !reflVal.Field(fieldIndex).CanInterface() {
			continue
		}
		iface = reflVal.Field(fieldIndex).Interface()
		if buf, isBuffer := iface.(*device.Buffer); isBuffer {
			buf.Release()
		}
	}
}

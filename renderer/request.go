package renderer

import (
	"image"

	"github.com/harvey121/TurboNeRF/scene"
)

// Framebuffer receives the output of a render request as 8-bit sRGB
// RGBA pixels with straight alpha, in row-major order.
type Framebuffer struct {
	Width  uint32
	Height uint32
	Pix    []uint8
}

func NewFramebuffer(width, height uint32) *Framebuffer {
	return &Framebuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, 4*width*height),
	}
}

// Image wraps the framebuffer contents as an image.NRGBA sharing the
// same pixel storage.
func (fb *Framebuffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    fb.Pix,
		Stride: 4 * int(fb.Width),
		Rect:   image.Rect(0, 0, int(fb.Width), int(fb.Height)),
	}
}

type RenderRequest struct {
	// Camera generating the primary rays. Its dimensions must match
	// the output framebuffer.
	Camera scene.Camera

	// Field supplies density and color along the marched rays.
	Field Field

	// Output receives the rendered pixels.
	Output *Framebuffer

	// A channel to signal once for each completed task with the number
	// of pixels it rendered. Cancelled and superseded tasks signal
	// nothing. Sends are non-blocking; buffer for at least TaskCount
	// signals to avoid dropping any.
	Done chan<- uint32

	// A channel for reporting task errors back to the caller. Sends
	// are non-blocking.
	Errs chan<- error
}

// RenderTask is a contiguous pixel range of a frame assigned to one
// context.
type RenderTask struct {
	// Task index within the frame.
	Index int

	// First flat pixel and pixel count covered by this task.
	First int
	Count int
}

// TaskCount returns the number of tasks a frame splits into.
func TaskCount(width, height uint32, batchSize int) int {
	total := int(width) * int(height)
	return (total + batchSize - 1) / batchSize
}

// RenderPattern selects the order render tasks are handed to contexts.
type RenderPattern uint8

const (
	// LinearChunks dispatches tasks in frame order.
	LinearChunks RenderPattern = iota

	// InterleavedChunks strides the task order by the context count so
	// early completions cover the whole frame.
	InterleavedChunks
)

func (p RenderPattern) String() string {
	switch p {
	case LinearChunks:
		return "linear"
	case InterleavedChunks:
		return "interleaved"
	default:
		return "unknown"
	}
}

func ParseRenderPattern(name string) (RenderPattern, error) {
	switch name {
	case "linear":
		return LinearChunks, nil
	case "interleaved":
		return InterleavedChunks, nil
	default:
		return 0, ErrUnknownPattern
	}
}

// split carves totalPixels into batchSize tasks ordered according to
// the pattern. lanes is the context pool size.
func (p RenderPattern) split(totalPixels, batchSize, lanes int) []RenderTask {
	var (
		numTasks = (totalPixels + batchSize - 1) / batchSize
		tasks    = make([]RenderTask, 0, numTasks)
	)

	emit := func(index int) {
		first := index * batchSize
		count := batchSize
		if first+count > totalPixels {
			count = totalPixels - first
		}
		tasks = append(tasks, RenderTask{Index: index, First: first, Count: count})
	}

	switch p {
	case InterleavedChunks:
		if lanes < 1 {
			lanes = 1
		}
		for lane := 0; lane < lanes && lane < numTasks; lane++ {
			for index := lane; index < numTasks; index += lanes {
				emit(index)
			}
		}
	default:
		for index := 0; index < numTasks; index++ {
			emit(index)
		}
	}

	return tasks
}

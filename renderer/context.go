package renderer

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"

	"github.com/harvey121/TurboNeRF/batch"
	"github.com/harvey121/TurboNeRF/device"
	"github.com/harvey121/TurboNeRF/scene"
	"github.com/harvey121/TurboNeRF/types"
)

// Offset applied after the bounding box entry point so marching never starts
// exactly on a face.
const selfIntersectEpsilon = 1e-5

// Pixels rendered between generation checkpoints. Cancellation takes effect
// at the next checkpoint.
const checkpointPixels = 1024

// Transmittance below which a march terminates early.
const minTransmittance = 1.0 / 255

// renderContext owns one device and renders tasks claimed from the active
// dispatch. Its staging memory is allocated once at construction; rendering
// allocates nothing.
type renderContext struct {
	id    string
	dev   *device.Device
	accum *device.Buffer

	// Pixels per checkpoint, also the accum channel stride.
	chunk int

	grid   *scene.OccupancyGrid
	bbox   scene.BoundingBox
	params batch.MarchParams

	work chan *dispatch

	tasks  atomic.Uint64
	pixels atomic.Uint64
	busy   atomic.Int64
}

func newRenderContext(index int, grid *scene.OccupancyGrid, bbox scene.BoundingBox, opts Options) *renderContext {
	chunk := checkpointPixels
	if chunk > opts.BatchSize {
		chunk = opts.BatchSize
	}

	rc := &renderContext{
		id:     fmt.Sprintf("ctx-%d", index),
		dev:    device.New(fmt.Sprintf("render-%d", index), opts.Workers),
		chunk:  chunk,
		grid:   grid,
		bbox:   bbox,
		params: opts.March,
		work:   make(chan *dispatch, 1),
	}
	rc.accum = rc.dev.Buffer("accum")
	rc.accum.AllocFloat32(4 * chunk)
	return rc
}

func (rc *renderContext) release() {
	rc.accum.Release()
}

// Consume dispatches until the work channel closes.
func (rc *renderContext) loop(ctrl *Controller) {
	for d := range rc.work {
		rc.drain(ctrl, d)
	}
}

// Claim and render tasks until the dispatch is exhausted or superseded.
func (rc *renderContext) drain(ctrl *Controller, d *dispatch) {
	for ctrl.generation.Load() == d.gen {
		idx := int(d.next.Add(1)) - 1
		if idx >= len(d.tasks) {
			return
		}
		rc.run(ctrl, d, d.tasks[idx])
	}
}

// Render one task in checkpoint-sized chunks, re-checking the generation
// before each chunk and before each flush so stale work stops without
// touching the caller's framebuffer.
func (rc *renderContext) run(ctrl *Controller, d *dispatch, task RenderTask) {
	tick := time.Now()
	limit := task.First + task.Count

	for first := task.First; first < limit; first += rc.chunk {
		if ctrl.generation.Load() != d.gen {
			return
		}

		count := rc.chunk
		if first+count > limit {
			count = limit - first
		}

		if err := rc.renderChunk(d, first, count); err != nil {
			d.signalErr(fmt.Errorf("renderer: task %d: %w", task.Index, err))
			if errors.Is(err, device.ErrAborted) {
				ctrl.abort(d, err)
				return
			}
			d.finishTask(ctrl)
			return
		}

		if ctrl.generation.Load() != d.gen {
			return
		}
		rc.flush(d.req.Output, first, count)
	}

	rc.tasks.Add(1)
	rc.pixels.Add(uint64(task.Count))
	rc.busy.Add(int64(time.Since(tick)))

	d.signalDone(uint32(task.Count))
	d.finishTask(ctrl)
}

// Render pixels [first, first+count) into the accum buffer.
func (rc *renderContext) renderChunk(d *dispatch, first, count int) error {
	var (
		cam    = d.req.Camera
		field  = d.req.Field
		width  = int(d.req.Output.Width)
		accum  = rc.accum.Float32()
		stride = rc.chunk
		tMax   = cam.Far - cam.Near
	)

	kernel := rc.dev.Kernel("renderPixels", func(gid int) {
		origin, dir := cam.RayAt(float32(gid%width)+0.5, float32(gid/width)+0.5)
		r, g, b, a := rc.shade(field, origin, dir, tMax)

		local := gid - first
		accum[local] = r
		accum[local+stride] = g
		accum[local+2*stride] = b
		accum[local+3*stride] = a
	})

	_, err := kernel.Exec1D(first, count, 0)
	return err
}

// March a primary ray through the occupancy grid, compositing field samples
// front to back. Returns premultiplied linear RGB and alpha.
func (rc *renderContext) shade(field Field, origin, dir types.Vec3, tMax float32) (r, g, b, a float32) {
	invDir := dir.Inverse()

	tNear, hit := rc.bbox.Intersect(origin, invDir)
	t := math32.Max(0, tNear+selfIntersectEpsilon)
	if !hit || t > tMax {
		return 0, 0, 0, 0
	}

	var (
		transmittance float32 = 1
		steps         uint32
	)

	for t < tMax && steps < rc.params.MaxSteps {
		pos := origin.Add(dir.Mul(t))
		if !rc.bbox.Contains(pos) {
			break
		}

		dt := rc.grid.DT(t, rc.params.ConeAngle, rc.params.DTMin, rc.params.DTMax)
		level := rc.grid.LevelAt(pos, dt)

		if !rc.grid.Occupied(level, pos) {
			t += rc.grid.DTToNextVoxel(pos, dir, invDir, rc.params.DTMin, level)
			continue
		}

		density, color := field.Query(pos, dir)
		if density > 0 {
			alpha := 1 - math32.Exp(-density*dt)
			weight := transmittance * alpha
			r += weight * color[0]
			g += weight * color[1]
			b += weight * color[2]
			transmittance *= 1 - alpha

			if transmittance < minTransmittance {
				transmittance = 0
				break
			}
		}

		t += dt
		steps++
	}

	return r, g, b, 1 - transmittance
}

// Encode the accum chunk into the framebuffer as 8-bit sRGB, dividing
// out alpha so the stored color is straight rather than premultiplied.
func (rc *renderContext) flush(fb *Framebuffer, first, count int) {
	var (
		accum  = rc.accum.Float32()
		stride = rc.chunk
	)

	for i := 0; i < count; i++ {
		off := (first + i) * 4
		a := accum[i+3*stride]
		if a <= 0 {
			fb.Pix[off], fb.Pix[off+1], fb.Pix[off+2], fb.Pix[off+3] = 0, 0, 0, 0
			continue
		}

		inv := 1 / a
		fb.Pix[off] = encodeSRGB(accum[i] * inv)
		fb.Pix[off+1] = encodeSRGB(accum[i+stride] * inv)
		fb.Pix[off+2] = encodeSRGB(accum[i+2*stride] * inv)
		fb.Pix[off+3] = encodeUnit(a)
	}
}

func encodeSRGB(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	if v <= 0.0031308 {
		return uint8(v*12.92*255 + 0.5)
	}
	return uint8((1.055*math32.Pow(v, 1/2.4)-0.055)*255 + 0.5)
}

func encodeUnit(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

package renderer

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/chewxy/math32"

	"github.com/harvey121/TurboNeRF/batch"
	"github.com/harvey121/TurboNeRF/device"
	"github.com/harvey121/TurboNeRF/scene"
	"github.com/harvey121/TurboNeRF/types"
)

func TestControllerRenderCompletes(t *testing.T) {
	type spec struct {
		pattern RenderPattern
	}

	specs := []spec{
		{pattern: LinearChunks},
		{pattern: InterleavedChunks},
	}

	for specIndex, spec := range specs {
		grid, bbox := testOccupiedScene(t)
		ctrl, err := NewController(grid, bbox, Options{
			Contexts:  2,
			Workers:   2,
			BatchSize: 256,
			Pattern:   spec.pattern,
			March:     batch.MarchParams{ConeAngle: 1.0 / 256, DTMin: 0.05, DTMax: 0.05, MaxSteps: 256},
		})
		if err != nil {
			t.Fatalf("[spec %d] %v", specIndex, err)
		}

		var (
			fb   = NewFramebuffer(32, 32)
			done = make(chan uint32, TaskCount(32, 32, 256))
			errs = make(chan error, TaskCount(32, 32, 256))
		)
		req := &RenderRequest{
			Camera: frontCamera(32, 32),
			Field:  UniformField{Density: 50, Color: types.XYZ(1, 0, 0)},
			Output: fb,
			Done:   done,
			Errs:   errs,
		}

		if err := ctrl.Submit(req); err != nil {
			t.Fatalf("[spec %d] submit: %v", specIndex, err)
		}
		collectPixels(t, done, errs, 32*32)
		waitIdle(t, ctrl)

		// The center ray crosses the whole box: saturated red, opaque.
		center := 4 * (16*32 + 16)
		if r, a := fb.Pix[center], fb.Pix[center+3]; r != 255 || a != 255 {
			t.Fatalf("[spec %d] expected an opaque red center pixel; got r=%d a=%d", specIndex, r, a)
		}
		if g, b := fb.Pix[center+1], fb.Pix[center+2]; g != 0 || b != 0 {
			t.Fatalf("[spec %d] expected pure red at the center; got g=%d b=%d", specIndex, g, b)
		}

		// Corner rays miss the box entirely.
		if a := fb.Pix[3]; a != 0 {
			t.Fatalf("[spec %d] expected a transparent corner pixel; got alpha %d", specIndex, a)
		}

		stats := ctrl.Stats()
		var pixels uint64
		for _, ctx := range stats.Contexts {
			pixels += ctx.Pixels
			if ctx.MemoryBytes == 0 {
				t.Fatalf("[spec %d] context %s reports no staging memory", specIndex, ctx.Id)
			}
		}
		if pixels != 32*32 {
			t.Fatalf("[spec %d] context stats cover %d pixels; want %d", specIndex, pixels, 32*32)
		}
		if stats.Generation != 1 {
			t.Fatalf("[spec %d] expected generation 1; got %d", specIndex, stats.Generation)
		}

		ctrl.Close()
	}
}

func TestControllerSubmitCancel(t *testing.T) {
	grid, bbox := testOccupiedScene(t)
	ctrl, err := NewController(grid, bbox, Options{
		Contexts:  2,
		Workers:   1,
		BatchSize: 1024,
		March:     batch.MarchParams{ConeAngle: 1.0 / 256, DTMin: 0.005, DTMax: 0.005, MaxSteps: 1024},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer ctrl.Close()

	memBefore := ctrl.MemoryAllocated()

	// A frame slow enough that no task completes before the cancel lands.
	fb := NewFramebuffer(128, 128)
	if err := ctrl.Submit(&RenderRequest{
		Camera: frontCamera(128, 128),
		Field:  UniformField{Density: 0.05, Color: types.XYZ(0, 1, 0)},
		Output: fb,
	}); err != nil {
		t.Fatal(err)
	}
	if got := ctrl.State(); got != Rendering {
		t.Fatalf("expected state %s after submit; got %s", Rendering, got)
	}

	ctrl.Cancel()

	if got := ctrl.State(); got != Idle {
		t.Fatalf("expected state %s after cancel; got %s", Idle, got)
	}
	if got := ctrl.TasksOutstanding(); got != 0 {
		t.Fatalf("expected zero tasks outstanding after cancel; got %d", got)
	}
	if memAfter := ctrl.MemoryAllocated(); !reflect.DeepEqual(memBefore, memAfter) {
		t.Fatalf("context memory changed across submit/cancel: %v -> %v", memBefore, memAfter)
	}

	// The pool keeps serving after a cancel.
	var (
		small = NewFramebuffer(16, 16)
		done  = make(chan uint32, TaskCount(16, 16, 1024))
		errs  = make(chan error, 8)
	)
	if err := ctrl.Submit(&RenderRequest{
		Camera: frontCamera(16, 16),
		Field:  UniformField{Density: 50, Color: types.XYZ(0, 0, 1)},
		Output: small,
		Done:   done,
		Errs:   errs,
	}); err != nil {
		t.Fatal(err)
	}
	collectPixels(t, done, errs, 16*16)
	waitIdle(t, ctrl)

	if memAfter := ctrl.MemoryAllocated(); !reflect.DeepEqual(memBefore, memAfter) {
		t.Fatalf("context memory changed across renders: %v -> %v", memBefore, memAfter)
	}
}

func TestControllerSupersede(t *testing.T) {
	grid, bbox := testOccupiedScene(t)
	ctrl, err := NewController(grid, bbox, Options{
		Contexts:  2,
		Workers:   1,
		BatchSize: 512,
		March:     batch.MarchParams{ConeAngle: 1.0 / 256, DTMin: 0.005, DTMax: 0.005, MaxSteps: 1024},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer ctrl.Close()

	// A slow frame that gets replaced immediately.
	first := NewFramebuffer(64, 64)
	if err := ctrl.Submit(&RenderRequest{
		Camera: frontCamera(64, 64),
		Field:  UniformField{Density: 0.05, Color: types.XYZ(1, 1, 1)},
		Output: first,
	}); err != nil {
		t.Fatal(err)
	}

	var (
		second = NewFramebuffer(32, 32)
		done   = make(chan uint32, TaskCount(32, 32, 512))
		errs   = make(chan error, 8)
	)
	if err := ctrl.Submit(&RenderRequest{
		Camera: frontCamera(32, 32),
		Field:  UniformField{Density: 50, Color: types.XYZ(1, 0, 0)},
		Output: second,
		Done:   done,
		Errs:   errs,
	}); err != nil {
		t.Fatal(err)
	}

	collectPixels(t, done, errs, 32*32)
	waitIdle(t, ctrl)

	center := 4 * (16*32 + 16)
	if r, a := second.Pix[center], second.Pix[center+3]; r != 255 || a != 255 {
		t.Fatalf("expected the superseding frame fully rendered; got r=%d a=%d", r, a)
	}
	if got := ctrl.Stats().Generation; got != 2 {
		t.Fatalf("expected generation 2; got %d", got)
	}
}

func TestControllerFatalAbort(t *testing.T) {
	grid, bbox := testOccupiedScene(t)
	ctrl, err := NewController(grid, bbox, Options{Contexts: 2, Workers: 1, BatchSize: 64})
	if err != nil {
		t.Fatal(err)
	}
	defer ctrl.Close()

	var (
		fb   = NewFramebuffer(16, 16)
		errs = make(chan error, TaskCount(16, 16, 64))
	)
	if err := ctrl.Submit(&RenderRequest{
		Camera: frontCamera(16, 16),
		Field:  panicField{},
		Output: fb,
		Errs:   errs,
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errs:
		if !errors.Is(err, device.ErrAborted) {
			t.Fatalf("expected a device abort; got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the abort to surface")
	}
	waitIdle(t, ctrl)

	// A fatal abort tears down the generation, not the pool.
	var (
		after = NewFramebuffer(16, 16)
		done  = make(chan uint32, TaskCount(16, 16, 64))
		errs2 = make(chan error, 8)
	)
	if err := ctrl.Submit(&RenderRequest{
		Camera: frontCamera(16, 16),
		Field:  UniformField{Density: 50, Color: types.XYZ(0, 1, 0)},
		Output: after,
		Done:   done,
		Errs:   errs2,
	}); err != nil {
		t.Fatal(err)
	}
	collectPixels(t, done, errs2, 16*16)
	waitIdle(t, ctrl)
}

func TestControllerValidation(t *testing.T) {
	grid, bbox := testOccupiedScene(t)

	if _, err := NewController(nil, bbox, Options{}); err != ErrNoGrid {
		t.Fatalf("expected ErrNoGrid; got %v", err)
	}
	if _, err := NewController(grid, bbox, Options{Pattern: RenderPattern(9)}); err != ErrUnknownPattern {
		t.Fatalf("expected ErrUnknownPattern; got %v", err)
	}

	ctrl, err := NewController(grid, bbox, Options{Contexts: 1, Workers: 1})
	if err != nil {
		t.Fatal(err)
	}

	valid := func() *RenderRequest {
		return &RenderRequest{
			Camera: frontCamera(8, 8),
			Field:  UniformField{Density: 1, Color: types.XYZ(1, 1, 1)},
			Output: NewFramebuffer(8, 8),
		}
	}

	noOutput := valid()
	noOutput.Output = nil

	noField := valid()
	noField.Field = nil

	camMismatch := valid()
	camMismatch.Output = NewFramebuffer(4, 4)

	zeroDim := valid()
	zeroDim.Output = NewFramebuffer(0, 8)

	shortPix := valid()
	shortPix.Output = &Framebuffer{Width: 8, Height: 8, Pix: make([]uint8, 16)}

	type spec struct {
		req    *RenderRequest
		expErr error
	}

	specs := []spec{
		{req: nil, expErr: ErrNoRequest},
		{req: noOutput, expErr: ErrNoOutput},
		{req: noField, expErr: ErrNoField},
		{req: camMismatch, expErr: ErrBadFrameDims},
		{req: zeroDim, expErr: ErrBadFrameDims},
		{req: shortPix, expErr: ErrBadFrameDims},
	}

	for specIndex, spec := range specs {
		if err := ctrl.Submit(spec.req); err != spec.expErr {
			t.Fatalf("[spec %d] expected %v; got %v", specIndex, spec.expErr, err)
		}
	}

	ctrl.Close()
	ctrl.Close()

	if err := ctrl.Submit(valid()); err != ErrControllerClosed {
		t.Fatalf("expected ErrControllerClosed; got %v", err)
	}
	ctrl.Cancel()
}

// panicField trips the kernel recovery path.
type panicField struct{}

func (panicField) Query(_, _ types.Vec3) (float32, types.Vec3) {
	panic("field exploded")
}

func testOccupiedScene(t *testing.T) (*scene.OccupancyGrid, scene.BoundingBox) {
	t.Helper()

	bbox := scene.CubeBoundingBox(2)
	grid, err := scene.NewOccupancyGrid(1, 1, bbox)
	if err != nil {
		t.Fatal(err)
	}
	grid.MarkAll(true)
	return grid, bbox
}

func frontCamera(width, height uint32) scene.Camera {
	pose := types.Ident4().SetTranslation(types.XYZ(0, 0, 3))
	return scene.CameraFromAngleX(pose, math32.Pi/3, width, height, 0.1, 10)
}

func collectPixels(t *testing.T, done <-chan uint32, errs <-chan error, want uint32) {
	t.Helper()

	deadline := time.After(10 * time.Second)
	for got := uint32(0); got < want; {
		select {
		case n := <-done:
			got += n
		case err := <-errs:
			t.Fatalf("unexpected task error: %v", err)
		case <-deadline:
			t.Fatalf("render timed out with %d of %d pixels done", got, want)
		}
	}
}

func waitIdle(t *testing.T, ctrl *Controller) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for ctrl.State() != Idle || ctrl.TasksOutstanding() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("controller did not settle: state %s with %d tasks outstanding",
				ctrl.State(), ctrl.TasksOutstanding())
		}
		time.Sleep(time.Millisecond)
	}
}

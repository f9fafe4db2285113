package renderer

import (
	"image"
	"reflect"
	"testing"
)

func TestRenderPatternSplit(t *testing.T) {
	type spec struct {
		pattern  RenderPattern
		total    int
		batch    int
		lanes    int
		expTasks []RenderTask
	}

	specs := []spec{
		// Linear order with a short tail task.
		{
			pattern: LinearChunks,
			total:   10,
			batch:   4,
			lanes:   2,
			expTasks: []RenderTask{
				{Index: 0, First: 0, Count: 4},
				{Index: 1, First: 4, Count: 4},
				{Index: 2, First: 8, Count: 2},
			},
		},
		// Interleaving strides the same tasks by the lane count.
		{
			pattern: InterleavedChunks,
			total:   10,
			batch:   4,
			lanes:   2,
			expTasks: []RenderTask{
				{Index: 0, First: 0, Count: 4},
				{Index: 2, First: 8, Count: 2},
				{Index: 1, First: 4, Count: 4},
			},
		},
		{
			pattern: InterleavedChunks,
			total:   28,
			batch:   4,
			lanes:   3,
			expTasks: []RenderTask{
				{Index: 0, First: 0, Count: 4},
				{Index: 3, First: 12, Count: 4},
				{Index: 6, First: 24, Count: 4},
				{Index: 1, First: 4, Count: 4},
				{Index: 4, First: 16, Count: 4},
				{Index: 2, First: 8, Count: 4},
				{Index: 5, First: 20, Count: 4},
			},
		},
		// More lanes than tasks.
		{
			pattern: InterleavedChunks,
			total:   8,
			batch:   4,
			lanes:   4,
			expTasks: []RenderTask{
				{Index: 0, First: 0, Count: 4},
				{Index: 1, First: 4, Count: 4},
			},
		},
		// A single lane degenerates to linear order.
		{
			pattern: InterleavedChunks,
			total:   12,
			batch:   4,
			lanes:   1,
			expTasks: []RenderTask{
				{Index: 0, First: 0, Count: 4},
				{Index: 1, First: 4, Count: 4},
				{Index: 2, First: 8, Count: 4},
			},
		},
		// Frame smaller than one batch.
		{
			pattern:  LinearChunks,
			total:    4,
			batch:    8,
			lanes:    2,
			expTasks: []RenderTask{{Index: 0, First: 0, Count: 4}},
		},
	}

	for specIndex, spec := range specs {
		tasks := spec.pattern.split(spec.total, spec.batch, spec.lanes)
		if !reflect.DeepEqual(tasks, spec.expTasks) {
			t.Fatalf("[spec %d] expected tasks %v; got %v", specIndex, spec.expTasks, tasks)
		}

		var covered int
		for _, task := range tasks {
			covered += task.Count
		}
		if covered != spec.total {
			t.Fatalf("[spec %d] tasks cover %d pixels; want %d", specIndex, covered, spec.total)
		}
	}
}

func TestTaskCount(t *testing.T) {
	type spec struct {
		width    uint32
		height   uint32
		batch    int
		expCount int
	}

	specs := []spec{
		{width: 32, height: 32, batch: 256, expCount: 4},
		{width: 10, height: 1, batch: 4, expCount: 3},
		{width: 2, height: 2, batch: 64, expCount: 1},
	}

	for specIndex, spec := range specs {
		if got := TaskCount(spec.width, spec.height, spec.batch); got != spec.expCount {
			t.Fatalf("[spec %d] expected %d tasks; got %d", specIndex, spec.expCount, got)
		}
	}
}

func TestParseRenderPattern(t *testing.T) {
	for _, pattern := range []RenderPattern{LinearChunks, InterleavedChunks} {
		parsed, err := ParseRenderPattern(pattern.String())
		if err != nil {
			t.Fatalf("parsing %q: %v", pattern.String(), err)
		}
		if parsed != pattern {
			t.Fatalf("expected pattern %d to round-trip; got %d", pattern, parsed)
		}
	}

	if _, err := ParseRenderPattern("spiral"); err != ErrUnknownPattern {
		t.Fatalf("expected ErrUnknownPattern; got %v", err)
	}
}

func TestFramebufferImage(t *testing.T) {
	fb := NewFramebuffer(3, 2)
	if len(fb.Pix) != 24 {
		t.Fatalf("expected 24 bytes of pixel storage; got %d", len(fb.Pix))
	}

	fb.Pix[4] = 200
	img := fb.Image()

	if got, want := img.Rect, image.Rect(0, 0, 3, 2); got != want {
		t.Fatalf("expected bounds %v; got %v", want, got)
	}
	if img.Stride != 12 {
		t.Fatalf("expected stride 12; got %d", img.Stride)
	}
	if img.Pix[4] != 200 {
		t.Fatal("expected the image to share the framebuffer storage")
	}
}

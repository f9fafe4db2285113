package renderer

import "github.com/harvey121/TurboNeRF/batch"

type Options struct {
	// Size of the render context pool.
	Contexts int

	// Worker count for each context device.
	Workers int

	// Pixels per render task. Frames split into ceil(W*H/BatchSize) tasks.
	BatchSize int

	// Order in which tasks are handed out to contexts.
	Pattern RenderPattern

	// Ray marching parameters. The zero value selects defaults derived
	// from the scene bounding box.
	March batch.MarchParams
}

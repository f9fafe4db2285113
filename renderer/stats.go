package renderer

import "time"

type ContextStat struct {
	// The context id.
	Id string

	// Completed task and pixel totals since the controller started.
	Tasks  uint64
	Pixels uint64

	// Time spent rendering completed tasks.
	RenderTime time.Duration

	// Bytes held by the context device.
	MemoryBytes uint64
}

type ControllerStats struct {
	// Individual context stats.
	Contexts []ContextStat

	// Render generations submitted so far.
	Generation uint64
}

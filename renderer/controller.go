package renderer

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harvey121/TurboNeRF/batch"
	"github.com/harvey121/TurboNeRF/log"
	"github.com/harvey121/TurboNeRF/scene"
)

const (
	defaultContexts    = 2
	defaultRenderBatch = 1 << 16
)

// State describes what the controller is doing. Readers may observe the
// transient Cancelled state while a cancel or abort disowns the in-flight
// generation; both settle at Idle.
type State uint32

const (
	Idle State = iota
	Rendering
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rendering:
		return "rendering"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// dispatch is one submitted render generation: the request plus its task
// list. Contexts claim tasks by bumping next; pending counts tasks that have
// not finished yet.
type dispatch struct {
	gen   uint64
	req   *RenderRequest
	tasks []RenderTask

	next    atomic.Int64
	pending atomic.Int64
}

func (d *dispatch) signalDone(pixels uint32) {
	if d.req.Done == nil {
		return
	}
	select {
	case d.req.Done <- pixels:
	default:
	}
}

func (d *dispatch) signalErr(err error) {
	if d.req.Errs == nil {
		return
	}
	select {
	case d.req.Errs <- err:
	default:
	}
}

func (d *dispatch) finishTask(ctrl *Controller) {
	if d.pending.Add(-1) == 0 {
		ctrl.finish(d)
	}
}

// Controller owns a fixed pool of render contexts and at most one in-flight
// render generation. Submitting splits the frame into tasks the contexts
// claim and render concurrently; submitting again supersedes the previous
// generation. All context memory is allocated at construction and reused
// across requests.
type Controller struct {
	logger log.Logger
	opts   Options

	contexts []*renderContext
	wg       sync.WaitGroup

	// generation invalidates in-flight tasks when bumped. Contexts
	// compare it against their dispatch at every checkpoint.
	generation atomic.Uint64
	state      atomic.Uint32

	mu     sync.Mutex
	active *dispatch
	closed bool
}

func NewController(grid *scene.OccupancyGrid, bbox scene.BoundingBox, opts Options) (*Controller, error) {
	if grid == nil {
		return nil, ErrNoGrid
	}
	if opts.Pattern != LinearChunks && opts.Pattern != InterleavedChunks {
		return nil, ErrUnknownPattern
	}
	if opts.Contexts <= 0 {
		opts.Contexts = defaultContexts
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU() / opts.Contexts
		if opts.Workers < 1 {
			opts.Workers = 1
		}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultRenderBatch
	}
	if opts.March == (batch.MarchParams{}) {
		opts.March = batch.DefaultMarchParams(bbox)
	}

	c := &Controller{
		logger:   log.New("renderer"),
		opts:     opts,
		contexts: make([]*renderContext, opts.Contexts),
	}
	c.state.Store(uint32(Idle))

	var staging uint64
	for i := range c.contexts {
		rc := newRenderContext(i, grid, bbox, opts)
		c.contexts[i] = rc
		staging += rc.dev.MemoryAllocated()

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			rc.loop(c)
		}()
	}

	c.logger.Noticef("allocated %d render contexts (%d workers each, %d bytes staging)",
		opts.Contexts, opts.Workers, staging)
	return c, nil
}

// Submit validates a request, supersedes any in-flight generation and hands
// the frame's tasks to the context pool. It never blocks on rendering;
// completion is reported through the request's Done channel, one signal per
// task.
func (c *Controller) Submit(req *RenderRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrControllerClosed
	}

	gen := c.generation.Add(1)
	if c.active != nil {
		c.logger.Warningf("generation %d superseded with %d of %d tasks outstanding",
			c.active.gen, c.active.pending.Load(), len(c.active.tasks))
	}

	total := int(req.Output.Width) * int(req.Output.Height)
	d := &dispatch{
		gen:   gen,
		req:   req,
		tasks: c.opts.Pattern.split(total, c.opts.BatchSize, len(c.contexts)),
	}
	d.pending.Store(int64(len(d.tasks)))

	c.active = d
	c.state.Store(uint32(Rendering))

	// Replace whatever each context has queued. A context mid-task notices
	// the generation bump at its next checkpoint and comes back for this
	// dispatch on its own.
	for _, rc := range c.contexts {
		select {
		case <-rc.work:
		default:
		}
		rc.work <- d
	}

	c.logger.Noticef("generation %d: %d tasks covering %d pixels (%s order) on %d contexts",
		gen, len(d.tasks), total, c.opts.Pattern, len(c.contexts))
	return nil
}

// Cancel disowns the in-flight generation, if any. Tasks stop at their next
// checkpoint without writing further pixels; regions flushed before the
// cancel remain valid. Context memory is untouched.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return
	}

	c.state.Store(uint32(Cancelled))
	c.generation.Add(1)
	gen := c.active.gen
	c.active = nil
	c.state.Store(uint32(Idle))

	c.logger.Noticef("cancelled generation %d", gen)
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

// TasksOutstanding reports how many tasks of the active generation have not
// finished. Disowned generations count as zero.
func (c *Controller) TasksOutstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return 0
	}
	return int(c.active.pending.Load())
}

// MemoryAllocated returns the device memory footprint of each context. It
// reads atomic counters only and never blocks on a render in progress.
func (c *Controller) MemoryAllocated() []uint64 {
	out := make([]uint64, len(c.contexts))
	for i, rc := range c.contexts {
		out[i] = rc.dev.MemoryAllocated()
	}
	return out
}

func (c *Controller) Stats() ControllerStats {
	stats := ControllerStats{
		Contexts:   make([]ContextStat, len(c.contexts)),
		Generation: c.generation.Load(),
	}
	for i, rc := range c.contexts {
		stats.Contexts[i] = ContextStat{
			Id:          rc.id,
			Tasks:       rc.tasks.Load(),
			Pixels:      rc.pixels.Load(),
			RenderTime:  time.Duration(rc.busy.Load()),
			MemoryBytes: rc.dev.MemoryAllocated(),
		}
	}
	return stats
}

// Close disowns any in-flight generation, stops the context pool and
// releases context memory. The controller accepts no further requests.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation.Add(1)
	c.active = nil
	c.state.Store(uint32(Idle))
	for _, rc := range c.contexts {
		close(rc.work)
	}
	c.mu.Unlock()

	// Contexts may still be draining a stale task; release only after
	// every loop has exited.
	c.wg.Wait()
	for _, rc := range c.contexts {
		rc.release()
	}
	c.logger.Noticef("closed %d render contexts", len(c.contexts))
}

// finish retires a fully rendered generation. Superseded generations are
// ignored; their replacement owns the controller state.
func (c *Controller) finish(d *dispatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != d {
		return
	}
	c.active = nil
	c.state.Store(uint32(Idle))
	c.logger.Noticef("generation %d complete", d.gen)
}

// abort tears down a generation after a fatal device failure. Sibling tasks
// stop at their next checkpoint.
func (c *Controller) abort(d *dispatch, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != d {
		return
	}
	c.state.Store(uint32(Cancelled))
	c.generation.Add(1)
	c.active = nil
	c.state.Store(uint32(Idle))
	c.logger.Errorf("generation %d aborted: %v", d.gen, err)
}

func validateRequest(req *RenderRequest) error {
	switch {
	case req == nil:
		return ErrNoRequest
	case req.Output == nil:
		return ErrNoOutput
	case req.Field == nil:
		return ErrNoField
	}

	var (
		w = req.Output.Width
		h = req.Output.Height
	)
	if w == 0 || h == 0 || len(req.Output.Pix) != int(4*w*h) ||
		req.Camera.Width != w || req.Camera.Height != h {
		return ErrBadFrameDims
	}
	return nil
}

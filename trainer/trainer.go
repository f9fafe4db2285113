package trainer

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/harvey121/TurboNeRF/batch"
	"github.com/harvey121/TurboNeRF/device"
	"github.com/harvey121/TurboNeRF/log"
)

var (
	ErrNoNetwork = errors.New("trainer: no network attached")
	ErrNoWorld   = errors.New("trainer: no world state supplied")
)

// Network consumes compacted training batches. Implementations own the model
// weights, the loss and the optimizer; the trainer only marshals data to
// them.
type Network interface {
	// Run one optimization step over a compacted sample batch and return
	// the step loss.
	TrainStep(in batch.NetworkInputs, tgt batch.RayTargets) (float32, error)
}

const (
	defaultBatchSize = 1 << 18

	// Rays per step relative to the sample capacity. Marched scenes
	// average well below this many samples per ray, so the batch rarely
	// needs truncation.
	defaultRayDivisor = 32
)

type Options struct {
	// BatchSize is the compacted sample capacity per step and the channel
	// stride of every training buffer.
	BatchSize int

	// RaysPerStep is how many camera rays each step samples.
	RaysPerStep int

	// Workers per compute device. Non-positive selects one per CPU.
	Workers int

	// Seed for the pixel and jitter random streams.
	Seed int64

	// March overrides the marching parameters derived from the scene
	// bounds when set.
	March batch.MarchParams
}

// Trainer drives the training batch pipeline: it fills the random streams,
// runs the three kernel passes with the scan between the marching passes and
// hands the compacted batch to the network.
type Trainer struct {
	logger  log.Logger
	dev     *device.Device
	res     *batch.Resources
	world   *batch.World
	network Network
	march   batch.MarchParams
	rng     *rand.Rand

	nRays int
	step  uint64
}

// StepStats aggregates one training step's timings and batch sizes.
type StepStats struct {
	Step     uint64
	Rays     int
	LiveRays int
	Samples  uint32
	Loss     float32

	SampleTime   time.Duration
	CountTime    time.Duration
	GenerateTime time.Duration
	NetworkTime  time.Duration
}

// Create a trainer and allocate its batch buffers.
func New(world *batch.World, network Network, opts Options) (*Trainer, error) {
	if network == nil {
		return nil, ErrNoNetwork
	}
	if world == nil {
		return nil, ErrNoWorld
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.RaysPerStep <= 0 {
		opts.RaysPerStep = opts.BatchSize / defaultRayDivisor
		if opts.RaysPerStep < 1 {
			opts.RaysPerStep = 1
		}
	}
	if opts.RaysPerStep > opts.BatchSize {
		return nil, fmt.Errorf("trainer: %d rays per step exceed the %d sample capacity", opts.RaysPerStep, opts.BatchSize)
	}

	march := opts.March
	if march == (batch.MarchParams{}) {
		march = batch.DefaultMarchParams(world.BBox)
	}

	dev := device.New("train", opts.Workers)
	res, err := batch.NewResources(dev, opts.BatchSize)
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		logger:  log.New("trainer"),
		dev:     dev,
		res:     res,
		world:   world,
		network: network,
		march:   march,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		nRays:   opts.RaysPerStep,
	}
	t.logger.Noticef("allocated %d bytes of training buffers (%d rays/step, %d sample capacity)",
		dev.MemoryAllocated(), opts.RaysPerStep, opts.BatchSize)
	return t, nil
}

// Run one training step: sample pixels, count steps, scan, generate samples
// and invoke the network. A step where every ray misses occupied space is not
// an error; the network update is skipped and the stats report zero samples.
func (t *Trainer) Step() (StepStats, error) {
	stats := StepStats{Step: t.step, Rays: t.nRays}

	pixelRandoms := t.res.PixelRandoms()
	for i := 0; i < t.nRays; i++ {
		pixelRandoms[i] = t.rng.Float32()
	}
	jitter := t.res.SampleRandoms()
	for i := range jitter {
		jitter[i] = t.rng.Float32()
	}

	var err error
	if stats.SampleTime, err = t.res.SamplePixels(t.world, t.nRays); err != nil {
		return stats, err
	}
	if stats.CountTime, err = t.res.CountSteps(t.world, t.nRays, t.march); err != nil {
		return stats, err
	}

	var (
		counts  = t.res.StepCounts()
		offsets = t.res.Offsets()
		alive   = t.res.AliveFlags()
	)
	total := batch.ExclusiveScan(counts[:t.nRays], offsets[:t.nRays])
	kept := batch.TruncateToCapacity(counts, offsets, alive, t.nRays, uint32(t.res.BatchSize()))
	if kept < total {
		t.logger.Warningf("step %d: dropped %d of %d samples to fit the batch capacity", t.step, total-kept, total)
	}
	stats.Samples = kept

	for i := 0; i < t.nRays; i++ {
		if alive[i] != 0 {
			stats.LiveRays++
		}
	}

	t.step++
	if kept == 0 {
		t.logger.Warningf("step %d: no ray hit occupied space; skipping the network update", stats.Step)
		return stats, nil
	}

	if stats.GenerateTime, err = t.res.GenerateSamples(t.world, t.nRays, t.march); err != nil {
		return stats, err
	}

	tick := time.Now()
	loss, err := t.network.TrainStep(t.res.NetworkInputs(kept), t.res.Targets(t.nRays))
	stats.NetworkTime = time.Since(tick)
	if err != nil {
		return stats, fmt.Errorf("trainer: network step failed: %w", err)
	}
	stats.Loss = loss

	return stats, nil
}

// Get the number of completed steps.
func (t *Trainer) Steps() uint64 {
	return t.step
}

// Get the device bytes held by the training buffers.
func (t *Trainer) MemoryAllocated() uint64 {
	return t.dev.MemoryAllocated()
}

// Release the training buffers.
func (t *Trainer) Close() {
	t.res.Release()
}

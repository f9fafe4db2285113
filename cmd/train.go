package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/harvey121/TurboNeRF/batch"
	"github.com/harvey121/TurboNeRF/scene"
	"github.com/harvey121/TurboNeRF/trainer"
)

// noopNetwork discards its batches. It stands in for a model so the batch
// pipeline can be driven and timed on its own.
type noopNetwork struct{}

func (noopNetwork) TrainStep(batch.NetworkInputs, batch.RayTargets) (float32, error) {
	return 0, nil
}

// Run the training batch pipeline for a fixed number of steps and report
// per-stage timings.
func Train(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing dataset argument")
	}

	ds, err := loadDataset(ctx.Args().First(), ctx.Int("images"), uint32(ctx.Int("width")), uint32(ctx.Int("height")))
	if err != nil {
		return err
	}

	grid, err := scene.NewOccupancyGrid(ctx.Int("grid-levels"), ctx.Int("grid-resolution"), ds.BBox)
	if err != nil {
		return err
	}
	grid.MarkAll(true)
	logger.Noticef("occupancy grid: %d level(s) at %d^3 (%d bytes)", grid.Levels(), grid.Resolution(), grid.MemoryBytes())

	world, err := batch.NewWorld(ds, grid)
	if err != nil {
		return err
	}

	tr, err := trainer.New(world, noopNetwork{}, trainer.Options{
		BatchSize:   ctx.Int("batch-size"),
		RaysPerStep: ctx.Int("rays"),
		Workers:     ctx.Int("workers"),
		Seed:        ctx.Int64("seed"),
	})
	if err != nil {
		return err
	}
	defer tr.Close()

	var (
		nSteps    = ctx.Int("steps")
		samples   uint64
		liveRays  int
		stageTime [4]time.Duration
	)

	start := time.Now()
	for step := 0; step < nSteps; step++ {
		stats, err := tr.Step()
		if err != nil {
			return err
		}

		samples += uint64(stats.Samples)
		liveRays += stats.LiveRays
		stageTime[0] += stats.SampleTime
		stageTime[1] += stats.CountTime
		stageTime[2] += stats.GenerateTime
		stageTime[3] += stats.NetworkTime

		logger.Infof("step %d: %d samples from %d live rays", stats.Step, stats.Samples, stats.LiveRays)
	}
	elapsed := time.Since(start)

	logger.Noticef("trained %d steps in %d ms (%.0f samples/sec)",
		nSteps, elapsed.Nanoseconds()/1e6, float64(samples)/elapsed.Seconds())
	displayTrainStats(nSteps, samples, liveRays, stageTime, elapsed)

	return nil
}

func displayTrainStats(nSteps int, samples uint64, liveRays int, stageTime [4]time.Duration, elapsed time.Duration) {
	stages := []string{"sample pixels", "count steps", "generate samples", "network"}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Stage", "% of wall", "Time"})
	for i, stage := range stages {
		table.Append([]string{
			stage,
			fmt.Sprintf("%02.1f %%", 100*float64(stageTime[i])/float64(elapsed)),
			fmt.Sprintf("%s", stageTime[i]),
		})
	}
	table.SetFooter([]string{"", "TOTAL", fmt.Sprintf("%s", elapsed)})

	table.Render()
	logger.Noticef("training statistics (%d steps, %d samples, %d live rays)\n%s",
		nSteps, samples, liveRays, buf.String())
}

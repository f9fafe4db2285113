package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/harvey121/TurboNeRF/renderer"
	"github.com/harvey121/TurboNeRF/scene"
	"github.com/harvey121/TurboNeRF/types"
)

// Render one or more debug frames of the dataset volume to PNG files. Frames
// after the first orbit the camera around the scene.
func RenderFrames(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing dataset argument")
	}

	pattern, err := renderer.ParseRenderPattern(ctx.String("pattern"))
	if err != nil {
		return err
	}

	batchSize := ctx.Int("batch-size")
	if batchSize < 1 {
		return errors.New("batch-size must be positive")
	}

	width := uint32(ctx.Int("width"))
	height := uint32(ctx.Int("height"))

	ds, err := loadDataset(ctx.Args().First(), 1, width, height)
	if err != nil {
		return err
	}

	grid, err := debugGrid(ctx.Int("grid-resolution"), ds.BBox)
	if err != nil {
		return err
	}
	logger.Noticef("debug volume: %d occupied voxels at %d^3", grid.OccupiedCount(), grid.Resolution())

	ctrl, err := renderer.NewController(grid, ds.BBox, renderer.Options{
		Contexts:  ctx.Int("contexts"),
		Workers:   ctx.Int("workers"),
		BatchSize: batchSize,
		Pattern:   pattern,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	field := renderer.VoxelField{
		Grid:    grid,
		BBox:    ds.BBox,
		Density: float32(ctx.Float64("density")),
	}
	base := renderCamera(ds.Cameras[0], width, height)

	nFrames := ctx.Int("frames")
	if nFrames < 1 {
		nFrames = 1
	}

	start := time.Now()
	for frame := 0; frame < nFrames; frame++ {
		angle := 2 * math32.Pi * float32(frame) / float32(nFrames)
		cam := base.Orbit(ds.BBox.Center(), types.XYZ(0, 1, 0), angle)

		fb := renderer.NewFramebuffer(width, height)
		if err = renderFrame(ctrl, cam, field, fb, batchSize); err != nil {
			return err
		}
		if err = exportFrame(fb, frameFilename(ctx.String("out"), frame, nFrames)); err != nil {
			return err
		}
	}

	displayRenderStats(ctrl.Stats(), time.Since(start))
	return nil
}

// Submit one frame and block until every task has signalled completion.
func renderFrame(ctrl *renderer.Controller, cam scene.Camera, field renderer.Field, fb *renderer.Framebuffer, batchSize int) error {
	nTasks := renderer.TaskCount(fb.Width, fb.Height, batchSize)
	done := make(chan uint32, nTasks)
	errs := make(chan error, nTasks)

	start := time.Now()
	err := ctrl.Submit(&renderer.RenderRequest{
		Camera: cam,
		Field:  field,
		Output: fb,
		Done:   done,
		Errs:   errs,
	})
	if err != nil {
		return err
	}

	var pixels uint32
	for pixels < fb.Width*fb.Height {
		select {
		case n := <-done:
			pixels += n
		case err := <-errs:
			return err
		}
	}

	logger.Noticef("rendered %d pixels in %d ms", pixels, time.Since(start).Nanoseconds()/1e6)
	return nil
}

// Encode a completed framebuffer to a PNG file.
func exportFrame(fb *renderer.Framebuffer, file string) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()

	start := time.Now()
	if err = png.Encode(f, fb.Image()); err != nil {
		return err
	}
	logger.Noticef("wrote frame to %s in %d ms", file, time.Since(start).Nanoseconds()/1e6)
	return nil
}

// Get the output filename for a frame, numbering it when the render produces
// more than one.
func frameFilename(out string, frame, total int) string {
	if total == 1 {
		return out
	}
	ext := path.Ext(out)
	return fmt.Sprintf("%s-%03d%s", strings.TrimSuffix(out, ext), frame, ext)
}

// Rebuild a dataset camera at the requested output resolution, preserving its
// pose and horizontal field of view.
func renderCamera(cam scene.Camera, width, height uint32) scene.Camera {
	if cam.Width == width && cam.Height == height {
		return cam
	}
	angleX := 2 * math32.Atan(0.5*float32(cam.Width)/cam.FocalX)
	return scene.CameraFromAngleX(cam.Pose, angleX, width, height, cam.Near, cam.Far)
}

// Build the debug volume: a single-level grid with the voxels inside the
// sphere inscribed in the scene bounds marked occupied.
func debugGrid(resolution int, bbox scene.BoundingBox) (*scene.OccupancyGrid, error) {
	grid, err := scene.NewOccupancyGrid(1, resolution, bbox)
	if err != nil {
		return nil, err
	}

	var (
		center = bbox.Center()
		extent = bbox.MaxExtent()
		radius = 0.5 * extent
		res    = float32(resolution)
	)
	for z := 0; z < resolution; z++ {
		for y := 0; y < resolution; y++ {
			for x := 0; x < resolution; x++ {
				pos := types.XYZ(
					center[0]+extent*((float32(x)+0.5)/res-0.5),
					center[1]+extent*((float32(y)+0.5)/res-0.5),
					center[2]+extent*((float32(z)+0.5)/res-0.5),
				)
				if pos.Sub(center).Len() <= radius {
					grid.SetOccupied(0, x, y, z, true)
				}
			}
		}
	}
	return grid, nil
}

func displayRenderStats(stats renderer.ControllerStats, elapsed time.Duration) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Context", "Tasks", "Pixels", "Memory", "Render time"})
	for _, stat := range stats.Contexts {
		table.Append([]string{
			stat.Id,
			fmt.Sprintf("%d", stat.Tasks),
			fmt.Sprintf("%d", stat.Pixels),
			fmt.Sprintf("%d bytes", stat.MemoryBytes),
			fmt.Sprintf("%s", stat.RenderTime),
		})
	}
	table.SetFooter([]string{"", "", "", "TOTAL", fmt.Sprintf("%s", elapsed)})

	table.Render()
	logger.Noticef("render statistics\n%s", buf.String())
}

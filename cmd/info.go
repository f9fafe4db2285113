package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/harvey121/TurboNeRF/scene"
)

// Load a dataset and print a summary of its frames, cameras and bounds.
func DatasetInfo(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("missing dataset argument")
	}

	start := time.Now()
	ds, err := loadDataset(ctx.Args().First(), ctx.Int("images"), uint32(ctx.Int("width")), uint32(ctx.Int("height")))
	if err != nil {
		return err
	}
	logger.Noticef("loaded dataset in %d ms", time.Since(start).Nanoseconds()/1e6)

	displayDatasetStats(ds)
	return nil
}

func displayDatasetStats(ds *scene.Dataset) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Property", "Value"})
	table.Append([]string{"Frames", fmt.Sprintf("%d", ds.Images.Count)})
	table.Append([]string{"Resolution", fmt.Sprintf("%dx%d", ds.Images.Width, ds.Images.Height)})
	table.Append([]string{"Bounds", ds.BBox.String()})
	table.Append([]string{"Camera 0", ds.Cameras[0].String()})
	table.Append([]string{"Pixel memory", fmt.Sprintf("%d bytes", ds.Images.MemoryBytes())})

	table.Render()
	logger.Noticef("dataset summary\n%s", buf.String())
}

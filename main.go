package main

import (
	"os"

	"github.com/urfave/cli"

	"github.com/harvey121/TurboNeRF/cmd"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "turbonerf"
	app.Usage = "train and render neural radiance fields"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "info",
			Usage: "summarize a dataset",
			Description: `
Load and validate a dataset descriptor and print a summary of its frames,
cameras and scene bounds. Pass "synthetic" instead of a descriptor path to
inspect the generated orbit dataset.`,
			ArgsUsage: "transforms.json|synthetic",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "images",
					Value: 8,
					Usage: "synthetic dataset image count",
				},
				cli.IntFlag{
					Name:  "width",
					Value: 256,
					Usage: "synthetic dataset image width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 256,
					Usage: "synthetic dataset image height",
				},
			},
			Action: cmd.DatasetInfo,
		},
		{
			Name:  "train",
			Usage: "run the training batch pipeline",
			Description: `
Drive the batch generation pipeline (pixel sampling, step counting, offset
scan, sample generation) against a stand-in network for a fixed number of
steps and report per-stage timings.`,
			ArgsUsage: "transforms.json|synthetic",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "steps",
					Value: 100,
					Usage: "training steps to run",
				},
				cli.IntFlag{
					Name:  "batch-size",
					Value: 1 << 18,
					Usage: "sample capacity per training batch",
				},
				cli.IntFlag{
					Name:  "rays",
					Value: 0,
					Usage: "rays sampled per step (0 derives the count from batch-size)",
				},
				cli.IntFlag{
					Name:  "workers",
					Value: 0,
					Usage: "kernel workers (0 selects one per cpu)",
				},
				cli.Int64Flag{
					Name:  "seed",
					Value: 1,
					Usage: "seed for the pixel and jitter random streams",
				},
				cli.IntFlag{
					Name:  "grid-levels",
					Value: 1,
					Usage: "occupancy grid cascade count",
				},
				cli.IntFlag{
					Name:  "grid-resolution",
					Value: 128,
					Usage: "occupancy grid voxels per axis",
				},
				cli.IntFlag{
					Name:  "images",
					Value: 8,
					Usage: "synthetic dataset image count",
				},
				cli.IntFlag{
					Name:  "width",
					Value: 256,
					Usage: "synthetic dataset image width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 256,
					Usage: "synthetic dataset image height",
				},
			},
			Action: cmd.Train,
		},
		{
			Name:  "render",
			Usage: "render debug frames of the dataset volume",
			Description: `
Render the scene volume through the render controller using the voxel debug
field and write the frames to PNG files. Frames after the first orbit the
camera around the scene bounds.`,
			ArgsUsage: "transforms.json|synthetic",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 512,
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 512,
					Usage: "frame height",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.png",
					Usage: "image filename for the rendered frame",
				},
				cli.StringFlag{
					Name:  "pattern",
					Value: "linear",
					Usage: "task dispatch order (linear or interleaved)",
				},
				cli.IntFlag{
					Name:  "contexts",
					Value: 2,
					Usage: "render context count",
				},
				cli.IntFlag{
					Name:  "workers",
					Value: 0,
					Usage: "workers per context (0 splits the cpus across contexts)",
				},
				cli.IntFlag{
					Name:  "batch-size",
					Value: 1 << 16,
					Usage: "pixels per render task",
				},
				cli.IntFlag{
					Name:  "frames",
					Value: 1,
					Usage: "orbit frame count",
				},
				cli.IntFlag{
					Name:  "grid-resolution",
					Value: 128,
					Usage: "debug volume voxels per axis",
				},
				cli.Float64Flag{
					Name:  "density",
					Value: 25,
					Usage: "debug field density",
				},
			},
			Action: cmd.RenderFrames,
		},
	}

	app.Run(os.Args)
}

package cmd

import (
	"github.com/harvey121/TurboNeRF/scene"
	"github.com/harvey121/TurboNeRF/scene/reader"
)

// Dataset argument value that selects a generated orbit dataset instead of a
// transforms.json capture on disk.
const syntheticDataset = "synthetic"

// Load the dataset a command argument names. The image count and dimensions
// only apply to the synthetic dataset; captures carry their own.
func loadDataset(arg string, nImages int, width, height uint32) (*scene.Dataset, error) {
	if arg == syntheticDataset {
		return scene.SyntheticDataset(nImages, width, height)
	}
	return reader.ReadDataset(arg)
}

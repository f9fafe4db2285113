package renderer

import (
	"github.com/harvey121/TurboNeRF/scene"
	"github.com/harvey121/TurboNeRF/types"
)

// Field is a queryable radiance field. Render contexts call Query once
// per marching step inside occupied voxels.
type Field interface {
	// Query the field at a world position viewed along a direction and
	// return a volume density and a linear RGB color.
	Query(pos, dir types.Vec3) (density float32, color types.Vec3)
}

// UniformField fills occupied space with a constant density and color.
type UniformField struct {
	Density float32
	Color   types.Vec3
}

func (f UniformField) Query(_, _ types.Vec3) (float32, types.Vec3) {
	return f.Density, f.Color
}

// VoxelField shades level-0 occupied voxels by their normalized scene
// position. It previews occupancy grids without a trained network.
type VoxelField struct {
	Grid    *scene.OccupancyGrid
	BBox    scene.BoundingBox
	Density float32
}

func (f VoxelField) Query(pos, _ types.Vec3) (float32, types.Vec3) {
	if !f.Grid.Occupied(0, pos) {
		return 0, types.Vec3{}
	}
	return f.Density, f.BBox.ToUnit(pos)
}

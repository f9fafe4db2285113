package scene

import (
	"fmt"
	"math/bits"

	"github.com/chewxy/math32"

	"github.com/harvey121/TurboNeRF/types"
)

const maxGridResolution = 1024

// OccupancyGrid is a multiresolution voxel occupancy mask. Each level stores
// one bit per voxel in Morton order. Level 0 spans the scene bounding box;
// every level above it covers twice the extent of the one below, all centered
// on the same point.
type OccupancyGrid struct {
	levels     int
	resolution int
	center     types.Vec3
	baseExtent float32
	bitfields  [][]uint64
}

// Create an all-empty occupancy grid. The resolution is the voxel count per
// axis at every level and must be a power of two no larger than 1024.
func NewOccupancyGrid(levels, resolution int, bounds BoundingBox) (*OccupancyGrid, error) {
	if levels < 1 {
		return nil, fmt.Errorf("grid: level count must be positive; got %d", levels)
	}
	if resolution < 1 || resolution > maxGridResolution || resolution&(resolution-1) != 0 {
		return nil, fmt.Errorf("grid: resolution must be a power of two in [1, %d]; got %d", maxGridResolution, resolution)
	}

	wordsPerLevel := (resolution*resolution*resolution + 63) / 64
	bitfields := make([][]uint64, levels)
	for level := 0; level < levels; level++ {
		bitfields[level] = make([]uint64, wordsPerLevel)
	}

	return &OccupancyGrid{
		levels:     levels,
		resolution: resolution,
		center:     bounds.Center(),
		baseExtent: bounds.MaxExtent(),
		bitfields:  bitfields,
	}, nil
}

// Get the cascade count.
func (g *OccupancyGrid) Levels() int {
	return g.levels
}

// Get the voxel count per axis.
func (g *OccupancyGrid) Resolution() int {
	return g.resolution
}

// Get the cube edge length covered by a level.
func (g *OccupancyGrid) Extent(level int) float32 {
	return g.baseExtent * float32(uint32(1)<<uint(level))
}

// Get the voxel edge length at a level.
func (g *OccupancyGrid) VoxelSize(level int) float32 {
	return g.Extent(level) / float32(g.resolution)
}

// Get the marching step size at distance t along a ray. The step grows
// linearly with the cone angle and is clamped into [dtMin, dtMax].
func (g *OccupancyGrid) DT(t, coneAngle, dtMin, dtMax float32) float32 {
	dt := t * coneAngle
	if dt < dtMin {
		return dtMin
	}
	if dt > dtMax {
		return dtMax
	}
	return dt
}

// Get the cascade that should answer occupancy queries for a position and
// step size: the smallest level whose voxels are at least dt wide and whose
// extent contains the position, clamped to the top level.
func (g *OccupancyGrid) LevelAt(pos types.Vec3, dt float32) int {
	for level := 0; level < g.levels-1; level++ {
		if g.VoxelSize(level) >= dt && g.containsAtLevel(pos, level) {
			return level
		}
	}
	return g.levels - 1
}

// Check whether the voxel containing a position is occupied. Positions
// outside the level's extent are reported as unoccupied.
func (g *OccupancyGrid) Occupied(level int, pos types.Vec3) bool {
	x, y, z, ok := g.voxelCoords(level, pos)
	if !ok {
		return false
	}
	idx := mortonIndex(x, y, z)
	return g.bitfields[level][idx>>6]&(1<<(idx&63)) != 0
}

// Set the occupancy bit of a single voxel.
func (g *OccupancyGrid) SetOccupied(level, x, y, z int, occupied bool) {
	idx := mortonIndex(uint32(x), uint32(y), uint32(z))
	if occupied {
		g.bitfields[level][idx>>6] |= 1 << (idx & 63)
	} else {
		g.bitfields[level][idx>>6] &^= 1 << (idx & 63)
	}
}

// Set every voxel of every level to the given occupancy.
func (g *OccupancyGrid) MarkAll(occupied bool) {
	var word uint64
	if occupied {
		word = ^uint64(0)
	}
	voxels := uint64(g.resolution) * uint64(g.resolution) * uint64(g.resolution)
	for _, field := range g.bitfields {
		for i := range field {
			field[i] = word
		}
		// Keep the bits past the last voxel clear so popcounts stay exact.
		if tail := voxels & 63; occupied && tail != 0 {
			field[len(field)-1] = 1<<tail - 1
		}
	}
}

// Count the occupied voxels across all levels.
func (g *OccupancyGrid) OccupiedCount() int {
	var total int
	for _, field := range g.bitfields {
		for _, word := range field {
			total += bits.OnesCount64(word)
		}
	}
	return total
}

// Get the distance along a ray from pos to just past the next voxel boundary
// at a level, rounded up to a positive multiple of dtMin so empty-space skips
// stay aligned with the marching quantum.
func (g *OccupancyGrid) DTToNextVoxel(pos, dir, invDir types.Vec3, dtMin float32, level int) float32 {
	vox := g.VoxelSize(level)
	levelMin := g.Extent(level) * -0.5

	tBoundary := float32(math32.MaxFloat32)
	for axis := 0; axis < 3; axis++ {
		if dir[axis] == 0 {
			continue
		}
		local := (pos[axis] - (g.center[axis] + levelMin)) / vox
		boundary := math32.Floor(local)
		if dir[axis] > 0 {
			boundary += 1
		}
		world := g.center[axis] + levelMin + boundary*vox
		if t := (world - pos[axis]) * invDir[axis]; t < tBoundary {
			tBoundary = t
		}
	}

	steps := math32.Ceil(tBoundary / dtMin)
	if steps < 1 || math32.IsNaN(steps) {
		steps = 1
	}
	return steps * dtMin
}

// Get the grid's bitfield footprint in bytes.
func (g *OccupancyGrid) MemoryBytes() uint64 {
	var total uint64
	for _, field := range g.bitfields {
		total += uint64(len(field)) * 8
	}
	return total
}

func (g *OccupancyGrid) containsAtLevel(pos types.Vec3, level int) bool {
	half := g.Extent(level) * 0.5
	return pos[0] >= g.center[0]-half && pos[0] < g.center[0]+half &&
		pos[1] >= g.center[1]-half && pos[1] < g.center[1]+half &&
		pos[2] >= g.center[2]-half && pos[2] < g.center[2]+half
}

func (g *OccupancyGrid) voxelCoords(level int, pos types.Vec3) (x, y, z uint32, ok bool) {
	extent := g.Extent(level)
	res := float32(g.resolution)

	var coords [3]uint32
	for axis := 0; axis < 3; axis++ {
		u := (pos[axis]-g.center[axis])/extent + 0.5
		if u < 0 || u >= 1 {
			return 0, 0, 0, false
		}
		coords[axis] = uint32(u * res)
	}
	return coords[0], coords[1], coords[2], true
}

// Spread the low 21 bits of v three positions apart each.
func expand3(v uint32) uint64 {
	x := uint64(v) & 0x1fffff
	x = (x | x<<32) & 0x1f00000000ffff
	x = (x | x<<16) & 0x1f0000ff0000ff
	x = (x | x<<8) & 0x100f00f00f00f00f
	x = (x | x<<4) & 0x10c30c30c30c30c3
	x = (x | x<<2) & 0x1249249249249249
	return x
}

// Interleave three voxel coordinates into a Morton index.
func mortonIndex(x, y, z uint32) uint64 {
	return expand3(x) | expand3(y)<<1 | expand3(z)<<2
}

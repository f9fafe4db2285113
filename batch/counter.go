package batch

import (
	"time"

	"github.com/harvey121/TurboNeRF/types"
)

// CountSteps walks every live ray through the occupancy grid and records how
// many samples it will emit, without writing sample data. Rays that produce
// zero steps are marked dead. On a ray's first occupied hit the march
// re-anchors its origin; the anchored origin and a zeroed t are persisted to
// the ray buffers so the generation pass re-marches from identical state.
func (r *Resources) CountSteps(world *World, nRays int, march MarchParams) (time.Duration, error) {
	if err := r.checkPassBounds(world, nRays); err != nil {
		return 0, err
	}

	var (
		stride  = r.bufs.capacity
		origins = r.bufs.Origins.Float32()
		dirs    = r.bufs.Dirs.Float32()
		invDirs = r.bufs.InvDirs.Float32()
		tVals   = r.bufs.T.Float32()
		tMaxes  = r.bufs.TMax.Float32()
		alive   = r.bufs.Alive.Uint32()
		counts  = r.bufs.StepCounts.Uint32()
	)

	kernel := r.dev.Kernel("countSteps", func(i int) {
		counts[i] = 0
		if alive[i] == 0 {
			return
		}

		m := marchState{
			grid:   world.Grid,
			bbox:   world.BBox,
			params: march,
			origin: types.XYZ(origins[i], origins[i+stride], origins[i+2*stride]),
			dir:    types.XYZ(dirs[i], dirs[i+stride], dirs[i+2*stride]),
			invDir: types.XYZ(invDirs[i], invDirs[i+stride], invDirs[i+2*stride]),
			t:      tVals[i],
			tMax:   tMaxes[i],
		}
		for {
			if _, _, _, ok := m.next(); !ok {
				break
			}
		}

		if m.steps == 0 {
			alive[i] = 0
			return
		}

		counts[i] = m.steps
		origins[i], origins[i+stride], origins[i+2*stride] = m.origin[0], m.origin[1], m.origin[2]
		tVals[i] = 0
	})

	return kernel.Exec1D(0, nRays, 0)
}

package batch

import (
	"fmt"
	"time"

	"github.com/harvey121/TurboNeRF/types"
)

// GenerateSamples re-marches every live ray exactly as CountSteps did and
// emits one normalized sample per occupied step into the compacted output
// buffers. Ray i's k-th sample lands at flat index offsets[i]+k, with the
// batch stride between channel components. The sample t is jittered inside
// its step interval by the per-sample random buffer; positions map into the
// bounding box unit cube, directions remap from [-1,1] to [0,1] and the step
// size is scaled by the inverse box extent.
//
// Emitting more or fewer samples than counted is a contract violation and
// aborts the pass rather than corrupting neighboring rays' output.
func (r *Resources) GenerateSamples(world *World, nRays int, march MarchParams) (time.Duration, error) {
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
		offsets = r.bufs.Offsets.Uint32()
		randoms = r.bufs.SampleRandoms.Float32()

		samplePos = r.bufs.SamplePos.Float32()
		sampleDir = r.bufs.SampleDir.Float32()
		sampleDT  = r.bufs.SampleDT.Float32()
	)

	invExtent := 1 / world.BBox.MaxExtent()

	kernel := r.dev.Kernel("generateSamples", func(i int) {
		if alive[i] == 0 || counts[i] == 0 {
			return
		}
		count := counts[i]
		base := offsets[i]

		m := marchState{
			grid:     world.Grid,
			bbox:     world.BBox,
			params:   march,
			origin:   types.XYZ(origins[i], origins[i+stride], origins[i+2*stride]),
			dir:      types.XYZ(dirs[i], dirs[i+stride], dirs[i+2*stride]),
			invDir:   types.XYZ(invDirs[i], invDirs[i+stride], invDirs[i+2*stride]),
			t:        tVals[i],
			tMax:     tMaxes[i],
			anchored: true,
		}

		remapped := m.dir.Add(types.XYZ(1, 1, 1)).Mul(0.5)

		var k uint32
		for {
			t0, dt, pos, ok := m.next()
			if !ok {
				break
			}
			if k >= count {
				panic(fmt.Sprintf("batch: ray %d emitted more samples than its count %d", i, count))
			}

			sample := m.origin.Add(m.dir.Mul(t0 + randoms[base+k]*dt))
			exited := !m.bbox.Contains(sample)
			if exited {
				// Jitter escaped the box on the final step: emit the
				// pre-exit interval start instead and finish the ray.
				sample = pos
			}

			flat := int(base + k)
			unit := world.BBox.ToUnit(sample)
			samplePos[flat], samplePos[flat+stride], samplePos[flat+2*stride] = unit[0], unit[1], unit[2]
			sampleDir[flat], sampleDir[flat+stride], sampleDir[flat+2*stride] = remapped[0], remapped[1], remapped[2]
			sampleDT[flat] = dt * invExtent

			k++
			if exited {
				break
			}
		}

		if k != count {
			panic(fmt.Sprintf("batch: ray %d emitted %d samples but counted %d", i, k, count))
		}
	})

	return kernel.Exec1D(0, nRays, 0)
}

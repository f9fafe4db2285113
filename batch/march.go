package batch

import (
	"github.com/chewxy/math32"

	"github.com/harvey121/TurboNeRF/scene"
	"github.com/harvey121/TurboNeRF/types"
)

// Offset applied after the bounding box entry point so marching never starts
// exactly on a face.
const selfIntersectEpsilon = 1e-5

// MarchParams bundles the step sizing constants shared by the counting and
// the generation pass. Both passes must receive the same values.
type MarchParams struct {
	// ConeAngle grows the step size linearly with marching distance.
	ConeAngle float32

	// DTMin and DTMax clamp the step size.
	DTMin float32
	DTMax float32

	// MaxSteps caps the samples a single ray may produce.
	MaxSteps uint32
}

// Derive marching parameters from the scene scale: fine steps near the
// camera, capped at a sixteenth of the volume, growing with distance.
func DefaultMarchParams(bbox scene.BoundingBox) MarchParams {
	extent := bbox.MaxExtent() * math32.Sqrt(3)
	return MarchParams{
		ConeAngle: 1.0 / 256,
		DTMin:     extent / 1024,
		DTMax:     extent / 16,
		MaxSteps:  1024,
	}
}

// marchState walks one ray through the occupancy grid. The counting and the
// generation pass both drive the same next body, so given identical starting
// state they produce identical step sequences; that identity is what keeps
// the counted capacity and the emitted samples in exact agreement.
type marchState struct {
	grid   *scene.OccupancyGrid
	bbox   scene.BoundingBox
	params MarchParams

	origin types.Vec3
	dir    types.Vec3
	invDir types.Vec3
	t      float32
	tMax   float32

	// anchored is set once the ray origin has been moved up to its first
	// occupied position. The counting pass starts un-anchored and persists
	// the anchor to the ray buffers; the generation pass re-marches from
	// that persisted state and must start anchored.
	anchored bool
	steps    uint32
}

// Advance to the ray's next occupied step. Returns the interval start t, the
// interval width dt and the world position at the interval start, or
// ok=false once the ray leaves the bounding box, exhausts its t budget or
// hits the step cap.
//
// The very first occupied hit does not produce a step: it re-anchors the ray
// origin to the hit position and restarts t at zero, so the step grid after
// the anchor is free of float error accumulated across empty-space skips.
func (m *marchState) next() (stepT, stepDT float32, pos types.Vec3, ok bool) {
	for m.t < m.tMax && m.steps < m.params.MaxSteps {
		pos = m.origin.Add(m.dir.Mul(m.t))
		if !m.bbox.Contains(pos) {
			return 0, 0, pos, false
		}

		dt := m.grid.DT(m.t, m.params.ConeAngle, m.params.DTMin, m.params.DTMax)
		level := m.grid.LevelAt(pos, dt)

		if !m.grid.Occupied(level, pos) {
			m.t += m.grid.DTToNextVoxel(pos, m.dir, m.invDir, m.params.DTMin, level)
			continue
		}

		if !m.anchored {
			m.anchored = true
			m.origin = pos
			m.t = 0
			continue
		}

		stepT = m.t
		m.t += dt
		m.steps++
		return stepT, dt, pos, true
	}
	return 0, 0, types.Vec3{}, false
}

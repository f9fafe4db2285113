package batch

import (
	"time"

	"github.com/chewxy/math32"
)

// SamplePixels fills the ray buffers for the next training iteration: one
// ray per index below nRays, aimed at a randomized pixel of its image.
//
// Pixel selection partitions every image into raysPerImage equal-width
// chunks (chunk width is generally fractional) and picks one pixel uniformly
// inside ray i's chunk, so adjacent ray indices stay spatially close while
// the whole image area gets sampled across iterations. Rays that miss the
// scene bounding box, or whose entry point lies beyond the marchable range,
// are marked dead and produce no further outputs.
func (r *Resources) SamplePixels(world *World, nRays int) (time.Duration, error) {
	if err := r.checkPassBounds(world, nRays); err != nil {
		return 0, err
	}

	var (
		stride  = r.bufs.capacity
		pixels  = r.bufs.Pixels.Float32()
		origins = r.bufs.Origins.Float32()
		dirs    = r.bufs.Dirs.Float32()
		invDirs = r.bufs.InvDirs.Float32()
		tVals   = r.bufs.T.Float32()
		tMaxes  = r.bufs.TMax.Float32()
		alive   = r.bufs.Alive.Uint32()
		randoms = r.bufs.PixelRandoms.Float32()
	)

	images := world.Images
	nImages := images.Count
	pixelsPerImage := images.PixelsPerImage()
	width := images.Width

	raysPerImage := nRays / nImages
	if raysPerImage < 1 {
		raysPerImage = 1
	}
	chunkWidth := float32(pixelsPerImage) / float32(raysPerImage)

	kernel := r.dev.Kernel("samplePixels", func(i int) {
		imgIdx := i / raysPerImage
		if imgIdx >= nImages {
			imgIdx = nImages - 1
		}

		chunkIdx := math32.Mod(float32(i), float32(raysPerImage))
		flat := int(chunkWidth * (chunkIdx + randoms[i]))
		if flat >= pixelsPerImage {
			flat = pixelsPerImage - 1
		}

		cam := &world.Cameras[imgIdx]
		origin, dir := cam.RayAt(float32(flat%width)+0.5, float32(flat/width)+0.5)
		invDir := dir.Inverse()

		tNear, hit := world.BBox.Intersect(origin, invDir)
		tMax := cam.Far - cam.Near
		t := math32.Max(0, tNear+selfIntersectEpsilon)
		if !hit || t > tMax {
			alive[i] = 0
			tVals[i] = 0
			tMaxes[i] = 0
			return
		}

		cr, cg, cb, ca := images.LinearPremultipliedFlat(imgIdx, flat)
		pixels[i] = cr
		pixels[i+stride] = cg
		pixels[i+2*stride] = cb
		pixels[i+3*stride] = ca

		origins[i], origins[i+stride], origins[i+2*stride] = origin[0], origin[1], origin[2]
		dirs[i], dirs[i+stride], dirs[i+2*stride] = dir[0], dir[1], dir[2]
		invDirs[i], invDirs[i+stride], invDirs[i+2*stride] = invDir[0], invDir[1], invDir[2]
		tVals[i] = t
		tMaxes[i] = tMax
		alive[i] = 1
	})

	return kernel.Exec1D(0, nRays, 0)
}

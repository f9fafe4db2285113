package batch

// ExclusiveScan writes the exclusive prefix sum of counts into offsets and
// returns the total. The scan runs between the counting and the generation
// pass and is deliberately not part of either kernel: the generation pass
// depends on every count being final.
func ExclusiveScan(counts, offsets []uint32) uint32 {
	var running uint32
	for i, count := range counts {
		offsets[i] = running
		running += count
	}
	return running
}

// TruncateToCapacity drops whole rays from the tail of the batch until the
// compacted sample total fits the capacity. Dropped rays are marked dead
// with zeroed counts so the generation pass skips them; partially emitting
// a ray is never allowed. Returns the new total.
func TruncateToCapacity(counts, offsets, alive []uint32, nRays int, capacity uint32) uint32 {
	var total uint32
	for i := 0; i < nRays; i++ {
		if alive[i] == 0 || counts[i] == 0 {
			continue
		}
		if offsets[i]+counts[i] > capacity {
			for j := i; j < nRays; j++ {
				alive[j] = 0
				counts[j] = 0
			}
			return total
		}
		total = offsets[i] + counts[i]
	}
	return total
}

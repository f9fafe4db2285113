package device

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrAborted wraps every error produced by a panic inside a kernel body.
// Callers treat aborted kernels as fatal device failures.
var ErrAborted = errors.New("aborted")

// KernelFunc is the per-item body of a data-parallel kernel. The body runs
// concurrently for disjoint item ranges and must only write state owned by
// its own item.
type KernelFunc func(gid int)

// Kernel is a named data-parallel function bound to a device.
type Kernel struct {
	device *Device
	name   string
	fn     KernelFunc
}

// Get the kernel name.
func (k *Kernel) Name() string {
	return k.name
}

// Execute the kernel for item indices [offset, offset+globalSize), fanning
// contiguous chunks across the device workers and blocking until every item
// has run. If grain is 0 the work is split evenly across the workers;
// otherwise chunks of grain items are handed out round-robin. A panic inside
// the kernel body is recovered and reported as an error for the whole
// execution.
func (k *Kernel) Exec1D(offset, globalSize, grain int) (time.Duration, error) {
	if globalSize <= 0 {
		return 0, nil
	}

	tick := time.Now()

	workers := k.device.Workers
	if workers > globalSize {
		workers = globalSize
	}
	if grain <= 0 {
		grain = (globalSize + workers - 1) / workers
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		kernErr  error
		nextBase = offset
		limit    = offset + globalSize
		mu       sync.Mutex
	)

	claim := func() (int, int, bool) {
		mu.Lock()
		defer mu.Unlock()
		if nextBase >= limit {
			return 0, 0, false
		}
		start := nextBase
		end := start + grain
		if end > limit {
			end = limit
		}
		nextBase = end
		return start, end, true
	}

	run := func(start, end int) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("device (%s): kernel %s %w: %v", k.device.Name, k.name, ErrAborted, r)
			}
		}()
		for gid := start; gid < end; gid++ {
			k.fn(gid)
		}
		return nil
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				start, end, ok := claim()
				if !ok {
					return
				}
				if err := run(start, end); err != nil {
					errOnce.Do(func() { kernErr = err })
					return
				}
			}
		}()
	}
	wg.Wait()

	return time.Since(tick), kernErr
}

package device

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// Device is a named compute context: a fixed-width pool of workers that
// kernels fan out over, plus an allocation counter covering every buffer
// bound to it. One Device stands in for one accelerator stream; rendering
// contexts each own their own.
type Device struct {
	Name    string
	Workers int

	allocated atomic.Uint64
}

// Create a compute device with the given worker count. A non-positive count
// selects one worker per logical CPU.
func New(name string, workers int) *Device {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Device{
		Name:    name,
		Workers: workers,
	}
}

// Implements Stringer.
func (d *Device) String() string {
	return fmt.Sprintf("Name: %s\nSpecs: %d workers, %d bytes allocated", d.Name, d.Workers, d.MemoryAllocated())
}

// Get the bytes currently held by this device's buffers. Safe to call from
// any goroutine while kernels run.
func (d *Device) MemoryAllocated() uint64 {
	return d.allocated.Load()
}

// Create an empty buffer.
func (d *Device) Buffer(name string) *Buffer {
	return &Buffer{
		device: d,
		name:   name,
	}
}

// Bind a kernel body to this device.
func (d *Device) Kernel(name string, fn KernelFunc) *Kernel {
	return &Kernel{
		device: d,
		name:   name,
		fn:     fn,
	}
}

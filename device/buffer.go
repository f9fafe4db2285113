package device

// Word width of the element types a buffer can hold.
const (
	sizeofFloat32 = 4
	sizeofUint32  = 4
)

// Buffer is a named block of device-tracked memory. A buffer holds either
// float32 or uint32 words; allocating one view releases the other. All sizes
// count toward the owning device's allocation counter.
type Buffer struct {
	device *Device
	name   string

	f32 []float32
	u32 []uint32
}

// Get the buffer name.
func (b *Buffer) Name() string {
	return b.name
}

// Get the allocated buffer size in bytes.
func (b *Buffer) Size() uint64 {
	return uint64(len(b.f32))*sizeofFloat32 + uint64(len(b.u32))*sizeofUint32
}

// Allocate the buffer as n float32 words and return the backing slice. Any
// previous contents are released first.
func (b *Buffer) AllocFloat32(n int) []float32 {
	b.Release()
	b.f32 = make([]float32, n)
	b.device.allocated.Add(uint64(n) * sizeofFloat32)
	return b.f32
}

// Allocate the buffer as n uint32 words and return the backing slice. Any
// previous contents are released first.
func (b *Buffer) AllocUint32(n int) []uint32 {
	b.Release()
	b.u32 = make([]uint32, n)
	b.device.allocated.Add(uint64(n) * sizeofUint32)
	return b.u32
}

// Get the float32 view of the buffer.
func (b *Buffer) Float32() []float32 {
	return b.f32
}

// Get the uint32 view of the buffer.
func (b *Buffer) Uint32() []uint32 {
	return b.u32
}

// Release the buffer contents and credit the device allocation counter.
func (b *Buffer) Release() {
	if size := b.Size(); size > 0 {
		b.device.allocated.Add(^uint64(size - 1))
	}
	b.f32 = nil
	b.u32 = nil
}

package swap

import "fmt"

// A Builder can build swap spaces.
type Builder struct {
	numSlots int
	slotSize int
	device   Device
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		numSlots: 1024,
		slotSize: 4096,
	}
}

// WithNumSlots sets the number of slots.
func (b Builder) WithNumSlots(n int) Builder {
	b.numSlots = n
	return b
}

// WithSlotSize sets the slot size, which must equal the page size.
func (b Builder) WithSlotSize(size int) Builder {
	b.slotSize = size
	return b
}

// WithDevice sets the backing device. If not set, an in-memory device is
// created.
func (b Builder) WithDevice(d Device) Builder {
	b.device = d
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.numSlots < 0 {
		panic(fmt.Sprintf("invalid number of swap slots %d", b.numSlots))
	}

	if b.slotSize <= 0 {
		panic(fmt.Sprintf("invalid swap slot size %d", b.slotSize))
	}
}

// Build creates the swap space.
func (b Builder) Build() *Space {
	b.parametersMustBeValid()

	s := &Space{
		bitmap:   make([]uint64, (b.numSlots+63)/64),
		numSlots: b.numSlots,
		slotSize: b.slotSize,
		device:   b.device,
	}

	if s.device == nil {
		s.device = NewMemDevice(int64(b.numSlots) * int64(b.slotSize))
	}

	return s
}

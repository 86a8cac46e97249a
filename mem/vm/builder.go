package vm

import (
	"fmt"

	"github.com/sarchlab/demandpaging/mem/vm/fsys"
	"github.com/sarchlab/demandpaging/mem/vm/hw"
	"github.com/sarchlab/demandpaging/mem/vm/swap"
)

// A Builder can build Managers.
type Builder struct {
	log2PageSize uint64
	numFrames    int
	numSwapSlots int
	mem          hw.PhysicalMemory
	swap         *swap.Space
	fs           *fsys.FileSystem
	stackTop     uint64
	maxStackSize uint64
	stackSlack   uint64
	newDirectory func() hw.PageDirectory
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		log2PageSize: 12,
		numFrames:    64,
		numSwapSlots: 1024,
		stackTop:     0x47480000,
		maxStackSize: 1 << 20,
		stackSlack:   8,
	}
}

// WithLog2PageSize sets the page size.
func (b Builder) WithLog2PageSize(log2PageSize uint64) Builder {
	b.log2PageSize = log2PageSize
	return b
}

// WithNumFrames sets the number of physical pages of the default memory.
// It has no effect if a physical memory is given.
func (b Builder) WithNumFrames(n int) Builder {
	b.numFrames = n
	return b
}

// WithPhysicalMemory sets the pool of physical user pages.
func (b Builder) WithPhysicalMemory(mem hw.PhysicalMemory) Builder {
	b.mem = mem
	return b
}

// WithSwapSlots sets the number of slots of the default swap space. It has
// no effect if a swap space is given.
func (b Builder) WithSwapSlots(n int) Builder {
	b.numSwapSlots = n
	return b
}

// WithSwapSpace sets the swap space anonymous pages are evicted to.
func (b Builder) WithSwapSpace(s *swap.Space) Builder {
	b.swap = s
	return b
}

// WithFileSystem sets the file layer used by file-backed pages.
func (b Builder) WithFileSystem(fs *fsys.FileSystem) Builder {
	b.fs = fs
	return b
}

// WithStackTop sets the address right above the highest stack page.
func (b Builder) WithStackTop(addr uint64) Builder {
	b.stackTop = addr
	return b
}

// WithMaxStackSize sets how far the stack can grow below the stack top.
func (b Builder) WithMaxStackSize(size uint64) Builder {
	b.maxStackSize = size
	return b
}

// WithStackSlack sets how far below the stack pointer an access still counts
// as a stack access. A push instruction checks permissions before moving
// the stack pointer, so it faults 8 bytes below it.
func (b Builder) WithStackSlack(slack uint64) Builder {
	b.stackSlack = slack
	return b
}

// WithPageDirectoryFactory sets how the page directory of a new address
// space is created.
func (b Builder) WithPageDirectoryFactory(f func() hw.PageDirectory) Builder {
	b.newDirectory = f
	return b
}

func (b Builder) parametersMustBeValid() {
	pageSize := uint64(1) << b.log2PageSize

	if b.log2PageSize == 0 || b.log2PageSize > 30 {
		panic(fmt.Sprintf("invalid log2 page size %d", b.log2PageSize))
	}

	if b.mem != nil && b.mem.PageSize() != pageSize {
		panic("the physical memory and the manager use different page sizes")
	}

	if b.mem == nil && b.numFrames < 2 {
		panic(fmt.Sprintf("at least 2 frames are needed, got %d", b.numFrames))
	}

	if b.mem != nil && b.mem.NumPages() < 2 {
		panic("at least 2 physical pages are needed")
	}

	if b.swap != nil && uint64(b.swap.SlotSize()) != pageSize {
		panic("swap slot size must equal the page size")
	}

	if b.stackTop%pageSize != 0 {
		panic(fmt.Sprintf("stack top 0x%x is not page aligned", b.stackTop))
	}

	if b.maxStackSize < pageSize || b.maxStackSize >= b.stackTop {
		panic(fmt.Sprintf("invalid max stack size 0x%x", b.maxStackSize))
	}
}

// Build creates a Manager.
func (b Builder) Build() *Manager {
	b.parametersMustBeValid()

	m := &Manager{
		log2PageSize: b.log2PageSize,
		mem:          b.mem,
		swap:         b.swap,
		fs:           b.fs,
		newDirectory: b.newDirectory,
		stackTop:     b.stackTop,
		maxStackSize: b.maxStackSize,
		stackSlack:   b.stackSlack,
		spaces:       make(map[PID]*AddressSpace),
	}

	b.createDefaults(m)
	m.frames = newFrameTable(m.mem)

	return m
}

func (b Builder) createDefaults(m *Manager) {
	if m.mem == nil {
		m.mem = hw.NewMemory(b.numFrames, b.log2PageSize)
	}

	if m.swap == nil {
		m.swap = swap.MakeBuilder().
			WithNumSlots(b.numSwapSlots).
			WithSlotSize(1 << b.log2PageSize).
			Build()
	}

	if m.fs == nil {
		m.fs = fsys.New()
	}

	if m.newDirectory == nil {
		m.newDirectory = func() hw.PageDirectory {
			return hw.NewPageDirectory(b.log2PageSize)
		}
	}
}

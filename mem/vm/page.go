package vm

import (
	"fmt"
	"sync"

	"github.com/sarchlab/demandpaging/mem/vm/fsys"
	"github.com/sarchlab/demandpaging/mem/vm/swap"
)

// PageType is the variant of a page.
type PageType int

// A page starts as PageTypeUninit and turns into one of the other two the
// first time it is claimed.
const (
	PageTypeUninit PageType = iota
	PageTypeAnon
	PageTypeFile
)

func (t PageType) String() string {
	switch t {
	case PageTypeUninit:
		return "uninit"
	case PageTypeAnon:
		return "anon"
	case PageTypeFile:
		return "file"
	default:
		return fmt.Sprintf("PageType(%d)", int(t))
	}
}

// A Page records what one page-aligned virtual address of an address space
// should contain, whether or not a frame currently backs it.
type Page struct {
	lock sync.Mutex

	VAddr    uint64
	Writable bool
	Stack    bool

	space *AddressSpace
	typ   PageType
	frame *Frame

	uninit uninitPage
	anon   anonPage
	file   filePage
}

type uninitPage struct {
	init   Initializer
	target PageType
}

type anonPage struct {
	slot swap.Slot
}

type filePage struct {
	file      fsys.File
	offset    int64
	readBytes int
	region    *MappingRegion
	ownsFile  bool
}

func newPage(
	space *AddressSpace,
	vAddr uint64,
	writable bool,
	target PageType,
	init Initializer,
) *Page {
	if target == PageTypeUninit {
		panic("a page must become anon or file backed")
	}

	return &Page{
		VAddr:    vAddr,
		Writable: writable,
		space:    space,
		typ:      PageTypeUninit,
		uninit:   uninitPage{init: init, target: target},
	}
}

// Space returns the address space the page belongs to.
func (p *Page) Space() *AddressSpace {
	return p.space
}

// Type returns the variant the page has or will have once claimed.
func (p *Page) Type() PageType {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.eventualType()
}

func (p *Page) eventualType() PageType {
	if p.typ == PageTypeUninit {
		return p.uninit.target
	}

	return p.typ
}

// IsMaterialized tells if the page has left the uninit state.
func (p *Page) IsMaterialized() bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.typ != PageTypeUninit
}

// PAddr returns the physical address of the frame bound to the page.
func (p *Page) PAddr() (uint64, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.frame == nil {
		return 0, false
	}

	return p.frame.PAddr, true
}

// Region returns the mapping the page belongs to, or nil.
func (p *Page) Region() *MappingRegion {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.region()
}

func (p *Page) region() *MappingRegion {
	switch p.typ {
	case PageTypeUninit:
		return p.uninit.init.region
	case PageTypeFile:
		return p.file.region
	default:
		return nil
	}
}

// PageInfo is a snapshot of a page.
type PageInfo struct {
	PID      PID
	VAddr    uint64
	Writable bool
	Stack    bool
	Type     string
	Target   string
	Resident bool
	PAddr    uint64
	SwapSlot int
}

// Info takes a snapshot of the page.
func (p *Page) Info() PageInfo {
	p.lock.Lock()
	defer p.lock.Unlock()

	info := PageInfo{
		PID:      p.space.PID,
		VAddr:    p.VAddr,
		Writable: p.Writable,
		Stack:    p.Stack,
		Type:     p.typ.String(),
		Target:   p.eventualType().String(),
		SwapSlot: int(swap.NoSlot),
	}

	if p.frame != nil {
		info.Resident = true
		info.PAddr = p.frame.PAddr
	}

	if p.typ == PageTypeAnon {
		info.SwapSlot = int(p.anon.slot)
	}

	return info
}

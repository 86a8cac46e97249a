// Package vm provides a demand-paging virtual memory engine. Each address
// space keeps a supplemental page table that says what every page should
// contain; pages get a physical frame only when they are touched, and frames
// are taken back from other pages when physical memory runs out.
package vm

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/demandpaging/hooking"
	"github.com/sarchlab/demandpaging/mem/vm/fsys"
	"github.com/sarchlab/demandpaging/mem/vm/hw"
	"github.com/sarchlab/demandpaging/mem/vm/swap"
)

// Manager is the virtual memory subsystem. One Manager is shared by every
// address space that competes for the same physical memory.
type Manager struct {
	hooking.HookableBase

	log2PageSize uint64
	mem          hw.PhysicalMemory
	frames       *FrameTable
	swap         *swap.Space
	fs           *fsys.FileSystem
	newDirectory func() hw.PageDirectory

	stackTop     uint64
	maxStackSize uint64
	stackSlack   uint64

	nextPID    atomic.Uint32
	spacesLock sync.Mutex
	spaces     map[PID]*AddressSpace

	stats statCounters
}

// PageSize returns the number of bytes in a page.
func (m *Manager) PageSize() uint64 {
	return 1 << m.log2PageSize
}

// Log2PageSize returns the log2 of the page size.
func (m *Manager) Log2PageSize() uint64 {
	return m.log2PageSize
}

// Memory returns the physical page pool.
func (m *Manager) Memory() hw.PhysicalMemory {
	return m.mem
}

// Frames returns the frame table.
func (m *Manager) Frames() *FrameTable {
	return m.frames
}

// Swap returns the swap space.
func (m *Manager) Swap() *swap.Space {
	return m.swap
}

// FileSystem returns the file layer.
func (m *Manager) FileSystem() *fsys.FileSystem {
	return m.fs
}

// StackTop returns the address right above the highest stack page.
func (m *Manager) StackTop() uint64 {
	return m.stackTop
}

// MaxStackSize returns how far below the stack top the stack may grow.
func (m *Manager) MaxStackSize() uint64 {
	return m.maxStackSize
}

func (m *Manager) alignToPage(addr uint64) uint64 {
	return (addr >> m.log2PageSize) << m.log2PageSize
}

// NewAddressSpace creates an empty address space with a new PID.
func (m *Manager) NewAddressSpace() *AddressSpace {
	as := &AddressSpace{
		PID:     PID(m.nextPID.Add(1)),
		manager: m,
		dir:     m.newDirectory(),
		exited:  make(chan struct{}),
	}
	as.spt = newSupplementalPageTable(as, m.log2PageSize)

	m.spacesLock.Lock()
	m.spaces[as.PID] = as
	m.spacesLock.Unlock()

	return as
}

// DestroyAddressSpace destroys every page of the address space, writing back
// modified file-backed pages and releasing frames and swap slots.
func (m *Manager) DestroyAddressSpace(as *AddressSpace) {
	as.spt.Destroy()
	as.dir.Destroy()

	m.spacesLock.Lock()
	delete(m.spaces, as.PID)
	m.spacesLock.Unlock()
}

// CopyAddressSpace duplicates src into dst, which must be newly created. The
// copy is eager: materialized pages get their own frame and content.
func (m *Manager) CopyAddressSpace(dst, src *AddressSpace) error {
	return dst.spt.Copy(src.spt)
}

// Space returns the live address space with the given PID.
func (m *Manager) Space(pid PID) (*AddressSpace, bool) {
	m.spacesLock.Lock()
	defer m.spacesLock.Unlock()

	as, found := m.spaces[pid]

	return as, found
}

// Spaces returns the live address spaces ordered by PID.
func (m *Manager) Spaces() []*AddressSpace {
	m.spacesLock.Lock()
	spaces := make([]*AddressSpace, 0, len(m.spaces))
	for _, as := range m.spaces {
		spaces = append(spaces, as)
	}
	m.spacesLock.Unlock()

	sort.Slice(spaces, func(i, j int) bool {
		return spaces[i].PID < spaces[j].PID
	})

	return spaces
}

// DeclareLazyPage declares a page at vAddr whose content is produced by the
// initializer the first time the page is touched. It is how executable
// images are loaded. The address must be page aligned.
func (m *Manager) DeclareLazyPage(
	as *AddressSpace,
	typ PageType,
	vAddr uint64,
	writable bool,
	initializer Initializer,
) error {
	page := newPage(as, vAddr, writable, typ, initializer)

	if !as.spt.Insert(page) {
		return fmt.Errorf("declare page 0x%x: %w", vAddr, ErrPageExists)
	}

	return nil
}

// ClaimPage makes the page at vAddr resident right away.
func (m *Manager) ClaimPage(as *AddressSpace, vAddr uint64) error {
	page := as.spt.Find(vAddr)
	if page == nil {
		return fmt.Errorf("claim 0x%x: %w", vAddr, ErrNotMapped)
	}

	_, err := m.claim(page)

	return err
}

// SetupStack creates the first stack page right below the stack top and
// makes it resident.
func (m *Manager) SetupStack(as *AddressSpace) error {
	vAddr := m.stackTop - m.PageSize()

	page := newPage(as, vAddr, true, PageTypeAnon, ZeroPage())
	page.Stack = true

	if !as.spt.Insert(page) {
		return fmt.Errorf("set up stack: %w", ErrPageExists)
	}

	_, err := m.claim(page)

	return err
}

// claim makes the page resident and maps it.
func (m *Manager) claim(page *Page) (*Frame, error) {
	page.lock.Lock()
	frame, claimed, err := m.claimLocked(page)
	page.lock.Unlock()

	m.invokeClaimed(page, claimed)

	return frame, err
}

// claimLocked does the work of claim with the page lock held. If the page
// got a new frame, it returns the event to report once the lock is released.
func (m *Manager) claimLocked(page *Page) (*Frame, *Event, error) {
	if page.frame != nil {
		m.frames.reclaim(page.frame)
		return page.frame, nil, nil
	}

	frame := m.getFrame()

	err := m.swapIn(page, m.mem.Bytes(frame.PAddr))
	if err != nil {
		m.frames.release(frame)
		return nil, nil, fmt.Errorf("%w: page 0x%x of process %d: %w",
			ErrClaimFailed, page.VAddr, page.space.PID, err)
	}

	dir := page.space.dir
	if !dir.Install(page.VAddr, frame.PAddr, page.Writable) {
		m.frames.release(frame)
		return nil, nil, fmt.Errorf("%w: cannot map page 0x%x of process %d",
			ErrClaimFailed, page.VAddr, page.space.PID)
	}

	page.frame = frame
	m.frames.register(frame, page)
	m.stats.claims.Add(1)

	return frame, &Event{
		PID:   page.space.PID,
		VAddr: page.VAddr,
		PAddr: frame.PAddr,
		Type:  page.typ,
	}, nil
}

func (m *Manager) invokeClaimed(page *Page, e *Event) {
	if e != nil {
		m.invoke(HookPosPageClaimed, page, *e)
	}
}

// getFrame returns an unbound frame, evicting a page if the physical pool is
// exhausted. It never fails.
func (m *Manager) getFrame() *Frame {
	for {
		frame, victim := m.frames.obtain()
		if victim == nil {
			return frame
		}

		if m.evict(frame, victim) {
			return frame
		}
	}
}

// evict persists the victim page and unbinds it from the frame. It returns
// false if the page was claimed again before it could be evicted, in which
// case the frame stays with the page.
func (m *Manager) evict(frame *Frame, victim *Page) bool {
	victim.lock.Lock()

	evicting, bound := m.frames.evictionState(frame)
	if !evicting {
		victim.lock.Unlock()
		return false
	}

	evicted := bound && victim.frame == frame
	e := Event{
		PID:   victim.space.PID,
		VAddr: victim.VAddr,
		PAddr: frame.PAddr,
		Type:  victim.typ,
	}

	if evicted {
		err := m.swapOut(victim)
		if err != nil {
			victim.lock.Unlock()
			panic(fmt.Sprintf("cannot evict page 0x%x of process %d: %v",
				victim.VAddr, victim.space.PID, err))
		}

		victim.frame = nil
		m.frames.unbind(frame)
		m.stats.evictions.Add(1)
	}

	m.frames.finishEviction(frame)
	victim.lock.Unlock()

	if evicted {
		m.invoke(HookPosEvict, victim, e)
	}

	return true
}

// swapIn fills buf with the content of the page. An uninit page runs its
// initializer and turns into its target variant.
func (m *Manager) swapIn(page *Page, buf []byte) error {
	switch page.typ {
	case PageTypeUninit:
		return m.initialize(page, buf)
	case PageTypeAnon:
		return m.anonSwapIn(page, buf)
	case PageTypeFile:
		return m.fileSwapIn(page, buf)
	default:
		panic(fmt.Sprintf("unknown page type %d", page.typ))
	}
}

func (m *Manager) swapOut(page *Page) error {
	switch page.typ {
	case PageTypeAnon:
		return m.anonSwapOut(page)
	case PageTypeFile:
		return m.fileSwapOut(page)
	default:
		panic(fmt.Sprintf("cannot swap out a %s page", page.typ))
	}
}

func (m *Manager) initialize(page *Page, buf []byte) error {
	in := page.uninit.init

	err := in.load(m.fs, buf)
	if err != nil {
		return err
	}

	switch page.uninit.target {
	case PageTypeAnon:
		page.anon = anonPage{slot: swap.NoSlot}
		if in.region != nil {
			in.region.release(m.fs)
		}
		if in.ownsFile {
			m.closeFile(in.File)
		}
	case PageTypeFile:
		page.file = filePage{
			file:      in.File,
			offset:    in.Offset,
			readBytes: in.ReadBytes,
			region:    in.region,
			ownsFile:  in.ownsFile,
		}
	}

	page.typ = page.uninit.target
	page.uninit = uninitPage{}

	return nil
}

// destroyPage runs the cleanup of the page variant and releases its frame.
func (m *Manager) destroyPage(page *Page) {
	page.lock.Lock()

	var err error

	switch page.typ {
	case PageTypeUninit:
		page.uninit.init.release(m)
	case PageTypeAnon:
		m.anonDestroy(page)
	case PageTypeFile:
		err = m.fileDestroy(page)
	}

	e := Event{PID: page.space.PID, VAddr: page.VAddr, Type: page.typ}
	page.lock.Unlock()

	if err != nil {
		e.Err = err
		m.invoke(HookPosWriteBackFailed, page, e)
	}

	m.invoke(HookPosPageDestroyed, page, e)
}

func (m *Manager) copyPage(dst *AddressSpace, src *Page) error {
	in, target, err := m.duplicateContent(src)
	if err != nil {
		return fmt.Errorf("copy page 0x%x: %w", src.VAddr, err)
	}

	page := newPage(dst, src.VAddr, src.Writable, target, in)
	page.Stack = src.Stack

	if !dst.spt.Insert(page) {
		in.release(m)
		return fmt.Errorf("copy page 0x%x: %w", src.VAddr, ErrPageExists)
	}

	if !src.IsMaterialized() {
		return nil
	}

	buf := make([]byte, m.PageSize())

	dirty, err := m.readPage(src, buf)
	if err != nil {
		return err
	}

	return m.writePage(page, buf, dirty)
}

// readPage claims the page and copies its content into buf. It tells if the
// page was modified since it was loaded.
func (m *Manager) readPage(page *Page, buf []byte) (bool, error) {
	page.lock.Lock()

	frame, claimed, err := m.claimLocked(page)
	if err != nil {
		page.lock.Unlock()
		return false, err
	}

	copy(buf, m.mem.Bytes(frame.PAddr))
	dirty := page.space.dir.IsDirty(page.VAddr)

	page.lock.Unlock()

	m.invokeClaimed(page, claimed)

	return dirty, nil
}

// writePage claims the page and fills it with buf.
func (m *Manager) writePage(page *Page, buf []byte, dirty bool) error {
	page.lock.Lock()

	frame, claimed, err := m.claimLocked(page)
	if err != nil {
		page.lock.Unlock()
		return err
	}

	copy(m.mem.Bytes(frame.PAddr), buf)
	if dirty {
		page.space.dir.SetDirty(page.VAddr, true)
	}

	page.lock.Unlock()

	m.invokeClaimed(page, claimed)

	return nil
}

// duplicateContent returns an initializer that produces the source page in
// another address space. For materialized pages it only sets the variant up;
// the content is copied after the page is claimed.
func (m *Manager) duplicateContent(src *Page) (Initializer, PageType, error) {
	src.lock.Lock()
	defer src.lock.Unlock()

	switch src.typ {
	case PageTypeUninit:
		dup, err := src.uninit.init.duplicate(m)
		return dup, src.uninit.target, err
	case PageTypeAnon:
		return ZeroPage(), PageTypeAnon, nil
	}

	f := src.file
	in := LoadSegment(f.file, f.offset, f.readBytes)
	if f.region != nil {
		in = mapFile(f.region, f.offset, f.readBytes)
	}

	dup, err := in.duplicate(m)

	return dup, PageTypeFile, err
}

func (m *Manager) closeFile(f fsys.File) {
	err := m.fs.Close(f)
	if err != nil {
		panic(fmt.Sprintf("close %s: %v", f.Name(), err))
	}
}

package vm

import (
	"fmt"
	"sync"

	"github.com/rs/xid"
	"github.com/sarchlab/demandpaging/mem/vm/fsys"
)

// A MappingRegion is one active file mapping. Every page of the mapping holds
// a reference; the reopened file is closed when the last page goes away.
type MappingRegion struct {
	ID     string
	Start  uint64
	Length uint64

	file fsys.File

	lock sync.Mutex
	refs int
}

// File returns the file handle the mapping reads from and writes back to.
func (r *MappingRegion) File() fsys.File {
	return r.file
}

// Refs returns the number of live pages of the mapping.
func (r *MappingRegion) Refs() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.refs
}

func (r *MappingRegion) acquire() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.refs++
}

// release drops one reference. The close happens while the region is locked,
// so it cannot overlap with a write-back of another page of the mapping.
func (r *MappingRegion) release(fs *fsys.FileSystem) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.refs <= 0 {
		panic(fmt.Sprintf("mapping %s released more often than acquired", r.ID))
	}

	r.refs--
	if r.refs == 0 {
		err := fs.Close(r.file)
		if err != nil {
			panic(fmt.Sprintf("close mapping %s: %v", r.ID, err))
		}
	}
}

func (m *Manager) fileSwapIn(p *Page, buf []byte) error {
	return readPage(m.fs, p.file.file, buf, p.file.offset, p.file.readBytes)
}

// fileSwapOut unmaps the page and writes it back if it was modified.
func (m *Manager) fileSwapOut(p *Page) error {
	p.space.dir.Clear(p.VAddr)

	return m.fileWriteBack(p)
}

func (m *Manager) fileWriteBack(p *Page) error {
	dir := p.space.dir
	if !dir.IsDirty(p.VAddr) {
		return nil
	}

	buf := m.mem.Bytes(p.frame.PAddr)[:p.file.readBytes]

	n, err := m.fs.WriteAt(p.file.file, buf, p.file.offset)
	if err != nil {
		return fmt.Errorf("write back page 0x%x: %w", p.VAddr, err)
	}

	if n != len(buf) {
		return fmt.Errorf("write back page 0x%x: wrote %d of %d bytes: %w",
			p.VAddr, n, len(buf), ErrShortIO)
	}

	dir.SetDirty(p.VAddr, false)
	m.stats.writeBacks.Add(1)

	return nil
}

func (m *Manager) fileDestroy(p *Page) error {
	var err error

	if p.frame != nil {
		p.space.dir.Clear(p.VAddr)
		err = m.fileWriteBack(p)
		p.space.dir.SetDirty(p.VAddr, false)
		m.frames.release(p.frame)
		p.frame = nil
	}

	if p.file.region != nil {
		p.file.region.release(m.fs)
	}

	if p.file.ownsFile {
		m.closeFile(p.file.file)
	}

	return err
}

// CreateMapping maps length bytes of file, starting at offset, at addr. The
// pages are declared lazily and read from an independent handle of the file
// when first touched; the part of the last page past the end of the file is
// zero-filled. Overlapping an existing page makes the request fail.
func (m *Manager) CreateMapping(
	as *AddressSpace,
	addr, length uint64,
	writable bool,
	file fsys.File,
	offset int64,
) (uint64, error) {
	err := m.mappingMustBeValid(addr, length, file, offset)
	if err != nil {
		return 0, err
	}

	reopened, err := m.fs.Reopen(file)
	if err != nil {
		return 0, fmt.Errorf("%w: reopen %s: %w", ErrMappingFailed, file.Name(), err)
	}

	fileLen, err := m.fs.Length(reopened)
	if err != nil {
		m.closeFile(reopened)
		return 0, fmt.Errorf("%w: %w", ErrMappingFailed, err)
	}

	region := &MappingRegion{
		ID:     xid.New().String(),
		Start:  addr,
		Length: length,
		file:   reopened,
	}

	pageSize := m.PageSize()
	for declared := uint64(0); declared < length; declared += pageSize {
		pageOffset := offset + int64(declared)
		pageLen := min(length-declared, pageSize)

		readBytes := 0
		if pageOffset < fileLen {
			readBytes = int(min(uint64(fileLen-pageOffset), pageLen))
		}

		page := newPage(as, addr+declared, writable, PageTypeFile,
			mapFile(region, pageOffset, readBytes))

		region.acquire()

		if !as.spt.Insert(page) {
			// Closes the file if this was the first page.
			region.release(m.fs)

			if declared > 0 {
				m.Unmap(as, addr)
			}

			return 0, fmt.Errorf("%w: page 0x%x: %w",
				ErrMappingFailed, addr+declared, ErrPageExists)
		}
	}

	m.stats.maps.Add(1)
	m.invoke(HookPosMap, region, Event{PID: as.PID, VAddr: addr})

	return addr, nil
}

func (m *Manager) mappingMustBeValid(
	addr, length uint64,
	file fsys.File,
	offset int64,
) error {
	switch {
	case file == nil:
		return fmt.Errorf("%w: no file", ErrMappingFailed)
	case length == 0:
		return fmt.Errorf("%w: empty mapping", ErrMappingFailed)
	case addr == 0 || addr%m.PageSize() != 0:
		return fmt.Errorf("%w: bad address 0x%x", ErrMappingFailed, addr)
	case offset < 0 || uint64(offset)%m.PageSize() != 0:
		return fmt.Errorf("%w: bad offset %d", ErrMappingFailed, offset)
	case addr+length < addr || addr+length > m.stackTop-m.maxStackSize:
		return fmt.Errorf("%w: mapping overlaps the stack", ErrMappingFailed)
	}

	return nil
}

// Unmap destroys the mapping that starts exactly at addr, writing dirty pages
// back to the file. It returns false if no mapping starts there.
func (m *Manager) Unmap(as *AddressSpace, addr uint64) bool {
	first := as.spt.Find(addr)
	if first == nil {
		return false
	}

	region := first.Region()
	if region == nil || region.Start != addr {
		return false
	}

	for offset := uint64(0); offset < region.Length; offset += m.PageSize() {
		page := as.spt.Find(region.Start + offset)
		if page == nil || page.Region() != region {
			continue
		}

		as.spt.Remove(page)
	}

	m.stats.unmaps.Add(1)
	m.invoke(HookPosUnmap, region, Event{PID: as.PID, VAddr: addr})

	return true
}

// Package hw models the hardware the paging engine runs on: the per-process
// address translation structure and the pool of physical user pages.
package hw

import "sync"

// TranslateResult tells what the address translation hardware found when
// walking a page directory.
type TranslateResult int

// The possible outcomes of a translation.
const (
	TranslateOK TranslateResult = iota
	TranslateNotPresent
	TranslateProtection
)

func (r TranslateResult) String() string {
	switch r {
	case TranslateOK:
		return "ok"
	case TranslateNotPresent:
		return "not-present"
	case TranslateProtection:
		return "protection"
	default:
		return "unknown"
	}
}

// An Entry is one leaf entry of a page directory.
type Entry struct {
	PAddr    uint64
	Present  bool
	Writable bool
	Accessed bool
	Dirty    bool
}

// A PageDirectory maps the virtual pages of one process to physical pages.
// Addresses passed in are rounded down to the page boundary.
type PageDirectory interface {
	// Install maps vAddr to pAddr. The accessed and dirty bits are reset.
	Install(vAddr, pAddr uint64, writable bool) bool

	// Clear marks the entry not present. The dirty bit survives until it is
	// explicitly reset or the page is installed again.
	Clear(vAddr uint64)

	// Lookup returns the entry of the page, if any.
	Lookup(vAddr uint64) (Entry, bool)

	IsDirty(vAddr uint64) bool
	SetDirty(vAddr uint64, dirty bool)
	IsAccessed(vAddr uint64) bool
	SetAccessed(vAddr uint64, accessed bool)

	// Translate performs one memory access the way the MMU would: it checks
	// presence and permission, sets the accessed (and, for writes, dirty)
	// bits, and calls access with the physical address while the directory
	// is locked, so that a concurrent Clear cannot interleave with it.
	Translate(
		vAddr uint64,
		write bool,
		access func(pAddr uint64),
	) TranslateResult

	// NumPresent returns the number of present entries.
	NumPresent() int

	// Destroy drops every entry.
	Destroy()
}

// NewPageDirectory creates an empty software page directory.
func NewPageDirectory(log2PageSize uint64) PageDirectory {
	return &pageDirectory{
		log2PageSize: log2PageSize,
		entries:      make(map[uint64]*Entry),
	}
}

type pageDirectory struct {
	sync.Mutex
	log2PageSize uint64
	entries      map[uint64]*Entry
}

func (d *pageDirectory) alignToPage(addr uint64) uint64 {
	return (addr >> d.log2PageSize) << d.log2PageSize
}

func (d *pageDirectory) offsetInPage(addr uint64) uint64 {
	return addr & ((1 << d.log2PageSize) - 1)
}

func (d *pageDirectory) Install(vAddr, pAddr uint64, writable bool) bool {
	d.Lock()
	defer d.Unlock()

	d.entries[d.alignToPage(vAddr)] = &Entry{
		PAddr:    d.alignToPage(pAddr),
		Present:  true,
		Writable: writable,
	}

	return true
}

func (d *pageDirectory) Clear(vAddr uint64) {
	d.Lock()
	defer d.Unlock()

	e, found := d.entries[d.alignToPage(vAddr)]
	if !found {
		return
	}

	e.Present = false
	e.Accessed = false

	if !e.Dirty {
		delete(d.entries, d.alignToPage(vAddr))
	}
}

func (d *pageDirectory) Lookup(vAddr uint64) (Entry, bool) {
	d.Lock()
	defer d.Unlock()

	e, found := d.entries[d.alignToPage(vAddr)]
	if !found || !e.Present {
		return Entry{}, false
	}

	return *e, true
}

func (d *pageDirectory) IsDirty(vAddr uint64) bool {
	d.Lock()
	defer d.Unlock()

	e, found := d.entries[d.alignToPage(vAddr)]

	return found && e.Dirty
}

func (d *pageDirectory) SetDirty(vAddr uint64, dirty bool) {
	d.Lock()
	defer d.Unlock()

	key := d.alignToPage(vAddr)

	e, found := d.entries[key]
	if !found {
		return
	}

	e.Dirty = dirty

	if !e.Present && !e.Dirty {
		delete(d.entries, key)
	}
}

func (d *pageDirectory) IsAccessed(vAddr uint64) bool {
	d.Lock()
	defer d.Unlock()

	e, found := d.entries[d.alignToPage(vAddr)]

	return found && e.Accessed
}

func (d *pageDirectory) SetAccessed(vAddr uint64, accessed bool) {
	d.Lock()
	defer d.Unlock()

	e, found := d.entries[d.alignToPage(vAddr)]
	if !found || !e.Present {
		return
	}

	e.Accessed = accessed
}

func (d *pageDirectory) Translate(
	vAddr uint64,
	write bool,
	access func(pAddr uint64),
) TranslateResult {
	d.Lock()
	defer d.Unlock()

	e, found := d.entries[d.alignToPage(vAddr)]
	if !found || !e.Present {
		return TranslateNotPresent
	}

	if write && !e.Writable {
		return TranslateProtection
	}

	e.Accessed = true
	if write {
		e.Dirty = true
	}

	if access != nil {
		access(e.PAddr + d.offsetInPage(vAddr))
	}

	return TranslateOK
}

func (d *pageDirectory) NumPresent() int {
	d.Lock()
	defer d.Unlock()

	n := 0
	for _, e := range d.entries {
		if e.Present {
			n++
		}
	}

	return n
}

func (d *pageDirectory) Destroy() {
	d.Lock()
	defer d.Unlock()

	d.entries = make(map[uint64]*Entry)
}

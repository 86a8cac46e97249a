package vm

import (
	"container/list"
	"fmt"
	"sync"
)

// PID stands for Process ID.
type PID uint32

// A SupplementalPageTable holds the pages of one address space, keyed by
// their page-aligned virtual address. It knows what every address should
// contain regardless of whether a frame backs it.
type SupplementalPageTable struct {
	sync.Mutex
	log2PageSize uint64
	space        *AddressSpace
	entries      *list.List
	entriesTable map[uint64]*list.Element
}

func newSupplementalPageTable(
	space *AddressSpace,
	log2PageSize uint64,
) *SupplementalPageTable {
	return &SupplementalPageTable{
		log2PageSize: log2PageSize,
		space:        space,
		entries:      list.New(),
		entriesTable: make(map[uint64]*list.Element),
	}
}

func (t *SupplementalPageTable) alignToPage(addr uint64) uint64 {
	return (addr >> t.log2PageSize) << t.log2PageSize
}

// Find returns the page that contains the given virtual address, or nil.
func (t *SupplementalPageTable) Find(vAddr uint64) *Page {
	t.Lock()
	defer t.Unlock()

	elem, found := t.entriesTable[t.alignToPage(vAddr)]
	if !found {
		return nil
	}

	return elem.Value.(*Page)
}

// Insert adds a page. It returns false if a page already exists at the same
// address. The page address must be page aligned.
func (t *SupplementalPageTable) Insert(page *Page) bool {
	t.Lock()
	defer t.Unlock()

	if t.alignToPage(page.VAddr) != page.VAddr {
		panic(fmt.Sprintf("page address 0x%x is not page aligned", page.VAddr))
	}

	if _, found := t.entriesTable[page.VAddr]; found {
		return false
	}

	elem := t.entries.PushBack(page)
	t.entriesTable[page.VAddr] = elem

	return true
}

// Remove unlinks the page and destroys it. The page must be in the table.
func (t *SupplementalPageTable) Remove(page *Page) {
	t.unlink(page)
	t.space.manager.destroyPage(page)
}

func (t *SupplementalPageTable) unlink(page *Page) {
	t.Lock()
	defer t.Unlock()

	t.pageMustExist(page)

	elem := t.entriesTable[page.VAddr]
	t.entries.Remove(elem)
	delete(t.entriesTable, page.VAddr)
}

// Len returns the number of pages.
func (t *SupplementalPageTable) Len() int {
	t.Lock()
	defer t.Unlock()

	return t.entries.Len()
}

// Pages returns the pages in the order they were inserted.
func (t *SupplementalPageTable) Pages() []*Page {
	t.Lock()
	defer t.Unlock()

	pages := make([]*Page, 0, t.entries.Len())
	for e := t.entries.Front(); e != nil; e = e.Next() {
		pages = append(pages, e.Value.(*Page))
	}

	return pages
}

// Copy duplicates every page of src into this table, which must be empty.
// Pages that were never claimed stay lazy; materialized pages are claimed in
// this table and their content is copied over. On error, pages copied so far
// stay in the table and are released when the address space is destroyed.
// The source must not fault while it is being copied.
func (t *SupplementalPageTable) Copy(src *SupplementalPageTable) error {
	m := t.space.manager

	for _, page := range src.Pages() {
		err := m.copyPage(t.space, page)
		if err != nil {
			return err
		}
	}

	return nil
}

// Destroy destroys every page, writing back what needs to be written back.
func (t *SupplementalPageTable) Destroy() {
	for {
		page := t.popFront()
		if page == nil {
			return
		}

		t.space.manager.destroyPage(page)
	}
}

func (t *SupplementalPageTable) popFront() *Page {
	t.Lock()
	defer t.Unlock()

	elem := t.entries.Front()
	if elem == nil {
		return nil
	}

	page := elem.Value.(*Page)
	t.entries.Remove(elem)
	delete(t.entriesTable, page.VAddr)

	return page
}

func (t *SupplementalPageTable) pageMustExist(page *Page) {
	elem, found := t.entriesTable[page.VAddr]
	if !found || elem.Value.(*Page) != page {
		panic("page does not exist")
	}
}

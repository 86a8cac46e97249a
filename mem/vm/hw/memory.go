package hw

import (
	"fmt"
	"sync"
)

// PhysicalMemory is the pool of physical pages that user processes can use.
type PhysicalMemory interface {
	// AllocateUserPage takes one free page out of the pool. It returns false
	// if the pool is exhausted.
	AllocateUserPage() (pAddr uint64, ok bool)

	// FreeUserPage returns a page to the pool.
	FreeUserPage(pAddr uint64)

	// Bytes returns the content of the page that contains pAddr.
	Bytes(pAddr uint64) []byte

	PageSize() uint64
	NumPages() int
	NumFree() int
}

// NewMemory creates a PhysicalMemory of numPages pages held in a Go slice.
func NewMemory(numPages int, log2PageSize uint64) PhysicalMemory {
	pageSize := uint64(1) << log2PageSize

	return newMemory(make([]byte, uint64(numPages)*pageSize), log2PageSize)
}

type memory struct {
	sync.Mutex
	log2PageSize uint64
	data         []byte
	free         []uint64
	allocated    []bool
}

func newMemory(data []byte, log2PageSize uint64) *memory {
	m := &memory{
		log2PageSize: log2PageSize,
		data:         data,
	}

	numPages := len(data) >> log2PageSize
	m.allocated = make([]bool, numPages)
	m.free = make([]uint64, 0, numPages)

	for i := numPages - 1; i >= 0; i-- {
		m.free = append(m.free, uint64(i)<<log2PageSize)
	}

	return m
}

func (m *memory) AllocateUserPage() (uint64, bool) {
	m.Lock()
	defer m.Unlock()

	if len(m.free) == 0 {
		return 0, false
	}

	pAddr := m.free[len(m.free)-1]
	m.free = m.free[:len(m.free)-1]
	m.allocated[pAddr>>m.log2PageSize] = true

	return pAddr, true
}

func (m *memory) FreeUserPage(pAddr uint64) {
	m.Lock()
	defer m.Unlock()

	index := m.pageIndexMustBeValid(pAddr)
	if !m.allocated[index] {
		panic(fmt.Sprintf("physical page 0x%x is not allocated", pAddr))
	}

	m.allocated[index] = false
	m.free = append(m.free, index<<m.log2PageSize)
}

func (m *memory) Bytes(pAddr uint64) []byte {
	index := m.pageIndexMustBeValid(pAddr)
	start := index << m.log2PageSize
	end := start + m.PageSize()

	return m.data[start:end:end]
}

func (m *memory) PageSize() uint64 {
	return 1 << m.log2PageSize
}

func (m *memory) NumPages() int {
	return len(m.allocated)
}

func (m *memory) NumFree() int {
	m.Lock()
	defer m.Unlock()

	return len(m.free)
}

func (m *memory) pageIndexMustBeValid(pAddr uint64) uint64 {
	index := pAddr >> m.log2PageSize
	if index >= uint64(len(m.allocated)) {
		panic(fmt.Sprintf("physical address 0x%x out of range", pAddr))
	}

	return index
}

//go:build unix

package hw

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MmapMemory is a PhysicalMemory whose pages live in an anonymous memory
// mapping outside of the Go heap.
type MmapMemory struct {
	*memory
}

// NewMmapMemory maps numPages pages of anonymous memory and uses them as the
// physical page pool. Close must be called to release the mapping.
func NewMmapMemory(numPages int, log2PageSize uint64) (*MmapMemory, error) {
	size := numPages << log2PageSize

	data, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}

	return &MmapMemory{memory: newMemory(data, log2PageSize)}, nil
}

// Close unmaps the memory. The pool must not be used afterwards.
func (m *MmapMemory) Close() error {
	m.Lock()
	defer m.Unlock()

	if m.data == nil {
		return nil
	}

	err := unix.Munmap(m.data)
	m.data = nil

	return err
}

// Package swap provides the fixed-size swap space that anonymous pages are
// written to when they are evicted.
package swap

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
)

// Slot identifies one page-sized unit of the swap space.
type Slot int

// NoSlot marks the absence of a slot.
const NoSlot Slot = -1

// ErrShortIO is returned when the device transfers fewer bytes than a slot.
var ErrShortIO = errors.New("swap: short transfer")

// Space is a swap space with a fixed number of slots.
type Space struct {
	lock     sync.Mutex
	bitmap   []uint64
	numSlots int
	used     int

	slotSize int
	device   Device
}

// Capacity returns the number of slots.
func (s *Space) Capacity() int {
	return s.numSlots
}

// SlotSize returns the number of bytes in a slot.
func (s *Space) SlotSize() int {
	return s.slotSize
}

// Used returns the number of allocated slots.
func (s *Space) Used() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.used
}

// Allocate reserves a free slot. It returns false if the space is full.
func (s *Space) Allocate() (Slot, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for i, word := range s.bitmap {
		if word == ^uint64(0) {
			continue
		}

		bit := bits.TrailingZeros64(^word)
		slot := i*64 + bit

		if slot >= s.numSlots {
			break
		}

		s.bitmap[i] |= 1 << bit
		s.used++

		return Slot(slot), true
	}

	return NoSlot, false
}

// Free releases a slot. Freeing a slot that is not allocated panics.
func (s *Space) Free(slot Slot) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.slotMustBeInRange(slot)

	word, mask := int(slot)/64, uint64(1)<<(int(slot)%64)
	if s.bitmap[word]&mask == 0 {
		panic(fmt.Sprintf("swap slot %d is not allocated", slot))
	}

	s.bitmap[word] &^= mask
	s.used--
}

// Write stores buf, which must be exactly one slot long, into the slot.
func (s *Space) Write(slot Slot, buf []byte) error {
	s.slotMustBeInRange(slot)
	s.bufferMustFitSlot(buf)

	n, err := s.device.WriteAt(buf, s.offset(slot))
	if err != nil {
		return fmt.Errorf("write swap slot %d: %w", slot, err)
	}

	if n != s.slotSize {
		return fmt.Errorf("write swap slot %d: %w", slot, ErrShortIO)
	}

	return nil
}

// Read loads the content of the slot into buf.
func (s *Space) Read(slot Slot, buf []byte) error {
	s.slotMustBeInRange(slot)
	s.bufferMustFitSlot(buf)

	n, err := s.device.ReadAt(buf, s.offset(slot))
	if n != s.slotSize {
		if err == nil {
			err = ErrShortIO
		}

		return fmt.Errorf("read swap slot %d: %w", slot, err)
	}

	return nil
}

// Close releases the device.
func (s *Space) Close() error {
	return s.device.Close()
}

func (s *Space) offset(slot Slot) int64 {
	return int64(slot) * int64(s.slotSize)
}

func (s *Space) slotMustBeInRange(slot Slot) {
	if slot < 0 || int(slot) >= s.numSlots {
		panic(fmt.Sprintf("swap slot %d out of range", slot))
	}
}

func (s *Space) bufferMustFitSlot(buf []byte) {
	if len(buf) != s.slotSize {
		panic(fmt.Sprintf("buffer of %d bytes does not fit a %d-byte slot",
			len(buf), s.slotSize))
	}
}

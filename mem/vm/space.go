package vm

import (
	"sync"
	"sync/atomic"

	"github.com/sarchlab/demandpaging/mem/vm/hw"
)

// ExitStatusFaulted is the exit status of a process killed by a fault.
const ExitStatusFaulted = -1

// An AddressSpace is the virtual memory of one process: its supplemental
// page table and its hardware page directory.
type AddressSpace struct {
	PID PID

	manager *Manager
	spt     *SupplementalPageTable
	dir     hw.PageDirectory

	exitOnce sync.Once
	exited   chan struct{}
	status   int
	killed   atomic.Bool
}

// PageTable returns the supplemental page table.
func (as *AddressSpace) PageTable() *SupplementalPageTable {
	return as.spt
}

// Directory returns the hardware page directory.
func (as *AddressSpace) Directory() hw.PageDirectory {
	return as.dir
}

// Exit records the exit status of the process and wakes up its waiters.
// Only the first call has an effect.
func (as *AddressSpace) Exit(status int) {
	as.exitOnce.Do(func() {
		as.status = status
		close(as.exited)
	})
}

// Kill terminates the process with ExitStatusFaulted. It returns false if the
// process had already been killed.
func (as *AddressSpace) Kill() bool {
	if !as.killed.CompareAndSwap(false, true) {
		return false
	}

	as.Exit(ExitStatusFaulted)

	return true
}

// Killed tells if the process was terminated by a fault.
func (as *AddressSpace) Killed() bool {
	return as.killed.Load()
}

// Exited tells if the process has exited.
func (as *AddressSpace) Exited() bool {
	select {
	case <-as.exited:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits and returns its exit status.
func (as *AddressSpace) Wait() int {
	<-as.exited
	return as.status
}

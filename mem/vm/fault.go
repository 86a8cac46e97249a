package vm

import "fmt"

// A Fault is what the trap layer reports when a memory access cannot be
// translated.
type Fault struct {
	Addr uint64

	// User tells if the access was made in user mode. The resolver ignores
	// it: a fault taken in kernel mode on a user address is resolved the same
	// way, provided StackPointer holds the user stack pointer saved on kernel
	// entry.
	User bool

	Write bool

	// NotPresent is set when the page was not mapped. A fault on a mapped
	// page is a protection violation.
	NotPresent bool

	// StackPointer is the user stack pointer at the time of the fault.
	StackPointer uint64
}

// ResolveFault makes the faulting page resident, growing the stack if the
// fault is a push below the lowest stack page. A returned error means the
// fault is fatal to the process.
func (m *Manager) ResolveFault(as *AddressSpace, f Fault) error {
	m.stats.faults.Add(1)
	m.invoke(HookPosPageFault, as, Event{PID: as.PID, VAddr: f.Addr})

	err := m.faultMustBeResolvable(f)
	if err != nil {
		return err
	}

	page := as.spt.Find(f.Addr)
	if page == nil {
		page, err = m.growStack(as, f)
		if err != nil {
			return err
		}
	}

	if f.Write && !page.Writable {
		return fmt.Errorf("fault at 0x%x: %w", f.Addr, ErrWriteToReadOnly)
	}

	_, err = m.claim(page)

	return err
}

func (m *Manager) faultMustBeResolvable(f Fault) error {
	if !f.NotPresent {
		if f.Write {
			return fmt.Errorf("fault at 0x%x: %w", f.Addr, ErrWriteToReadOnly)
		}

		return fmt.Errorf("protection fault at 0x%x: %w",
			f.Addr, ErrInvalidAccess)
	}

	if f.Addr < m.PageSize() || f.Addr >= m.stackTop {
		return fmt.Errorf("fault at 0x%x: %w", f.Addr, ErrInvalidAccess)
	}

	return nil
}

// growStack adds a zero-filled stack page at the faulting address if the
// address is a legal stack access, and looks the page up again.
func (m *Manager) growStack(as *AddressSpace, f Fault) (*Page, error) {
	if f.StackPointer < m.stackSlack ||
		f.Addr < f.StackPointer-m.stackSlack {
		return nil, fmt.Errorf("fault at 0x%x: %w", f.Addr, ErrNotMapped)
	}

	if f.Addr < m.stackTop-m.maxStackSize {
		return nil, fmt.Errorf("fault at 0x%x: %w", f.Addr, ErrStackOverflow)
	}

	vAddr := m.alignToPage(f.Addr)
	page := newPage(as, vAddr, true, PageTypeAnon, ZeroPage())
	page.Stack = true

	// Another thread of the process may have grown the stack first.
	if as.spt.Insert(page) {
		m.stats.stackGrowths.Add(1)
		m.invoke(HookPosStackGrowth, page, Event{
			PID:   as.PID,
			VAddr: vAddr,
			Type:  PageTypeAnon,
		})
	}

	page = as.spt.Find(f.Addr)
	if page == nil {
		return nil, fmt.Errorf("fault at 0x%x: %w", f.Addr, ErrNotMapped)
	}

	return page, nil
}

// HandleFault is the trap entry. It resolves the fault and, if that fails,
// terminates the process with ExitStatusFaulted. It returns whether the
// faulting access can be retried.
func (m *Manager) HandleFault(as *AddressSpace, f Fault) bool {
	err := m.ResolveFault(as, f)
	if err == nil {
		return true
	}

	m.stats.failedFaults.Add(1)
	m.invoke(HookPosFaultFailed, as, Event{
		PID:   as.PID,
		VAddr: f.Addr,
		Err:   err,
	})

	if as.Kill() {
		m.stats.kills.Add(1)
		m.invoke(HookPosProcessKilled, as, Event{
			PID:   as.PID,
			VAddr: f.Addr,
			Err:   err,
		})
	}

	return false
}

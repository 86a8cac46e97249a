package simulation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sarchlab/demandpaging/mem/vm"
	"github.com/sarchlab/demandpaging/mem/vm/fsys"
	"github.com/sarchlab/demandpaging/mem/vm/hw"
)

var (
	// ErrProcessKilled is returned by every access of a process that was
	// terminated by a fault.
	ErrProcessKilled = errors.New("process killed")

	// ErrProcessExited is returned by every access of a process that exited.
	ErrProcessExited = errors.New("process exited")
)

// A Process is a user program running in its own address space. Its
// accesses go through the page directory like those of a CPU, and the page
// faults they raise are handled by the Manager. A Process must be driven by
// one goroutine at a time.
type Process struct {
	sim     *Simulation
	manager *vm.Manager
	as      *vm.AddressSpace
	sp      uint64

	teardown sync.Once
}

func newProcess(s *Simulation, as *vm.AddressSpace) *Process {
	return &Process{
		sim:     s,
		manager: s.manager,
		as:      as,
		sp:      s.manager.StackTop(),
	}
}

// PID returns the process ID.
func (p *Process) PID() vm.PID {
	return p.as.PID
}

// AddressSpace returns the address space of the process.
func (p *Process) AddressSpace() *vm.AddressSpace {
	return p.as
}

// StackPointer returns the user stack pointer.
func (p *Process) StackPointer() uint64 {
	return p.sp
}

// SetStackPointer moves the user stack pointer.
func (p *Process) SetStackPointer(sp uint64) {
	p.sp = sp
}

// Load reads one byte.
func (p *Process) Load(vAddr uint64) (byte, error) {
	var b byte

	err := p.access(vAddr, false, func(mem []byte) {
		b = mem[0]
	})

	return b, err
}

// Store writes one byte.
func (p *Process) Store(vAddr uint64, b byte) error {
	return p.access(vAddr, true, func(mem []byte) {
		mem[0] = b
	})
}

// ReadBytes reads n bytes starting at vAddr.
func (p *Process) ReadBytes(vAddr uint64, n int) ([]byte, error) {
	buf := make([]byte, 0, n)

	for len(buf) < n {
		addr := vAddr + uint64(len(buf))
		chunk := min(n-len(buf), p.bytesLeftInPage(addr))

		err := p.access(addr, false, func(mem []byte) {
			buf = append(buf, mem[:chunk]...)
		})
		if err != nil {
			return nil, err
		}
	}

	return buf, nil
}

// WriteBytes writes data starting at vAddr.
func (p *Process) WriteBytes(vAddr uint64, data []byte) error {
	for written := 0; written < len(data); {
		addr := vAddr + uint64(written)
		chunk := min(len(data)-written, p.bytesLeftInPage(addr))

		err := p.access(addr, true, func(mem []byte) {
			copy(mem, data[written:written+chunk])
		})
		if err != nil {
			return err
		}

		written += chunk
	}

	return nil
}

// Push moves the stack pointer down and writes data at the new top of the
// stack. The write may fault below the lowest stack page, which grows the
// stack.
func (p *Process) Push(data []byte) error {
	p.sp -= uint64(len(data))

	return p.WriteBytes(p.sp, data)
}

func (p *Process) bytesLeftInPage(vAddr uint64) int {
	pageSize := p.manager.PageSize()

	return int(pageSize - vAddr&(pageSize-1))
}

// access performs one access to the page that holds vAddr. fn receives the
// memory from vAddr to the end of the page and runs while the mapping cannot
// change.
func (p *Process) access(vAddr uint64, write bool, fn func(mem []byte)) error {
	for {
		err := p.mustBeRunning()
		if err != nil {
			return err
		}

		res := p.as.Directory().Translate(vAddr, write, func(pAddr uint64) {
			page := p.manager.Memory().Bytes(pAddr)
			fn(page[pAddr&(p.manager.PageSize()-1):])
		})
		if res == hw.TranslateOK {
			return nil
		}

		resolved := p.manager.HandleFault(p.as, vm.Fault{
			Addr:         vAddr,
			User:         true,
			Write:        write,
			NotPresent:   res == hw.TranslateNotPresent,
			StackPointer: p.sp,
		})
		if !resolved {
			p.destroy()
			return fmt.Errorf("access 0x%x: %w", vAddr, ErrProcessKilled)
		}
	}
}

func (p *Process) mustBeRunning() error {
	switch {
	case p.as.Killed():
		return ErrProcessKilled
	case p.as.Exited():
		return ErrProcessExited
	default:
		return nil
	}
}

// LoadSegment declares the pages of a program segment the way an executable
// loader does: readBytes bytes come from file at offset, followed by
// zeroBytes zero bytes. Nothing is read until the pages are touched.
func (p *Process) LoadSegment(
	vAddr uint64,
	file fsys.File,
	offset int64,
	readBytes, zeroBytes int,
	writable bool,
) error {
	pageSize := int(p.manager.PageSize())
	if (readBytes+zeroBytes)%pageSize != 0 || vAddr%uint64(pageSize) != 0 {
		return fmt.Errorf("segment at 0x%x is not page aligned", vAddr)
	}

	for readBytes > 0 || zeroBytes > 0 {
		pageRead := min(readBytes, pageSize)

		in := vm.ZeroPage()
		if pageRead > 0 {
			in = vm.LoadSegment(file, offset, pageRead)
		}

		err := p.manager.DeclareLazyPage(p.as, vm.PageTypeAnon, vAddr,
			writable, in)
		if err != nil {
			return err
		}

		readBytes -= pageRead
		zeroBytes -= pageSize - pageRead
		offset += int64(pageRead)
		vAddr += uint64(pageSize)
	}

	return nil
}

// Mmap maps length bytes of file at addr.
func (p *Process) Mmap(
	addr, length uint64,
	writable bool,
	file fsys.File,
	offset int64,
) (uint64, error) {
	err := p.mustBeRunning()
	if err != nil {
		return 0, err
	}

	return p.manager.CreateMapping(p.as, addr, length, writable, file, offset)
}

// Munmap removes the mapping that starts at addr.
func (p *Process) Munmap(addr uint64) bool {
	return p.manager.Unmap(p.as, addr)
}

// Fork creates a child process with a copy of the address space. The parent
// must not run while it is being copied.
func (p *Process) Fork() (*Process, error) {
	err := p.mustBeRunning()
	if err != nil {
		return nil, err
	}

	child := newProcess(p.sim, p.manager.NewAddressSpace())
	child.sp = p.sp

	err = p.manager.CopyAddressSpace(child.as, p.as)
	if err != nil {
		child.as.Exit(vm.ExitStatusFaulted)
		child.destroy()

		return nil, fmt.Errorf("fork process %d: %w", p.PID(), err)
	}

	return child, nil
}

// Exit terminates the process and releases its memory.
func (p *Process) Exit(status int) {
	p.destroy()
	p.as.Exit(status)
}

// Wait blocks until the process exits and returns its exit status.
func (p *Process) Wait() int {
	return p.as.Wait()
}

func (p *Process) destroy() {
	p.teardown.Do(func() {
		p.manager.DestroyAddressSpace(p.as)
	})
}

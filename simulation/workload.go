package simulation

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/sarchlab/demandpaging/mem/vm/fsys"
	"github.com/sarchlab/demandpaging/monitoring"
)

// WorkloadKind names an access pattern the processes of a workload follow.
type WorkloadKind string

// The built-in access patterns.
const (
	WorkloadSequential WorkloadKind = "sequential"
	WorkloadRandom     WorkloadKind = "random"
	WorkloadStack      WorkloadKind = "stack"
	WorkloadMmap       WorkloadKind = "mmap"
)

// WorkloadKinds lists the built-in access patterns.
var WorkloadKinds = []WorkloadKind{
	WorkloadSequential,
	WorkloadRandom,
	WorkloadStack,
	WorkloadMmap,
}

// ParseWorkloadKind converts a name to a WorkloadKind.
func ParseWorkloadKind(name string) (WorkloadKind, error) {
	for _, k := range WorkloadKinds {
		if string(k) == name {
			return k, nil
		}
	}

	return "", fmt.Errorf("unknown workload %q", name)
}

// HeapBase is where workloads place their data pages.
const HeapBase = uint64(0x10000000)

// ErrCorrupted is returned when a workload reads back something other than
// what it wrote.
var ErrCorrupted = errors.New("memory content corrupted")

// A Workload runs a number of processes concurrently, each touching Pages
// pages of its own memory Rounds times and checking that every page still
// holds what it wrote.
type Workload struct {
	Kind      WorkloadKind
	Processes int
	Pages     int
	Rounds    int
	Seed      int64
}

// Run runs the workload and waits for all its processes to exit.
func (s *Simulation) Run(w Workload) error {
	if w.Processes <= 0 || w.Pages <= 0 {
		return fmt.Errorf("workload needs processes and pages, got %d and %d",
			w.Processes, w.Pages)
	}

	rounds := max(w.Rounds, 1)

	var bar *monitoring.ProgressBar
	if s.monitor != nil {
		bar = s.monitor.CreateProgressBar(string(w.Kind),
			uint64(w.Processes*rounds))
		defer s.monitor.CompleteProgressBar(bar)
	}

	errs := make([]error, w.Processes)

	var wg sync.WaitGroup
	for i := range w.Processes {
		wg.Add(1)

		go func() {
			defer wg.Done()

			errs[i] = s.runProcess(w, rounds, w.Seed+int64(i), bar)
		}()
	}

	wg.Wait()

	return errors.Join(errs...)
}

func (s *Simulation) runProcess(
	w Workload,
	rounds int,
	seed int64,
	bar *monitoring.ProgressBar,
) error {
	p, err := s.Spawn()
	if err != nil {
		return err
	}

	r := &runner{
		p:        p,
		rand:     rand.New(rand.NewSource(seed)),
		pages:    w.Pages,
		pageSize: s.manager.PageSize(),
	}

	err = r.prepare(w.Kind)
	for round := 0; err == nil && round < rounds; round++ {
		if bar != nil {
			bar.IncrementInProgress(1)
		}

		err = r.round(w.Kind, round)

		if bar != nil {
			bar.MoveInProgressToFinished(1)
		}
	}

	if err == nil {
		err = r.finish(w.Kind)
	}

	if err != nil {
		p.Exit(1)
		return fmt.Errorf("process %d: %w", p.PID(), err)
	}

	p.Exit(0)

	return nil
}

type runner struct {
	p        *Process
	rand     *rand.Rand
	pages    int
	pageSize uint64

	expected map[uint64]byte
	file     fsys.File
	mapAddr  uint64
}

func (r *runner) prepare(kind WorkloadKind) error {
	r.expected = make(map[uint64]byte)
	size := r.pages * int(r.pageSize)

	switch kind {
	case WorkloadSequential, WorkloadRandom:
		return r.p.LoadSegment(HeapBase, nil, 0, 0, size, true)
	case WorkloadStack:
		return nil
	case WorkloadMmap:
		content := make([]byte, size)
		r.rand.Read(content)

		r.file = fsys.NewMemFile(fmt.Sprintf("data-%d", r.p.PID()), content)

		addr, err := r.p.Mmap(HeapBase, uint64(size), true, r.file, 0)
		if err != nil {
			return err
		}

		r.mapAddr = addr
		for i := range r.pages {
			vAddr := addr + uint64(i)*r.pageSize
			r.expected[vAddr] = content[i*int(r.pageSize)]
		}

		return nil
	default:
		return fmt.Errorf("unknown workload %q", kind)
	}
}

func (r *runner) round(kind WorkloadKind, round int) error {
	switch kind {
	case WorkloadSequential:
		for i := range r.pages {
			err := r.store(HeapBase+uint64(i)*r.pageSize, byte(i+round))
			if err != nil {
				return err
			}
		}
	case WorkloadRandom:
		for range r.pages {
			i := r.rand.Intn(r.pages)

			err := r.store(HeapBase+uint64(i)*r.pageSize, byte(r.rand.Intn(256)))
			if err != nil {
				return err
			}
		}
	case WorkloadStack:
		return r.growStack(round)
	case WorkloadMmap:
		for i := range r.pages {
			if r.rand.Intn(2) == 0 {
				continue
			}

			err := r.store(r.mapAddr+uint64(i)*r.pageSize, byte(r.rand.Intn(256)))
			if err != nil {
				return err
			}
		}
	}

	return r.verify()
}

// growStack pushes one page per round until the workload's page count is on
// the stack, then rewrites the pages already there.
func (r *runner) growStack(round int) error {
	if len(r.expected) < r.pages {
		frame := make([]byte, r.pageSize)
		frame[0] = byte(round + 1)

		err := r.p.Push(frame)
		if err != nil {
			return err
		}

		r.expected[r.p.StackPointer()] = frame[0]
	} else {
		for vAddr := range r.expected {
			err := r.store(vAddr, byte(r.rand.Intn(256)))
			if err != nil {
				return err
			}
		}
	}

	return r.verify()
}

func (r *runner) store(vAddr uint64, b byte) error {
	err := r.p.Store(vAddr, b)
	if err != nil {
		return err
	}

	r.expected[vAddr] = b

	return nil
}

func (r *runner) verify() error {
	for vAddr, want := range r.expected {
		got, err := r.p.Load(vAddr)
		if err != nil {
			return err
		}

		if got != want {
			return fmt.Errorf("0x%x holds 0x%02x, wrote 0x%02x: %w",
				vAddr, got, want, ErrCorrupted)
		}
	}

	return nil
}

// finish unmaps the file of an mmap workload and checks that every write
// reached the file.
func (r *runner) finish(kind WorkloadKind) error {
	if kind != WorkloadMmap {
		return nil
	}

	defer r.file.Close()

	if !r.p.Munmap(r.mapAddr) {
		return fmt.Errorf("unmap 0x%x failed", r.mapAddr)
	}

	fs := r.p.manager.FileSystem()
	buf := make([]byte, 1)

	for vAddr, want := range r.expected {
		_, err := fs.ReadAt(r.file, buf, int64(vAddr-r.mapAddr))
		if err != nil {
			return err
		}

		if buf[0] != want {
			return fmt.Errorf("file offset 0x%x holds 0x%02x, wrote 0x%02x: %w",
				vAddr-r.mapAddr, buf[0], want, ErrCorrupted)
		}
	}

	return nil
}

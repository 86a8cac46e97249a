package simulation

import (
	"errors"
	"io"

	"github.com/sarchlab/demandpaging/datarecording"
	"github.com/sarchlab/demandpaging/mem/vm"
	"github.com/sarchlab/demandpaging/monitoring"
	"github.com/sarchlab/demandpaging/tracing"
)

// A Simulation owns a paging engine and the services around it: event
// logging, event recording, and monitoring.
type Simulation struct {
	id      string
	manager *vm.Manager

	dataRecorder datarecording.DataRecorder
	execRecorder *datarecording.ExecRecorder
	dbTracer     *tracing.DBTracer
	logHook      *tracing.LogHook
	counter      *tracing.CountTracer
	monitor      *monitoring.Monitor

	closers []io.Closer
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Manager returns the paging engine.
func (s *Simulation) Manager() *vm.Manager {
	return s.manager
}

// EventCounter returns the tracer that counts the events of the paging
// engine.
func (s *Simulation) EventCounter() *tracing.CountTracer {
	return s.counter
}

// GetDataRecorder returns the data recorder used in the simulation. It is
// nil if events are not recorded.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation. It is nil if
// monitoring is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// Spawn starts a new process with an empty address space and one resident
// stack page.
func (s *Simulation) Spawn() (*Process, error) {
	as := s.manager.NewAddressSpace()
	p := newProcess(s, as)

	err := s.manager.SetupStack(as)
	if err != nil {
		p.Exit(vm.ExitStatusFaulted)
		return nil, err
	}

	return p, nil
}

// Terminate stops the monitor, flushes recorded events, and releases the
// swap device and the physical memory.
func (s *Simulation) Terminate() error {
	var errs []error

	if s.monitor != nil {
		errs = append(errs, s.monitor.StopServer())
	}

	if s.execRecorder != nil {
		s.execRecorder.End()
	}

	if s.dataRecorder != nil {
		errs = append(errs, s.dataRecorder.Close())
	}

	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}

	return errors.Join(errs...)
}

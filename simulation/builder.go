package simulation

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/rs/xid"
	"github.com/sarchlab/demandpaging/datarecording"
	"github.com/sarchlab/demandpaging/mem/vm"
	"github.com/sarchlab/demandpaging/mem/vm/fsys"
	"github.com/sarchlab/demandpaging/mem/vm/swap"
	"github.com/sarchlab/demandpaging/monitoring"
	"github.com/sarchlab/demandpaging/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	log2PageSize   uint64
	numFrames      int
	swapSlots      int
	swapFile       string
	mmapMemory     bool
	fs             *fsys.FileSystem
	logger         *slog.Logger
	recording      bool
	outputFileName string
	monitorOn      bool
	monitorPort    int
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		log2PageSize: 12,
		numFrames:    64,
		swapSlots:    1024,
	}
}

// WithLog2PageSize sets the page size.
func (b Builder) WithLog2PageSize(log2PageSize uint64) Builder {
	b.log2PageSize = log2PageSize
	return b
}

// WithNumFrames sets the number of physical user pages.
func (b Builder) WithNumFrames(n int) Builder {
	b.numFrames = n
	return b
}

// WithSwapSlots sets the number of swap slots.
func (b Builder) WithSwapSlots(n int) Builder {
	b.swapSlots = n
	return b
}

// WithSwapFile keeps the swap space in a file at path instead of memory.
// The file is removed when the simulation terminates.
func (b Builder) WithSwapFile(path string) Builder {
	b.swapFile = path
	return b
}

// WithMmapMemory backs physical memory with an anonymous memory mapping.
func (b Builder) WithMmapMemory() Builder {
	b.mmapMemory = true
	return b
}

// WithFileSystem sets the file layer mapped files are read through.
func (b Builder) WithFileSystem(fs *fsys.FileSystem) Builder {
	b.fs = fs
	return b
}

// WithLogger logs the events of the paging engine to logger.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// WithDataRecording records every event in an SQLite database. If filename
// is empty, a unique name is generated.
func (b Builder) WithDataRecording(filename string) Builder {
	b.recording = true
	b.outputFileName = filename

	return b
}

// WithMonitoring starts a monitoring server.
func (b Builder) WithMonitoring() Builder {
	b.monitorOn = true
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if b.swapSlots < 0 {
		panic(fmt.Sprintf("invalid number of swap slots %d", b.swapSlots))
	}
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	s := &Simulation{
		id: xid.New().String(),
	}

	mb := vm.MakeBuilder().
		WithLog2PageSize(b.log2PageSize).
		WithNumFrames(b.numFrames).
		WithFileSystem(b.fs)

	if b.mmapMemory {
		mem, err := newMmapMemory(b.numFrames, b.log2PageSize)
		if err != nil {
			return nil, err
		}

		s.closers = append(s.closers, mem)
		mb = mb.WithPhysicalMemory(mem)
	}

	swapSpace, err := b.buildSwap()
	if err != nil {
		_ = s.Terminate()
		return nil, err
	}

	s.closers = append(s.closers, swapSpace)
	s.manager = mb.WithSwapSpace(swapSpace).Build()

	b.attachServices(s)

	return s, nil
}

func (b Builder) buildSwap() (*swap.Space, error) {
	sb := swap.MakeBuilder().
		WithNumSlots(b.swapSlots).
		WithSlotSize(1 << b.log2PageSize)

	if b.swapFile != "" {
		size := int64(b.swapSlots) << b.log2PageSize

		device, err := swap.NewFileDevice(b.swapFile, size)
		if err != nil {
			return nil, fmt.Errorf("create swap file: %w", err)
		}

		sb = sb.WithDevice(device)
	}

	return sb.Build(), nil
}

func (b Builder) attachServices(s *Simulation) {
	s.counter = tracing.NewCountTracer(nil)
	tracing.Collect(s.manager, s.counter)

	if b.logger != nil {
		s.logHook = tracing.NewLogHook(b.logger)
		tracing.Collect(s.manager, s.logHook)
	}

	if b.recording {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "vmsim_" + s.id
		}

		s.dataRecorder = datarecording.New(outputPath)
		s.execRecorder = datarecording.NewExecRecorder(s.dataRecorder)
		s.execRecorder.Start()
		s.execRecorder.Set("Simulation ID", s.id)
		s.execRecorder.Set("Page Size", strconv.FormatUint(1<<b.log2PageSize, 10))
		s.execRecorder.Set("Frames", strconv.Itoa(b.numFrames))
		s.execRecorder.Set("Swap Slots", strconv.Itoa(b.swapSlots))

		s.dbTracer = tracing.NewDBTracer(s.dataRecorder)
		tracing.Collect(s.manager, s.dbTracer)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor()
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}

		s.monitor.RegisterManager(s.manager)
		s.monitor.StartServer()
	}
}

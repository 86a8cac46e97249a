package simulation

import (
	"bytes"
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/demandpaging/datarecording"
	"github.com/sarchlab/demandpaging/mem/vm"
	"github.com/sarchlab/demandpaging/mem/vm/fsys"
	"github.com/sarchlab/demandpaging/tracing"
)

var _ = Describe("Simulation", func() {
	var (
		s        *Simulation
		pageSize uint64
	)

	BeforeEach(func() {
		var err error

		s, err = MakeBuilder().
			WithNumFrames(8).
			WithSwapSlots(64).
			Build()
		Expect(err).NotTo(HaveOccurred())

		pageSize = s.Manager().PageSize()
	})

	AfterEach(func() {
		Expect(s.Terminate()).To(Succeed())
	})

	It("should spawn a process with one resident stack page", func() {
		p, err := s.Spawn()
		Expect(err).NotTo(HaveOccurred())

		top := s.Manager().StackTop()
		Expect(p.StackPointer()).To(Equal(top))
		Expect(p.AddressSpace().Directory().NumPresent()).To(Equal(1))

		_, found := p.AddressSpace().Directory().Lookup(top - pageSize)
		Expect(found).To(BeTrue())
	})

	It("should grow the stack on pushes", func() {
		p, _ := s.Spawn()

		frame := bytes.Repeat([]byte{0xab}, int(pageSize))
		Expect(p.Push(frame)).To(Succeed())
		Expect(p.Push(frame)).To(Succeed())
		Expect(p.Push([]byte{1, 2, 3})).To(Succeed())

		Expect(s.Manager().Stats().StackGrowths).To(Equal(uint64(2)))

		data, err := p.ReadBytes(p.StackPointer(), 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{1, 2, 3}))
	})

	It("should kill a process touching unmapped memory", func() {
		p, _ := s.Spawn()

		_, err := p.Load(HeapBase)

		Expect(err).To(MatchError(ErrProcessKilled))
		Expect(p.Wait()).To(Equal(vm.ExitStatusFaulted))
		Expect(s.Manager().Spaces()).To(BeEmpty())

		err = p.Store(HeapBase, 1)
		Expect(err).To(MatchError(ErrProcessKilled))
	})

	It("should report exited processes", func() {
		p, _ := s.Spawn()
		p.Exit(3)

		_, err := p.Load(s.Manager().StackTop() - 1)

		Expect(err).To(MatchError(ErrProcessExited))
		Expect(p.Wait()).To(Equal(3))
	})

	It("should load segments lazily", func() {
		p, _ := s.Spawn()
		file := fsys.NewMemFile("prog", []byte("program text"))
		defer file.Close()

		err := p.LoadSegment(HeapBase, file, 0, 12, int(pageSize)-12, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.AddressSpace().Directory().NumPresent()).To(Equal(1))

		data, err := p.ReadBytes(HeapBase, 14)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("program text\x00\x00")))

		err = p.Store(HeapBase, 'P')
		Expect(err).To(MatchError(ErrProcessKilled))
	})

	It("should refuse unaligned segments", func() {
		p, _ := s.Spawn()

		err := p.LoadSegment(HeapBase+1, nil, 0, 0, int(pageSize), true)

		Expect(err).To(HaveOccurred())
	})

	It("should write mapped files back on unmap", func() {
		p, _ := s.Spawn()
		file := fsys.NewMemFile("data", make([]byte, 2*pageSize))
		defer file.Close()

		addr, err := p.Mmap(HeapBase, 2*pageSize, true, file, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(addr).To(Equal(HeapBase))

		Expect(p.WriteBytes(addr+pageSize, []byte("hi"))).To(Succeed())
		Expect(p.Munmap(addr)).To(BeTrue())

		buf := make([]byte, 2)
		_, err = s.Manager().FileSystem().ReadAt(file, buf, int64(pageSize))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf)).To(Equal("hi"))
	})

	It("should give a forked child its own memory", func() {
		parent, _ := s.Spawn()
		Expect(parent.LoadSegment(HeapBase, nil, 0, 0, int(pageSize), true)).
			To(Succeed())
		Expect(parent.Store(HeapBase, 1)).To(Succeed())

		child, err := parent.Fork()
		Expect(err).NotTo(HaveOccurred())
		Expect(child.PID()).NotTo(Equal(parent.PID()))
		Expect(child.StackPointer()).To(Equal(parent.StackPointer()))

		Expect(child.Store(HeapBase, 2)).To(Succeed())

		Expect(parent.Load(HeapBase)).To(Equal(byte(1)))
		Expect(child.Load(HeapBase)).To(Equal(byte(2)))

		child.Exit(0)
		Expect(child.Wait()).To(Equal(0))
		Expect(parent.Load(HeapBase)).To(Equal(byte(1)))
	})

	It("should not fork an exited process", func() {
		p, _ := s.Spawn()
		p.Exit(0)

		_, err := p.Fork()

		Expect(err).To(MatchError(ErrProcessExited))
	})

	It("should refuse an unknown workload", func() {
		_, err := ParseWorkloadKind("bogus")
		Expect(err).To(HaveOccurred())

		err = s.Run(Workload{Kind: "bogus", Processes: 1, Pages: 1})
		Expect(err).To(HaveOccurred())
	})

	It("should refuse an empty workload", func() {
		Expect(s.Run(Workload{Kind: WorkloadRandom})).NotTo(Succeed())
	})

	DescribeTable("workloads larger than memory",
		func(kind WorkloadKind) {
			err := s.Run(Workload{
				Kind:      kind,
				Processes: 3,
				Pages:     6,
				Rounds:    8,
				Seed:      42,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(s.Manager().Spaces()).To(BeEmpty())
			Expect(s.Manager().Frames().Len()).To(Equal(0))
			Expect(s.Manager().Swap().Used()).To(Equal(0))
		},
		Entry("sequential", WorkloadSequential),
		Entry("random", WorkloadRandom),
		Entry("stack", WorkloadStack),
		Entry("mmap", WorkloadMmap),
	)

	It("should evict when the workload exceeds memory", func() {
		err := s.Run(Workload{
			Kind:      WorkloadSequential,
			Processes: 2,
			Pages:     10,
			Rounds:    2,
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(s.Manager().Stats().Evictions).NotTo(BeZero())
		Expect(s.Manager().Stats().SwapIns).NotTo(BeZero())
	})
})

var _ = Describe("Builder", func() {
	It("should panic on a monitor port without monitoring", func() {
		Expect(func() {
			_, _ = MakeBuilder().WithMonitorPort(8080).Build()
		}).To(Panic())
	})

	It("should keep swap in a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "swap")

		s, err := MakeBuilder().
			WithNumFrames(2).
			WithSwapSlots(16).
			WithSwapFile(path).
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(BeAnExistingFile())

		Expect(s.Run(Workload{
			Kind:      WorkloadSequential,
			Processes: 1,
			Pages:     4,
			Rounds:    2,
		})).To(Succeed())

		Expect(s.Terminate()).To(Succeed())
		Expect(path).NotTo(BeAnExistingFile())
	})

	It("should fail if the swap file exists", func() {
		path := filepath.Join(GinkgoT().TempDir(), "swap")

		s, err := MakeBuilder().WithSwapFile(path).Build()
		Expect(err).NotTo(HaveOccurred())
		defer s.Terminate()

		_, err = MakeBuilder().WithSwapFile(path).Build()
		Expect(err).To(HaveOccurred())
	})

	It("should record events", func() {
		dbPath := filepath.Join(GinkgoT().TempDir(), "events")

		s, err := MakeBuilder().
			WithNumFrames(4).
			WithDataRecording(dbPath).
			Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.GetDataRecorder()).NotTo(BeNil())

		p, _ := s.Spawn()
		_, err = p.Load(HeapBase)
		Expect(err).To(MatchError(ErrProcessKilled))

		Expect(s.Terminate()).To(Succeed())

		reader := datarecording.NewReader(dbPath + ".sqlite3")
		defer reader.Close()
		reader.MapTable(tracing.EventTable, tracing.VMEvent{})

		rows, _, err := reader.Query(context.Background(), tracing.EventTable,
			datarecording.QueryParams{
				Where: "Position = ?",
				Args:  []any{vm.HookPosProcessKilled.Name},
			})
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))

		event := rows[0].(*tracing.VMEvent)
		Expect(event.PID).To(Equal(uint32(p.PID())))

		reader.MapTable(datarecording.ExecTable, datarecording.ExecInfo{})
		rows, _, err = reader.Query(context.Background(),
			datarecording.ExecTable,
			datarecording.QueryParams{
				Where: "Property = ?",
				Args:  []any{"Frames"},
			})
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].(*datarecording.ExecInfo).Value).To(Equal("4"))
	})

	It("should log events", func() {
		var buf bytes.Buffer

		s, err := MakeBuilder().
			WithLogger(tracing.NewLogger(&buf, tracing.ParseLevel("debug"))).
			Build()
		Expect(err).NotTo(HaveOccurred())
		defer s.Terminate()

		_, err = s.Spawn()
		Expect(err).NotTo(HaveOccurred())

		Expect(buf.String()).To(ContainSubstring("PageClaimed"))
	})

	It("should serve the monitor", func() {
		s, err := MakeBuilder().WithMonitoring().Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(s.GetMonitor()).NotTo(BeNil())
		Expect(s.GetMonitor().URL()).To(HavePrefix("http://"))

		Expect(s.Terminate()).To(Succeed())
	})
})

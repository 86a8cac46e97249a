package vm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/demandpaging/hooking"
	"github.com/sarchlab/demandpaging/mem/vm/fsys"
	"github.com/sarchlab/demandpaging/mem/vm/hw"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Manager", func() {
	var (
		mockCtrl *gomock.Controller
		fs       *fsys.FileSystem
		m        *Manager
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		fs = fsys.New()
		m = MakeBuilder().
			WithNumFrames(8).
			WithSwapSlots(32).
			WithFileSystem(fs).
			Build()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("copying an address space", func() {
		var src, dst *AddressSpace

		BeforeEach(func() {
			src = m.NewAddressSpace()
			dst = m.NewAddressSpace()
		})

		It("should keep lazy pages lazy and copy resident ones", func() {
			exe := fsys.NewMemFile("exe", []byte("lazy segment"))
			Expect(m.DeclareLazyPage(src, PageTypeAnon, 0x1000, false,
				LoadSegment(exe, 0, 12))).To(Succeed())
			Expect(m.DeclareLazyPage(src, PageTypeAnon, 0x2000, true,
				ZeroPage())).To(Succeed())
			store(m, src, 0x2010, 0x5a)

			Expect(m.CopyAddressSpace(dst, src)).To(Succeed())

			Expect(dst.PageTable().Len()).To(Equal(2))
			lazy := dst.PageTable().Find(0x1000)
			Expect(lazy.IsMaterialized()).To(BeFalse())
			Expect(lazy.Writable).To(BeFalse())

			Expect(load(m, dst, 0x2010)).To(Equal(byte(0x5a)))

			store(m, src, 0x2010, 0x11)
			Expect(load(m, dst, 0x2010)).To(Equal(byte(0x5a)))
			store(m, dst, 0x2010, 0x22)
			Expect(load(m, src, 0x2010)).To(Equal(byte(0x11)))

			Expect(load(m, dst, 0x1000)).To(Equal(byte('l')))
			Expect(load(m, dst, 0x100b)).To(Equal(byte('t')))
			Expect(load(m, dst, 0x100c)).To(Equal(byte(0)))
		})

		It("should give the copy its own handle of lazily loaded files", func() {
			exe := fsys.NewMemFile("exe", []byte("abc"))
			Expect(m.DeclareLazyPage(src, PageTypeAnon, 0x1000, true,
				LoadSegment(exe, 0, 3))).To(Succeed())

			Expect(m.CopyAddressSpace(dst, src)).To(Succeed())
			Expect(fs.OpenHandles()).To(Equal(int64(1)))

			Expect(load(m, dst, 0x1001)).To(Equal(byte('b')))
			Expect(fs.OpenHandles()).To(Equal(int64(0)))

			m.DestroyAddressSpace(dst)
			m.DestroyAddressSpace(src)
			Expect(fs.OpenHandles()).To(Equal(int64(0)))
		})

		It("should share the mapping of copied file pages", func() {
			file := fsys.NewMemFile("shared", []byte("shared content"))
			_, err := m.CreateMapping(src, 0x10000000, 4096, true, file, 0)
			Expect(err).NotTo(HaveOccurred())
			store(m, src, 0x10000000, 'S')

			Expect(m.CopyAddressSpace(dst, src)).To(Succeed())

			region := src.PageTable().Find(0x10000000).Region()
			Expect(dst.PageTable().Find(0x10000000).Region()).
				To(BeIdenticalTo(region))
			Expect(region.Refs()).To(Equal(2))
			Expect(load(m, dst, 0x10000000)).To(Equal(byte('S')))
			Expect(dst.Directory().IsDirty(0x10000000)).To(BeTrue())

			Expect(m.Unmap(src, 0x10000000)).To(BeTrue())
			Expect(fs.OpenHandles()).To(Equal(int64(1)))
			Expect(m.Unmap(dst, 0x10000000)).To(BeTrue())
			Expect(fs.OpenHandles()).To(Equal(int64(0)))

			b := make([]byte, 1)
			_, _ = file.ReadAt(b, 0)
			Expect(b[0]).To(Equal(byte('S')))
		})

		It("should copy pages that were swapped out", func() {
			for i := uint64(1); i <= 12; i++ {
				Expect(m.DeclareLazyPage(src, PageTypeAnon, i<<12, true,
					ZeroPage())).To(Succeed())
				store(m, src, i<<12, byte(i))
			}

			Expect(m.CopyAddressSpace(dst, src)).To(Succeed())

			for i := uint64(1); i <= 12; i++ {
				Expect(load(m, dst, i<<12)).To(Equal(byte(i)))
			}
		})

		It("should keep the stack marker", func() {
			Expect(m.SetupStack(src)).To(Succeed())

			Expect(m.CopyAddressSpace(dst, src)).To(Succeed())

			page := dst.PageTable().Find(testStackTop - 1)
			Expect(page.Stack).To(BeTrue())
		})
	})

	Context("claiming", func() {
		It("should roll back when the page cannot be mapped", func() {
			dir := NewMockPageDirectory(mockCtrl)
			m = MakeBuilder().
				WithNumFrames(4).
				WithPageDirectoryFactory(func() hw.PageDirectory { return dir }).
				Build()
			as := m.NewAddressSpace()
			Expect(m.DeclareLazyPage(as, PageTypeAnon, 0x1000, true,
				ZeroPage())).To(Succeed())

			dir.EXPECT().Install(uint64(0x1000), gomock.Any(), true).Return(false)

			err := m.ClaimPage(as, 0x1000)

			Expect(err).To(MatchError(ErrClaimFailed))
			Expect(m.Memory().NumFree()).To(Equal(4))
			Expect(m.Frames().Len()).To(Equal(0))
		})

		It("should report claiming an undeclared page", func() {
			as := m.NewAddressSpace()

			Expect(m.ClaimPage(as, 0x1000)).To(MatchError(ErrNotMapped))
		})

		It("should claim a resident page only once", func() {
			as := m.NewAddressSpace()
			Expect(m.DeclareLazyPage(as, PageTypeAnon, 0x1000, true,
				ZeroPage())).To(Succeed())

			Expect(m.ClaimPage(as, 0x1000)).To(Succeed())
			Expect(m.ClaimPage(as, 0x1000)).To(Succeed())

			Expect(m.Stats().Claims).To(Equal(uint64(1)))
			Expect(m.Frames().Len()).To(Equal(1))
		})
	})

	Context("hooks", func() {
		It("should report faults, claims and evictions", func() {
			m = MakeBuilder().WithNumFrames(2).Build()
			as := m.NewAddressSpace()
			for i := uint64(1); i <= 3; i++ {
				Expect(m.DeclareLazyPage(as, PageTypeAnon, i<<12, true,
					ZeroPage())).To(Succeed())
			}

			counts := map[*hooking.HookPos]int{}
			hook := NewMockHook(mockCtrl)
			hook.EXPECT().Func(gomock.Any()).
				Do(func(ctx hooking.HookCtx) {
					Expect(ctx.Domain).To(BeIdenticalTo(m))
					Expect(ctx.Detail).To(BeAssignableToTypeOf(Event{}))
					counts[ctx.Pos]++
				}).
				AnyTimes()
			m.AcceptHook(hook)

			for i := uint64(1); i <= 3; i++ {
				store(m, as, i<<12, 1)
			}

			Expect(counts[HookPosPageFault]).To(Equal(3))
			Expect(counts[HookPosPageClaimed]).To(Equal(3))
			Expect(counts[HookPosEvict]).To(Equal(1))

			m.DestroyAddressSpace(as)
			Expect(counts[HookPosPageDestroyed]).To(Equal(3))
		})

		It("should let hooks inspect the page they report", func() {
			m = MakeBuilder().WithNumFrames(2).Build()
			as := m.NewAddressSpace()
			for i := uint64(1); i <= 3; i++ {
				Expect(m.DeclareLazyPage(as, PageTypeAnon, i<<12, true,
					ZeroPage())).To(Succeed())
			}

			infos := map[*hooking.HookPos][]PageInfo{}
			m.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				page, ok := ctx.Item.(*Page)
				if ok {
					infos[ctx.Pos] = append(infos[ctx.Pos], page.Info())
				}
			}))

			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)

				for i := uint64(1); i <= 3; i++ {
					store(m, as, i<<12, 1)
				}

				dst := m.NewAddressSpace()
				Expect(m.CopyAddressSpace(dst, as)).To(Succeed())
				m.DestroyAddressSpace(dst)
				m.DestroyAddressSpace(as)
			}()
			Eventually(done, "5s").Should(BeClosed())

			Expect(infos[HookPosPageClaimed]).NotTo(BeEmpty())
			for _, info := range infos[HookPosPageClaimed] {
				Expect(info.Resident).To(BeTrue())
			}

			Expect(infos[HookPosEvict]).NotTo(BeEmpty())
			for _, info := range infos[HookPosEvict] {
				Expect(info.Resident).To(BeFalse())
			}

			Expect(infos[HookPosPageDestroyed]).To(HaveLen(6))
		})

		It("should report killed processes", func() {
			as := m.NewAddressSpace()

			var killed *AddressSpace
			m.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
				if ctx.Pos == HookPosProcessKilled {
					killed = ctx.Item.(*AddressSpace)
				}
			}))

			m.HandleFault(as, Fault{Addr: 0x10, NotPresent: true})

			Expect(killed).To(BeIdenticalTo(as))
		})
	})

	It("should list live address spaces", func() {
		a := m.NewAddressSpace()
		b := m.NewAddressSpace()

		Expect(m.Spaces()).To(Equal([]*AddressSpace{a, b}))

		m.DestroyAddressSpace(a)

		Expect(m.Spaces()).To(Equal([]*AddressSpace{b}))
		Expect(a.PID).NotTo(Equal(b.PID))
	})

	It("should panic on invalid parameters", func() {
		Expect(func() { MakeBuilder().WithNumFrames(1).Build() }).To(Panic())
		Expect(func() { MakeBuilder().WithStackTop(0x1234).Build() }).To(Panic())
		Expect(func() {
			MakeBuilder().WithMaxStackSize(1 << 40).Build()
		}).To(Panic())
	})
})

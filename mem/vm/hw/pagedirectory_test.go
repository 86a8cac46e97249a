package hw_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/demandpaging/mem/vm/hw"
)

var _ = Describe("PageDirectory", func() {
	var dir hw.PageDirectory

	BeforeEach(func() {
		dir = hw.NewPageDirectory(12)
	})

	It("should install and look up entries by page", func() {
		Expect(dir.Install(0x1234, 0x5000, true)).To(BeTrue())

		e, found := dir.Lookup(0x1fff)

		Expect(found).To(BeTrue())
		Expect(e.PAddr).To(Equal(uint64(0x5000)))
		Expect(e.Writable).To(BeTrue())
		Expect(dir.NumPresent()).To(Equal(1))
	})

	It("should report not present for unknown pages", func() {
		result := dir.Translate(0x1000, false, nil)

		Expect(result).To(Equal(hw.TranslateNotPresent))
	})

	It("should report protection faults on writes to read-only pages", func() {
		dir.Install(0x1000, 0x2000, false)

		result := dir.Translate(0x1000, true, nil)

		Expect(result).To(Equal(hw.TranslateProtection))
		Expect(dir.IsDirty(0x1000)).To(BeFalse())
	})

	It("should set accessed and dirty bits on access", func() {
		dir.Install(0x1000, 0x2000, true)

		var pAddr uint64
		result := dir.Translate(0x1010, true, func(p uint64) { pAddr = p })

		Expect(result).To(Equal(hw.TranslateOK))
		Expect(pAddr).To(Equal(uint64(0x2010)))
		Expect(dir.IsAccessed(0x1000)).To(BeTrue())
		Expect(dir.IsDirty(0x1000)).To(BeTrue())
	})

	It("should keep the dirty bit after clear", func() {
		dir.Install(0x1000, 0x2000, true)
		dir.Translate(0x1000, true, nil)

		dir.Clear(0x1000)

		_, found := dir.Lookup(0x1000)
		Expect(found).To(BeFalse())
		Expect(dir.IsDirty(0x1000)).To(BeTrue())

		dir.SetDirty(0x1000, false)
		Expect(dir.IsDirty(0x1000)).To(BeFalse())
	})

	It("should reset bits on reinstall", func() {
		dir.Install(0x1000, 0x2000, true)
		dir.Translate(0x1000, true, nil)

		dir.Install(0x1000, 0x3000, true)

		Expect(dir.IsDirty(0x1000)).To(BeFalse())
		Expect(dir.IsAccessed(0x1000)).To(BeFalse())
	})
})

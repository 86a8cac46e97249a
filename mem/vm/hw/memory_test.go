package hw_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/demandpaging/mem/vm/hw"
)

var _ = Describe("Memory", func() {
	var mem hw.PhysicalMemory

	BeforeEach(func() {
		mem = hw.NewMemory(2, 12)
	})

	It("should hand out every page exactly once", func() {
		a, ok := mem.AllocateUserPage()
		Expect(ok).To(BeTrue())
		b, ok := mem.AllocateUserPage()
		Expect(ok).To(BeTrue())

		_, ok = mem.AllocateUserPage()

		Expect(ok).To(BeFalse())
		Expect(a).NotTo(Equal(b))
		Expect(mem.NumFree()).To(Equal(0))
	})

	It("should return freed pages to the pool", func() {
		a, _ := mem.AllocateUserPage()

		mem.FreeUserPage(a)

		Expect(mem.NumFree()).To(Equal(2))
	})

	It("should panic on double free", func() {
		a, _ := mem.AllocateUserPage()
		mem.FreeUserPage(a)

		Expect(func() { mem.FreeUserPage(a) }).To(Panic())
	})

	It("should give page-sized views of distinct pages", func() {
		a, _ := mem.AllocateUserPage()
		b, _ := mem.AllocateUserPage()

		mem.Bytes(a)[0] = 1
		mem.Bytes(b)[0] = 2

		Expect(mem.Bytes(a)).To(HaveLen(4096))
		Expect(mem.Bytes(a + 100)[0]).To(Equal(byte(1)))
		Expect(mem.Bytes(b)[0]).To(Equal(byte(2)))
	})
})

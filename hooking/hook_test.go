package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingHook struct {
	ctxs []HookCtx
}

func (h *recordingHook) Func(ctx HookCtx) {
	h.ctxs = append(h.ctxs, ctx)
}

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
		pos  *HookPos
	)

	BeforeEach(func() {
		base = &HookableBase{}
		pos = &HookPos{Name: "Test"}
	})

	It("should invoke registered hooks in order", func() {
		first := &recordingHook{}
		second := &recordingHook{}
		base.AcceptHook(first)
		base.AcceptHook(second)

		base.InvokeHook(HookCtx{Domain: base, Pos: pos, Item: 42})

		Expect(base.NumHooks()).To(Equal(2))
		Expect(first.ctxs).To(HaveLen(1))
		Expect(first.ctxs[0].Item).To(Equal(42))
		Expect(second.ctxs[0].Pos).To(BeIdenticalTo(pos))
	})

	It("should panic on duplicated hook", func() {
		hook := &recordingHook{}
		base.AcceptHook(hook)

		Expect(func() { base.AcceptHook(hook) }).To(Panic())
	})

	It("should accept hook funcs", func() {
		called := 0
		base.AcceptHook(HookFunc(func(HookCtx) { called++ }))
		base.AcceptHook(HookFunc(func(HookCtx) { called++ }))

		base.InvokeHook(HookCtx{Pos: pos})

		Expect(called).To(Equal(2))
	})

	It("should return a copy of the hook list", func() {
		base.AcceptHook(&recordingHook{})

		hooks := base.Hooks()
		hooks[0] = nil

		Expect(base.Hooks()[0]).NotTo(BeNil())
	})
})

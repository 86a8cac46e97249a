package vm

import (
	"container/list"
	"sync"

	"github.com/sarchlab/demandpaging/mem/vm/hw"
)

// A Frame is a physical page claimed by the paging engine.
type Frame struct {
	PAddr uint64

	page     *Page
	elem     *list.Element
	evicting bool
}

// FrameInfo is a snapshot of a bound frame.
type FrameInfo struct {
	PAddr uint64
	PID   PID
	VAddr uint64
}

// FrameTable tracks every frame bound to a page, across all address spaces,
// and picks eviction victims with a clock over the bound frames.
type FrameTable struct {
	lock sync.Mutex
	cond *sync.Cond

	mem    hw.PhysicalMemory
	frames *list.List
	hand   *list.Element
	total  int
}

func newFrameTable(mem hw.PhysicalMemory) *FrameTable {
	t := &FrameTable{
		mem:    mem,
		frames: list.New(),
	}
	t.cond = sync.NewCond(&t.lock)

	return t
}

// Len returns the number of bound frames.
func (t *FrameTable) Len() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.frames.Len()
}

// Snapshot lists the bound frames in clock order.
func (t *FrameTable) Snapshot() []FrameInfo {
	t.lock.Lock()
	defer t.lock.Unlock()

	infos := make([]FrameInfo, 0, t.frames.Len())
	for e := t.frames.Front(); e != nil; e = e.Next() {
		f := e.Value.(*Frame)
		infos = append(infos, FrameInfo{
			PAddr: f.PAddr,
			PID:   f.page.space.PID,
			VAddr: f.page.VAddr,
		})
	}

	return infos
}

// obtain returns a frame that is not bound to any page. A frame coming from
// the physical pool is ready to use. A victim frame is unlinked and marked
// evicting; the caller must evict its page before using it.
func (t *FrameTable) obtain() (f *Frame, victim *Page) {
	t.lock.Lock()
	defer t.lock.Unlock()

	for {
		pAddr, ok := t.mem.AllocateUserPage()
		if ok {
			t.total++
			return &Frame{PAddr: pAddr}, nil
		}

		f = t.pickVictim()
		if f != nil {
			return f, f.page
		}

		if t.total == 0 {
			panic("physical memory exhausted while no frame is bound")
		}

		t.cond.Wait()
	}
}

// pickVictim runs the clock. A frame whose page was accessed since the hand
// last passed gets a second chance. If a full turn finds nothing, the hand
// turns once more; since it cleared accessed bits on the way, the second turn
// finds a victim unless the owners touch their pages again in between, in
// which case the first frame seen is taken.
func (t *FrameTable) pickVictim() *Frame {
	var fallback *Frame

	n := t.frames.Len()
	for turn := 0; turn < 2; turn++ {
		for i := 0; i < n; i++ {
			f := t.advanceHand()
			if fallback == nil {
				fallback = f
			}

			dir := f.page.space.dir
			if dir.IsAccessed(f.page.VAddr) {
				dir.SetAccessed(f.page.VAddr, false)
				continue
			}

			t.takeVictim(f)

			return f
		}
	}

	if fallback != nil {
		t.takeVictim(fallback)
	}

	return fallback
}

func (t *FrameTable) advanceHand() *Frame {
	if t.hand == nil {
		t.hand = t.frames.Front()
	}

	e := t.hand
	t.hand = e.Next()

	return e.Value.(*Frame)
}

func (t *FrameTable) takeVictim(f *Frame) {
	t.unlink(f)
	f.evicting = true
}

func (t *FrameTable) unlink(f *Frame) {
	if f.elem == nil {
		return
	}

	if t.hand == f.elem {
		t.hand = f.elem.Next()
	}

	t.frames.Remove(f.elem)
	f.elem = nil
}

// register binds the frame to the page and makes it visible to the clock.
func (t *FrameTable) register(f *Frame, p *Page) {
	t.lock.Lock()
	defer t.lock.Unlock()

	f.page = p
	f.elem = t.frames.PushBack(f)

	t.cond.Broadcast()
}

// reclaim takes back a frame whose page is claimed again while the frame is
// waiting to be evicted.
func (t *FrameTable) reclaim(f *Frame) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if !f.evicting {
		return
	}

	f.evicting = false
	f.elem = t.frames.PushBack(f)

	t.cond.Broadcast()
}

// evictionState tells whether the frame is still reserved for eviction and,
// if so, whether a page is still bound to it.
func (t *FrameTable) evictionState(f *Frame) (evicting, bound bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	return f.evicting, f.page != nil
}

// unbind detaches the page from a frame that is being evicted.
func (t *FrameTable) unbind(f *Frame) {
	t.lock.Lock()
	defer t.lock.Unlock()

	f.page = nil
}

func (t *FrameTable) finishEviction(f *Frame) {
	t.lock.Lock()
	defer t.lock.Unlock()

	f.page = nil
	f.evicting = false
}

// release unbinds the frame and returns it to the physical pool. A frame that
// is being evicted is only unbound; the evicting thread keeps it.
func (t *FrameTable) release(f *Frame) {
	t.lock.Lock()
	defer t.lock.Unlock()

	f.page = nil

	if f.evicting {
		return
	}

	t.unlink(f)
	t.mem.FreeUserPage(f.PAddr)
	t.total--

	t.cond.Broadcast()
}

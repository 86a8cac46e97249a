package vm

import (
	"fmt"

	"github.com/sarchlab/demandpaging/mem/vm/swap"
)

// anonSwapIn fills the frame of an anonymous page. A page that was never
// evicted is zero-filled; otherwise its swap slot is read back and freed.
func (m *Manager) anonSwapIn(p *Page, buf []byte) error {
	slot := p.anon.slot
	if slot == swap.NoSlot {
		clear(buf)
		return nil
	}

	err := m.swap.Read(slot, buf)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrShortIO, err)
	}

	m.swap.Free(slot)
	p.anon.slot = swap.NoSlot
	m.stats.swapIns.Add(1)

	return nil
}

// anonSwapOut writes the frame of an anonymous page to a fresh swap slot.
func (m *Manager) anonSwapOut(p *Page) error {
	slot, ok := m.swap.Allocate()
	if !ok {
		return fmt.Errorf("evict page 0x%x of process %d: %w",
			p.VAddr, p.space.PID, ErrNoSwapSpace)
	}

	dir := p.space.dir
	dir.Clear(p.VAddr)
	dir.SetDirty(p.VAddr, false)

	err := m.swap.Write(slot, m.mem.Bytes(p.frame.PAddr))
	if err != nil {
		m.swap.Free(slot)
		return err
	}

	p.anon.slot = slot
	m.stats.swapOuts.Add(1)

	return nil
}

func (m *Manager) anonDestroy(p *Page) {
	if p.frame != nil {
		dir := p.space.dir
		dir.Clear(p.VAddr)
		dir.SetDirty(p.VAddr, false)
		m.frames.release(p.frame)
		p.frame = nil
	}

	if p.anon.slot != swap.NoSlot {
		m.swap.Free(p.anon.slot)
		p.anon.slot = swap.NoSlot
	}
}

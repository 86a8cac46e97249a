package vm

import "sync/atomic"

// Stats counts what the Manager has done since it was built.
type Stats struct {
	Faults       uint64 `json:"faults"`
	FailedFaults uint64 `json:"failed_faults"`
	StackGrowths uint64 `json:"stack_growths"`
	Claims       uint64 `json:"claims"`
	Evictions    uint64 `json:"evictions"`
	SwapIns      uint64 `json:"swap_ins"`
	SwapOuts     uint64 `json:"swap_outs"`
	WriteBacks   uint64 `json:"write_backs"`
	Maps         uint64 `json:"maps"`
	Unmaps       uint64 `json:"unmaps"`
	Kills        uint64 `json:"kills"`
}

type statCounters struct {
	faults       atomic.Uint64
	failedFaults atomic.Uint64
	stackGrowths atomic.Uint64
	claims       atomic.Uint64
	evictions    atomic.Uint64
	swapIns      atomic.Uint64
	swapOuts     atomic.Uint64
	writeBacks   atomic.Uint64
	maps         atomic.Uint64
	unmaps       atomic.Uint64
	kills        atomic.Uint64
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	c := &m.stats

	return Stats{
		Faults:       c.faults.Load(),
		FailedFaults: c.failedFaults.Load(),
		StackGrowths: c.stackGrowths.Load(),
		Claims:       c.claims.Load(),
		Evictions:    c.evictions.Load(),
		SwapIns:      c.swapIns.Load(),
		SwapOuts:     c.swapOuts.Load(),
		WriteBacks:   c.writeBacks.Load(),
		Maps:         c.maps.Load(),
		Unmaps:       c.unmaps.Load(),
		Kills:        c.kills.Load(),
	}
}

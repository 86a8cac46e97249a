package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/demandpaging/hooking"
	"github.com/sarchlab/demandpaging/mem/vm"
)

// EventFilter decides whether a CountTracer counts an event.
type EventFilter func(ctx hooking.HookCtx) bool

// CountTracer counts the events of a Manager by hook position and by
// process.
type CountTracer struct {
	filter EventFilter

	lock      sync.Mutex
	posNames  []string
	posCount  map[string]uint64
	procCount map[vm.PID]map[string]uint64
}

// NewCountTracer creates a CountTracer. A nil filter counts every event.
func NewCountTracer(filter EventFilter) *CountTracer {
	return &CountTracer{
		filter:    filter,
		posCount:  make(map[string]uint64),
		procCount: make(map[vm.PID]map[string]uint64),
	}
}

// Func counts the event.
func (t *CountTracer) Func(ctx hooking.HookCtx) {
	e, ok := ctx.Detail.(vm.Event)
	if !ok {
		return
	}

	if t.filter != nil && !t.filter(ctx) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	name := ctx.Pos.Name
	if _, seen := t.posCount[name]; !seen {
		t.posNames = append(t.posNames, name)
	}

	t.posCount[name]++

	perProc, found := t.procCount[e.PID]
	if !found {
		perProc = make(map[string]uint64)
		t.procCount[e.PID] = perProc
	}

	perProc[name]++
}

// PositionNames returns the positions seen so far in the order they were
// first seen.
func (t *CountTracer) PositionNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	names := make([]string, len(t.posNames))
	copy(names, t.posNames)

	return names
}

// Count returns how often the position was hit.
func (t *CountTracer) Count(pos *hooking.HookPos) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.posCount[pos.Name]
}

// CountOf returns how often the position was hit on behalf of pid.
func (t *CountTracer) CountOf(pid vm.PID, pos *hooking.HookPos) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.procCount[pid][pos.Name]
}

// PIDs returns the processes that had events, in ascending order.
func (t *CountTracer) PIDs() []vm.PID {
	t.lock.Lock()
	defer t.lock.Unlock()

	pids := make([]vm.PID, 0, len(t.procCount))
	for pid := range t.procCount {
		pids = append(pids, pid)
	}

	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	return pids
}

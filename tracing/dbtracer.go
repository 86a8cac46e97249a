package tracing

import (
	"sync/atomic"

	"github.com/rs/xid"
	"github.com/sarchlab/demandpaging/datarecording"
	"github.com/sarchlab/demandpaging/hooking"
	"github.com/sarchlab/demandpaging/mem/vm"
)

// EventTable is the table the DBTracer writes to.
const EventTable = "vm_event"

// VMEvent is one row of the event table.
type VMEvent struct {
	ID       string `json:"id"`
	Seq      uint64 `json:"seq"`
	Position string `json:"position"`
	PID      uint32 `json:"pid"`
	VAddr    uint64 `json:"vaddr"`
	PAddr    uint64 `json:"paddr"`
	Kind     string `json:"kind"`
	Detail   string `json:"detail"`
}

// DBTracer is a hook that stores every event of a Manager in a database.
type DBTracer struct {
	backend datarecording.DataRecorder
	seq     atomic.Uint64
}

// NewDBTracer creates a DBTracer and the event table in the backend.
func NewDBTracer(backend datarecording.DataRecorder) *DBTracer {
	backend.CreateTable(EventTable, VMEvent{})

	return &DBTracer{backend: backend}
}

// Func records the event.
func (t *DBTracer) Func(ctx hooking.HookCtx) {
	e, ok := ctx.Detail.(vm.Event)
	if !ok {
		return
	}

	row := VMEvent{
		ID:       xid.New().String(),
		Seq:      t.seq.Add(1),
		Position: ctx.Pos.Name,
		PID:      uint32(e.PID),
		VAddr:    e.VAddr,
		PAddr:    e.PAddr,
	}

	switch item := ctx.Item.(type) {
	case *vm.Page:
		row.Kind = e.Type.String()
	case *vm.MappingRegion:
		row.Kind = "mapping"
		row.Detail = item.ID
	case *vm.AddressSpace:
		row.Kind = "process"
	}

	if e.Err != nil {
		row.Detail = e.Err.Error()
	}

	t.backend.InsertData(EventTable, row)
}

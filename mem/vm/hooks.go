package vm

import "github.com/sarchlab/demandpaging/hooking"

// Hook positions of the Manager. Page events carry the *Page as the item,
// fault and process events the *AddressSpace, mapping events the
// *MappingRegion. The detail is always an Event.
//
// Hooks run on the faulting thread after the reported page is unlocked, so
// they may inspect it. An Evict hook runs while the page that takes over the
// frame is still locked. Hooks must not call back into the Manager.
var (
	HookPosPageFault       = &hooking.HookPos{Name: "PageFault"}
	HookPosFaultFailed     = &hooking.HookPos{Name: "FaultFailed"}
	HookPosProcessKilled   = &hooking.HookPos{Name: "ProcessKilled"}
	HookPosStackGrowth     = &hooking.HookPos{Name: "StackGrowth"}
	HookPosPageClaimed     = &hooking.HookPos{Name: "PageClaimed"}
	HookPosEvict           = &hooking.HookPos{Name: "Evict"}
	HookPosPageDestroyed   = &hooking.HookPos{Name: "PageDestroyed"}
	HookPosWriteBackFailed = &hooking.HookPos{Name: "WriteBackFailed"}
	HookPosMap             = &hooking.HookPos{Name: "Map"}
	HookPosUnmap           = &hooking.HookPos{Name: "Unmap"}
)

// Event describes what happened at a hook position.
type Event struct {
	PID   PID
	VAddr uint64
	PAddr uint64
	Type  PageType
	Err   error
}

func (m *Manager) invoke(pos *hooking.HookPos, item interface{}, e Event) {
	if m.NumHooks() == 0 {
		return
	}

	m.InvokeHook(hooking.HookCtx{
		Domain: m,
		Pos:    pos,
		Item:   item,
		Detail: e,
	})
}

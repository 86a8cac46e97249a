// Package tracing turns the events of the paging engine into log records and
// database rows.
package tracing

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/sarchlab/demandpaging/hooking"
)

// Collect attaches hook to domain. Attaching the same hook twice panics.
func Collect(domain hooking.Hookable, hook hooking.Hook) {
	for _, h := range domain.Hooks() {
		if reflect.TypeOf(h).Comparable() && h == hook {
			panic(fmt.Sprintf("hook %s already attached",
				reflect.TypeOf(hook)))
		}
	}

	domain.AcceptHook(hook)
}

func hex(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

//go:build unix

package simulation

import "github.com/sarchlab/demandpaging/mem/vm/hw"

func newMmapMemory(numPages int, log2PageSize uint64) (*hw.MmapMemory, error) {
	return hw.NewMmapMemory(numPages, log2PageSize)
}

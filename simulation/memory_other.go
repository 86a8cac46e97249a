//go:build !unix

package simulation

import (
	"errors"
	"io"

	"github.com/sarchlab/demandpaging/mem/vm/hw"
)

type mmapMemory interface {
	hw.PhysicalMemory
	io.Closer
}

func newMmapMemory(int, uint64) (mmapMemory, error) {
	return nil, errors.New("mmap-backed memory needs a unix system")
}

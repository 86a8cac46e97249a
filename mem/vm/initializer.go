package vm

import (
	"fmt"

	"github.com/sarchlab/demandpaging/mem/vm/fsys"
)

// InitializerKind selects how a lazily declared page gets its first content.
type InitializerKind int

// Initializer kinds.
const (
	InitZero InitializerKind = iota
	InitLoadSegment
	InitMapFile
)

func (k InitializerKind) String() string {
	switch k {
	case InitZero:
		return "zero"
	case InitLoadSegment:
		return "load-segment"
	case InitMapFile:
		return "map-file"
	default:
		return fmt.Sprintf("InitializerKind(%d)", int(k))
	}
}

// An Initializer fills the frame of a page the first time the page is
// claimed. ReadBytes bytes are read from File at Offset and the rest of the
// page is zeroed.
type Initializer struct {
	Kind      InitializerKind
	File      fsys.File
	Offset    int64
	ReadBytes int

	region   *MappingRegion
	ownsFile bool
}

// ZeroPage returns an initializer that zero-fills the page.
func ZeroPage() Initializer {
	return Initializer{Kind: InitZero}
}

// LoadSegment returns an initializer that reads part of an executable image.
// The caller keeps ownership of file.
func LoadSegment(file fsys.File, offset int64, readBytes int) Initializer {
	return Initializer{
		Kind:      InitLoadSegment,
		File:      file,
		Offset:    offset,
		ReadBytes: readBytes,
	}
}

func mapFile(region *MappingRegion, offset int64, readBytes int) Initializer {
	return Initializer{
		Kind:      InitMapFile,
		File:      region.file,
		Offset:    offset,
		ReadBytes: readBytes,
		region:    region,
	}
}

func (in Initializer) load(fs *fsys.FileSystem, buf []byte) error {
	if in.Kind == InitZero {
		clear(buf)
		return nil
	}

	return readPage(fs, in.File, buf, in.Offset, in.ReadBytes)
}

// release gives back what the initializer holds when its page is destroyed
// before it was ever claimed.
func (in Initializer) release(m *Manager) {
	if in.region != nil {
		in.region.release(m.fs)
	}

	if in.ownsFile {
		m.closeFile(in.File)
	}
}

// duplicate creates an equivalent initializer for a page in another address
// space. Mapped files share the mapping, loaded segments get their own
// handle.
func (in Initializer) duplicate(m *Manager) (Initializer, error) {
	dup := in

	switch in.Kind {
	case InitMapFile:
		in.region.acquire()
	case InitLoadSegment:
		f, err := m.fs.Reopen(in.File)
		if err != nil {
			return Initializer{}, fmt.Errorf("reopen %s: %w", in.File.Name(), err)
		}

		dup.File = f
		dup.ownsFile = true
	}

	return dup, nil
}

func readPage(
	fs *fsys.FileSystem,
	file fsys.File,
	buf []byte,
	offset int64,
	readBytes int,
) error {
	n, err := fs.ReadAt(file, buf[:readBytes], offset)
	if err != nil {
		return err
	}

	if n != readBytes {
		return fmt.Errorf("read %d of %d bytes at offset %d of %s: %w",
			n, readBytes, offset, file.Name(), ErrShortIO)
	}

	clear(buf[readBytes:])

	return nil
}

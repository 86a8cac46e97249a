// Package fsys is the file layer the paging engine reads mapped and
// executable files through. Every call is serialized by one coarse lock,
// mirroring a non-reentrant underlying file system.
package fsys

import (
	"io"
	"os"
	"sync"
)

// ErrClosed is returned when a closed handle is used.
var ErrClosed = os.ErrClosed

// File is an open handle to a file.
type File interface {
	io.ReaderAt
	io.WriterAt

	// Name returns the name the file was opened with.
	Name() string

	// Length returns the size of the file in bytes.
	Length() (int64, error)

	// Reopen returns a new, independent handle to the same file.
	Reopen() (File, error)

	// Close releases the handle. Closing twice is an error.
	Close() error
}

// NewMemFile creates an in-memory file holding a copy of data.
func NewMemFile(name string, data []byte) File {
	ino := &inode{name: name, data: append([]byte(nil), data...)}

	return &memFile{inode: ino}
}

type inode struct {
	sync.Mutex
	name string
	data []byte
}

type memFile struct {
	*inode
	closed bool
}

func (f *memFile) Name() string {
	return f.name
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}

	f.inode.Lock()
	defer f.inode.Unlock()

	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}

	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

func (f *memFile) WriteAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}

	f.inode.Lock()
	defer f.inode.Unlock()

	end := off + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}

	return copy(f.data[off:], p), nil
}

func (f *memFile) Length() (int64, error) {
	if f.closed {
		return 0, ErrClosed
	}

	f.inode.Lock()
	defer f.inode.Unlock()

	return int64(len(f.data)), nil
}

func (f *memFile) Reopen() (File, error) {
	if f.closed {
		return nil, ErrClosed
	}

	return &memFile{inode: f.inode}, nil
}

func (f *memFile) Close() error {
	if f.closed {
		return ErrClosed
	}

	f.closed = true

	return nil
}

// OpenOSFile opens a file of the host file system for reading and writing.
func OpenOSFile(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	return &osFile{File: f, path: path}, nil
}

type osFile struct {
	*os.File
	path string
}

func (f *osFile) Name() string {
	return f.path
}

func (f *osFile) Length() (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

func (f *osFile) Reopen() (File, error) {
	return OpenOSFile(f.path)
}

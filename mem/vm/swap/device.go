package swap

import (
	"io"
	"os"
	"sync"
)

// Device is the block device that backs a swap space.
type Device interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
}

// NewMemDevice creates a device of size bytes held in memory.
func NewMemDevice(size int64) Device {
	return &memDevice{data: make([]byte, size)}
}

type memDevice struct {
	sync.RWMutex
	data []byte
}

func (d *memDevice) ReadAt(p []byte, off int64) (int, error) {
	d.RLock()
	defer d.RUnlock()

	if off >= int64(len(d.data)) {
		return 0, io.EOF
	}

	n := copy(p, d.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

func (d *memDevice) WriteAt(p []byte, off int64) (int, error) {
	d.Lock()
	defer d.Unlock()

	if off >= int64(len(d.data)) {
		return 0, io.ErrShortWrite
	}

	n := copy(d.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}

	return n, nil
}

func (d *memDevice) Close() error {
	return nil
}

// NewFileDevice creates a device backed by a file of size bytes at path. The
// file is removed when the device is closed.
func NewFileDevice(path string, size int64) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}

	err = f.Truncate(size)
	if err != nil {
		f.Close()
		os.Remove(path)

		return nil, err
	}

	return &fileDevice{File: f}, nil
}

type fileDevice struct {
	*os.File
}

func (d *fileDevice) Close() error {
	err := d.File.Close()
	if removeErr := os.Remove(d.Name()); err == nil {
		err = removeErr
	}

	return err
}

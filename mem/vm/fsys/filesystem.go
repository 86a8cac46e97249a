package fsys

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// FileSystem serializes file I/O behind a single lock. The lock is only held
// for the duration of one call.
type FileSystem struct {
	lock sync.Mutex

	reopened atomic.Int64
	closed   atomic.Int64
}

// New creates a FileSystem.
func New() *FileSystem {
	return &FileSystem{}
}

// Reopen returns an independent handle of f.
func (fs *FileSystem) Reopen(f File) (File, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	nf, err := f.Reopen()
	if err != nil {
		return nil, err
	}

	fs.reopened.Add(1)

	return nf, nil
}

// ReadAt reads up to len(buf) bytes at off. Reaching the end of the file is
// not an error; callers compare the returned count with what they asked for.
func (fs *FileSystem) ReadAt(f File, buf []byte, off int64) (int, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	n, err := f.ReadAt(buf, off)
	if errors.Is(err, io.EOF) {
		err = nil
	}

	return n, err
}

// WriteAt writes buf at off.
func (fs *FileSystem) WriteAt(f File, buf []byte, off int64) (int, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	return f.WriteAt(buf, off)
}

// Length returns the size of the file.
func (fs *FileSystem) Length(f File) (int64, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	return f.Length()
}

// Close closes a handle.
func (fs *FileSystem) Close(f File) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	err := f.Close()
	if err != nil {
		return err
	}

	fs.closed.Add(1)

	return nil
}

// OpenHandles returns how many handles created through Reopen have not been
// closed yet.
func (fs *FileSystem) OpenHandles() int64 {
	return fs.reopened.Load() - fs.closed.Load()
}

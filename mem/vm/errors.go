package vm

import "errors"

// Errors reported by fault resolution and mapping requests. A fault that
// fails with any of them is fatal to the faulting process.
var (
	ErrInvalidAccess   = errors.New("invalid memory access")
	ErrWriteToReadOnly = errors.New("write to read-only page")
	ErrNotMapped       = errors.New("address not mapped")
	ErrStackOverflow   = errors.New("stack exceeds its maximum size")
	ErrClaimFailed     = errors.New("cannot claim page")
	ErrShortIO         = errors.New("short read or write")
	ErrPageExists      = errors.New("page already exists")
	ErrNoSwapSpace     = errors.New("swap space exhausted")
	ErrMappingFailed   = errors.New("cannot create mapping")
)

package bitmap

import "errors"

// ErrOutOfMemory means the OS refused to provide more address space for a
// heap or bitmap mapping.
var ErrOutOfMemory = errors.New("bitmap: out of memory")

// ErrRegionFull means the current heap has no run of free blocks long
// enough to satisfy a request, independent of whether growth was
// attempted.
var ErrRegionFull = errors.New("bitmap: no free run of sufficient length")

//go:build unix

package osmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Map reserves a fresh, zero-filled, anonymous private mapping of at
// least size bytes, rounded up to the system page size. The returned
// slice's length is the actual mapped size.
func Map(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("osmem: invalid map size %d", size)
	}
	mapped := RoundUpToPage(size, PageSize())
	b, err := unix.Mmap(-1, 0, mapped, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("osmem: mmap %d bytes: %w", mapped, err)
	}
	return b, nil
}

// Unmap releases a mapping previously returned by Map.
func Unmap(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("osmem: munmap: %w", err)
	}
	return nil
}

// PageSize returns the system's page size in bytes.
func PageSize() int {
	return unix.Getpagesize()
}

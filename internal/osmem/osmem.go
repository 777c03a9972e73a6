// Package osmem isolates the raw OS primitives the allocator needs:
// anonymous page mapping, page size, and the online CPU count. Keeping
// these behind one small package means internal/bitmap never has to
// import golang.org/x/sys/unix directly, the same way higher-level
// packages in this module avoid GOOS-specific syscalls.
package osmem

import "runtime"

// NumCPU returns the number of logical CPUs usable by the current
// process, used to size the per-CPU arena table.
func NumCPU() int {
	return runtime.NumCPU()
}

// RoundUpToPage rounds n up to the next multiple of pageSize.
func RoundUpToPage(n, pageSize int) int {
	if pageSize <= 0 {
		return n
	}
	return (n + pageSize - 1) &^ (pageSize - 1)
}

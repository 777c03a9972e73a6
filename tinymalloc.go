// Package tinymalloc is a dynamic memory allocator over OS-mapped
// anonymous memory. It exposes exactly two operations, Allocate and
// Deallocate, backed by a per-CPU array of bitmap block allocators (see
// internal/bitmap and internal/arena).
//
// Allocate and Deallocate never return or take an error: a failed
// allocation reports itself as a nil pointer, and a pointer the
// allocator does not recognize is a silent no-op on free, mirroring the
// C malloc/free contract this module is built to replace.
package tinymalloc

import (
	"log"
	"sync"
	"unsafe"

	"github.com/timandy/routine"

	"github.com/sibellavia/tinymalloc/internal/arena"
	"github.com/sibellavia/tinymalloc/internal/bitmap"
	"github.com/sibellavia/tinymalloc/internal/osmem"
)

// LargeAllocationThreshold is the byte size above which Allocate stops
// using the calling thread's assigned arena and instead picks whichever
// arena is least loaded and has room.
const LargeAllocationThreshold = 256 * bitmap.BlockSize

var (
	bootstrapMu sync.Mutex
	initialized bool
	table       *arena.Table

	// Overridable only by this package's own tests (see export_test.go).
	mapperOverride   bitmap.Mapper
	cpuCountOverride int

	threadArena = routine.NewThreadLocalWithInitial(func() any { return -1 })
)

// Allocate reserves at least size writable, word-aligned bytes and
// returns a pointer to them, or nil if size is not positive or no arena
// could satisfy the request even after growing its heap.
func Allocate(size int) unsafe.Pointer {
	if size <= 0 {
		return nil
	}
	if !ensureInitialized() {
		return nil
	}

	var a *arena.Arena
	if size > LargeAllocationThreshold {
		a = pickLeastLoadedArena(size)
	} else {
		a = assignedArena()
	}
	if a == nil {
		return nil
	}

	ptr, ok := a.TryAllocate(size)
	if !ok {
		return nil
	}
	return ptr
}

// Deallocate releases a pointer previously returned by Allocate. nil, and
// pointers not owned by any arena in the current table, are silent
// no-ops.
func Deallocate(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	t := currentTable()
	if t == nil {
		return
	}
	n := t.Len()
	for i := 0; i < n; i++ {
		a := t.At(i)
		if a.Owns(ptr) && a.TryDeallocate(ptr) {
			return
		}
	}
}

func currentTable() *arena.Table {
	bootstrapMu.Lock()
	defer bootstrapMu.Unlock()
	return table
}

// ensureInitialized lazily builds the process-wide arena table on first
// use, one arena per logical CPU. Returns false if initialization failed;
// callers treat that the same as an out-of-memory allocation failure.
func ensureInitialized() bool {
	bootstrapMu.Lock()
	defer bootstrapMu.Unlock()
	if initialized {
		return true
	}

	mapper := mapperOverride
	if mapper == nil {
		mapper = osMapper{}
	}
	n := cpuCountOverride
	if n <= 0 {
		n = osmem.NumCPU()
	}
	if n < 1 {
		n = 1
	}

	t, err := arena.NewTable(mapper, n)
	if err != nil {
		log.Printf("tinymalloc: failed to initialize arena table: %v", err)
		return false
	}
	table = t
	initialized = true
	return true
}

// assignedArena returns the calling goroutine's sticky arena, assigning
// one round-robin on first touch.
func assignedArena() *arena.Arena {
	idx, _ := threadArena.Get().(int)
	if idx >= 0 {
		return table.At(idx)
	}

	bootstrapMu.Lock()
	assignedIdx, a := table.AssignNext()
	bootstrapMu.Unlock()

	threadArena.Set(assignedIdx)
	return a
}

// pickLeastLoadedArena returns the arena with the smallest advisory used
// byte count that still has room for size bytes, falling back to arena 0
// if none currently has room.
func pickLeastLoadedArena(size int) *arena.Arena {
	n := table.Len()
	best := table.At(0)
	bestUsed := -1

	for i := 0; i < n; i++ {
		a := table.At(i)
		used, capacity := a.Usage()
		if capacity-used < size {
			continue
		}
		if bestUsed == -1 || used < bestUsed {
			best = a
			bestUsed = used
		}
	}
	return best
}

type osMapper struct{}

func (osMapper) Map(size int) ([]byte, error) { return osmem.Map(size) }
func (osMapper) Unmap(b []byte) error         { return osmem.Unmap(b) }
func (osMapper) PageSize() int                { return osmem.PageSize() }

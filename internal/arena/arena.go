// Package arena implements the per-CPU allocation shard: one
// bitmap.Allocator guarded by a mutex, plus an advisory load counter used
// only to steer oversized requests toward a lightly loaded shard.
package arena

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/sibellavia/tinymalloc/internal/bitmap"
)

// headerSize is the one machine word written before every user pointer,
// storing only the caller's logical size. Unlike the bitmap package this
// module is grounded on, there is no magic number here: double-free
// detection is explicitly out of scope.
const headerSize = 8

type heapRange struct {
	start, end uintptr
}

// Arena serializes the allocate-or-grow-and-retry sequence and the
// matching free path behind one mutex.
type Arena struct {
	mu   sync.Mutex
	heap *bitmap.Allocator

	// allocatedBlocks is advisory: it steers oversized requests toward a
	// lightly loaded arena, it is not an invariant the bitmap depends on.
	allocatedBlocks int

	// rng lets the front-end's ownership scan read the current heap
	// address range without taking this arena's mutex, safe under
	// concurrent Extend because the whole struct is replaced atomically.
	rng atomic.Pointer[heapRange]
}

// New creates an Arena with the bitmap package's default initial heap
// size.
func New(mapper bitmap.Mapper) (*Arena, error) {
	return NewWithHeapBytes(mapper, bitmap.DefaultHeapBytes)
}

// NewWithHeapBytes creates an Arena with a caller-chosen initial heap
// size, for tests that want smaller arenas than production.
func NewWithHeapBytes(mapper bitmap.Mapper, initialHeapBytes int) (*Arena, error) {
	h, err := bitmap.NewWithConfig(mapper, initialHeapBytes)
	if err != nil {
		return nil, err
	}
	a := &Arena{heap: h}
	a.refreshRange()
	return a, nil
}

func (a *Arena) refreshRange() {
	start, end := a.heap.HeapRange()
	a.rng.Store(&heapRange{start: start, end: end})
}

// TryAllocate reserves size bytes, growing the underlying heap if
// necessary. Returns (nil, false) if size is non-positive or the heap
// could not be grown enough to satisfy the request.
func (a *Arena) TryAllocate(size int) (unsafe.Pointer, bool) {
	if size <= 0 {
		return nil, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	total := size + headerSize
	blocksNeeded := ceilDiv(total, bitmap.BlockSize)

	start, err := a.heap.Reserve(blocksNeeded)
	if err != nil {
		if !errors.Is(err, bitmap.ErrRegionFull) {
			return nil, false
		}
		extension := maxInt(blocksNeeded*bitmap.BlockSize, a.heap.HeapBytes()/4)
		if err := a.heap.Extend(extension); err != nil {
			return nil, false
		}
		a.refreshRange()
		start, err = a.heap.Reserve(blocksNeeded)
		if err != nil {
			return nil, false
		}
	}

	headerPtr := a.heap.BlockAddr(start)
	*(*uint64)(headerPtr) = uint64(size)
	a.allocatedBlocks += blocksNeeded

	return unsafe.Add(headerPtr, headerSize), true
}

// TryDeallocate frees userPtr if its header address falls within this
// arena's current heap range. Returns true if this arena owned (and
// freed) the pointer. A pointer whose stored size would overrun the heap
// is treated as not owned rather than acted on.
func (a *Arena) TryDeallocate(userPtr unsafe.Pointer) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	headerAddr := unsafe.Add(userPtr, -headerSize)
	start, end := a.heap.HeapRange()
	addr := uintptr(headerAddr)
	if addr < start || addr >= end {
		return false
	}

	size := int(*(*uint64)(headerAddr))
	total := size + headerSize
	blocks := ceilDiv(total, bitmap.BlockSize)
	startBlock := a.heap.BlockIndex(headerAddr)
	if startBlock < 0 || startBlock+blocks > a.heap.NumBlocks() {
		return false
	}

	a.heap.MarkFree(startBlock, blocks)
	a.allocatedBlocks -= blocks
	return true
}

// Owns reports, without locking, whether ptr's header address falls
// within this arena's most recently published heap range. Used by the
// front-end's cross-arena scan to find a pointer's owning arena before
// taking that arena's lock.
func (a *Arena) Owns(ptr unsafe.Pointer) bool {
	r := a.rng.Load()
	if r == nil {
		return false
	}
	headerAddr := uintptr(ptr) - headerSize
	return headerAddr >= r.start && headerAddr < r.end
}

// Usage returns the arena's advisory used-byte count and its current
// heap capacity, for oversized-request arena selection.
func (a *Arena) Usage() (usedBytes, capacityBytes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocatedBlocks * bitmap.BlockSize, a.heap.HeapBytes()
}

// Capacity returns the arena's current heap size in bytes.
func (a *Arena) Capacity() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heap.HeapBytes()
}

// Close releases the arena's underlying mappings. Production code never
// calls this; tests use it to avoid leaking real mappings.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heap.Close()
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

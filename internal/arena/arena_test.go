package arena_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sibellavia/tinymalloc/internal/arena"
	"github.com/sibellavia/tinymalloc/internal/bitmap"
	"github.com/sibellavia/tinymalloc/internal/memtest"
)

func newTestArena(t *testing.T, heapBytes int) *arena.Arena {
	t.Helper()
	a, err := arena.NewWithHeapBytes(memtest.FakeMapper{PageBytes: 64}, heapBytes)
	require.NoError(t, err)
	return a
}

func TestTryAllocateZeroReturnsFalse(t *testing.T) {
	a := newTestArena(t, 4096)
	_, ok := a.TryAllocate(0)
	assert.False(t, ok)
}

func TestTryAllocateWriteReadRoundTrip(t *testing.T) {
	a := newTestArena(t, 4096)
	ptr, ok := a.TryAllocate(13)
	require.True(t, ok)
	require.NotNil(t, ptr)

	buf := unsafe.Slice((*byte)(ptr), 13)
	copy(buf, "Hello, World!")
	assert.Equal(t, "Hello, World!", string(buf))
}

func TestFreeThenAllocateSameSizeReusesAddress(t *testing.T) {
	a := newTestArena(t, 4096)
	p1, ok := a.TryAllocate(100)
	require.True(t, ok)

	require.True(t, a.TryDeallocate(p1))

	p2, ok := a.TryAllocate(100)
	require.True(t, ok)
	assert.Equal(t, p1, p2)
}

func TestDistinctAllocationsDoNotOverlap(t *testing.T) {
	a := newTestArena(t, 4096)
	p1, ok1 := a.TryAllocate(100)
	p2, ok2 := a.TryAllocate(200)
	p3, ok3 := a.TryAllocate(300)
	require.True(t, ok1)
	require.True(t, ok2)
	require.True(t, ok3)

	assert.False(t, overlaps(p1, 100, p2, 200))
	assert.False(t, overlaps(p2, 200, p3, 300))
	assert.False(t, overlaps(p1, 100, p3, 300))
}

func overlaps(a unsafe.Pointer, aLen int, b unsafe.Pointer, bLen int) bool {
	as, ae := uintptr(a), uintptr(a)+uintptr(aLen)
	bs, be := uintptr(b), uintptr(b)+uintptr(bLen)
	return as < be && bs < ae
}

func TestTryAllocateGrowsHeapWhenCurrentlyFull(t *testing.T) {
	a := newTestArena(t, 64) // 4 blocks, no room for a 100-byte request
	ptr, ok := a.TryAllocate(100)
	require.True(t, ok)
	assert.NotNil(t, ptr)
}

func TestTryAllocateExactlyDefaultHeapSizeTriggersGrowth(t *testing.T) {
	a := newTestArena(t, bitmap.DefaultHeapBytes)
	ptr, ok := a.TryAllocate(bitmap.DefaultHeapBytes)
	require.True(t, ok)
	assert.NotNil(t, ptr)
}

func TestTryDeallocateUnknownPointerIsNoop(t *testing.T) {
	a := newTestArena(t, 4096)
	var x int
	assert.False(t, a.TryDeallocate(unsafe.Pointer(&x)))
}

func TestOwnsReflectsCurrentHeapRange(t *testing.T) {
	a := newTestArena(t, 4096)
	p, ok := a.TryAllocate(10)
	require.True(t, ok)
	assert.True(t, a.Owns(p))

	var x int
	assert.False(t, a.Owns(unsafe.Pointer(&x)))
}

func TestUsageTracksAllocationsAndFrees(t *testing.T) {
	a := newTestArena(t, 4096)
	used, capacity := a.Usage()
	assert.Equal(t, 0, used)
	assert.Equal(t, 4096, capacity)

	p, ok := a.TryAllocate(100)
	require.True(t, ok)
	used, _ = a.Usage()
	assert.Greater(t, used, 0)

	a.TryDeallocate(p)
	used, _ = a.Usage()
	assert.Equal(t, 0, used)
}

func TestAllocationFailsWhenMappingIsExhausted(t *testing.T) {
	a, err := arena.NewWithHeapBytes(memtest.LimitedMapper{MaxBytes: 64, PageBytes: 64}, 64)
	require.NoError(t, err)

	_, ok := a.TryAllocate(4096)
	assert.False(t, ok)
}

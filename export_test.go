package tinymalloc

import (
	"unsafe"

	"github.com/sibellavia/tinymalloc/internal/bitmap"
)

// resetForTest clears global state and installs mapper/cpuCount for the
// next lazy initialization. Exposed only to this package's own tests.
func resetForTest(mapper bitmap.Mapper, cpuCount int) {
	bootstrapMu.Lock()
	defer bootstrapMu.Unlock()
	initialized = false
	table = nil
	mapperOverride = mapper
	cpuCountOverride = cpuCount
}

// arenaIndexFor returns the index of the arena owning ptr, or -1 if none
// does. Exposed only to this package's own tests.
func arenaIndexFor(ptr unsafe.Pointer) int {
	t := currentTable()
	if t == nil {
		return -1
	}
	for i := 0; i < t.Len(); i++ {
		if t.At(i).Owns(ptr) {
			return i
		}
	}
	return -1
}

package arena

import (
	"github.com/sibellavia/tinymalloc/internal/bitmap"
	"github.com/sibellavia/tinymalloc/internal/ring"
)

// Table owns the process-wide (or, in tests, per-test) set of Arenas and
// the round-robin cursor used for first-touch thread assignment.
//
// Table does not lock internally: the front-end's bootstrap mutex already
// serializes the only mutating operation, AssignNext.
type Table struct {
	ring   *ring.Ring[*Arena]
	cursor int
}

// NewTable creates n Arenas (one per logical CPU in production) and
// arranges them in a ring. If any Arena fails to initialize, the ones
// already created are closed and the error is returned.
func NewTable(mapper bitmap.Mapper, n int) (*Table, error) {
	arenas := make([]*Arena, n)
	for i := range arenas {
		a, err := New(mapper)
		if err != nil {
			for j := 0; j < i; j++ {
				_ = arenas[j].Close()
			}
			return nil, err
		}
		arenas[i] = a
	}
	return &Table{ring: ring.NewFromSlice(arenas)}, nil
}

// Len returns the number of arenas in the table.
func (t *Table) Len() int { return t.ring.Len() }

// At returns the arena at index i, or nil if i is out of range.
func (t *Table) At(i int) *Arena {
	item, ok := t.ring.Get(i)
	if !ok {
		return nil
	}
	return item.Value()
}

// AssignNext returns the next arena in round-robin order and its index,
// advancing the shared cursor. Callers serialize their own access to this
// method (the front-end holds its bootstrap mutex while calling it).
func (t *Table) AssignNext() (int, *Arena) {
	item, ok := t.ring.Get(t.cursor)
	if !ok {
		return 0, nil
	}
	idx := t.cursor
	if next, ok := t.ring.Next(t.cursor); ok {
		t.cursor = next.Index()
	}
	return idx, item.Value()
}

// TotalCapacity sums every arena's current heap capacity.
func (t *Table) TotalCapacity() int {
	total := 0
	t.ring.Do(func(v **Arena) {
		total += (*v).Capacity()
	})
	return total
}

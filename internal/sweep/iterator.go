// Package sweep enumerates swept-parameter combinations and dispatches them
// over a bounded pool of worker slots.
package sweep

import "github.com/msd-research/metropolis/internal/params"

// Iterator walks the cartesian space of a parsed Spec as a mixed-radix
// odometer. Each label is one digit; the first declared label varies
// fastest. Axes sharing a label advance in lock step at the label's cursor.
//
// An Iterator is a single forward pass and is not safe for concurrent use;
// it is owned by the dispatch loop.
type Iterator struct {
	spec   *params.Spec
	cursor map[string]int
	done   bool
}

// NewIterator positions a fresh iterator at the first combination.
func NewIterator(spec *params.Spec) *Iterator {
	return &Iterator{
		spec:   spec,
		cursor: make(map[string]int, len(spec.LabelOrder)),
	}
}

// Count returns the total number of combinations, the product of the label
// lengths. With no labels the space has exactly one (empty) combination.
func (it *Iterator) Count() int {
	n := 1
	for _, label := range it.spec.LabelOrder {
		n *= it.spec.LabelLen[label]
	}
	return n
}

// Next returns the current swept-value assignment, one value per axis, and
// advances the odometer. The second return is false once the space is
// exhausted.
func (it *Iterator) Next() (map[string]float64, bool) {
	if it.done {
		return nil, false
	}

	assignment := make(map[string]float64, len(it.spec.Axes))
	for _, label := range it.spec.LabelOrder {
		idx := it.cursor[label]
		for _, axis := range it.spec.LabelAxes[label] {
			assignment[axis] = it.spec.Axes[axis][idx]
		}
	}

	// Advance with carry; carrying past the last label exhausts the space.
	carried := true
	for _, label := range it.spec.LabelOrder {
		it.cursor[label]++
		if it.cursor[label] < it.spec.LabelLen[label] {
			carried = false
			break
		}
		it.cursor[label] = 0
	}
	if carried {
		it.done = true
	}
	return assignment, true
}

// Package ordering keeps the order field of sibling lists dense: after any
// mutation the values of a list of N entities are exactly 0..N-1.
package ordering

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrBadDirection    = errors.New("direction must be up or down")
)

// Ordered is implemented by entities with an optional order value.
type Ordered interface {
	OrderValue() (int, bool)
	SetOrder(int)
}

// Ptr lets functions take a []T while calling the pointer methods of T.
type Ptr[T any] interface {
	*T
	Ordered
}

type Direction int

const (
	Up   Direction = -1
	Down Direction = 1
)

func ParseDirection(value string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrBadDirection, value)
	}
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

func key[T any, P Ptr[T]](list []T, pos int) int {
	if order, ok := P(&list[pos]).OrderValue(); ok {
		return order
	}
	return pos
}

// Indices returns the positions of list in display order: by order ascending,
// ties and missing values falling back to position.
func Indices[T any, P Ptr[T]](list []T) []int {
	idx := make([]int, len(list))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return key[T, P](list, idx[a]) < key[T, P](list, idx[b])
	})
	return idx
}

// Sorted returns a copy of list in display order. The input is not modified.
func Sorted[T any, P Ptr[T]](list []T) []T {
	out := make([]T, 0, len(list))
	for _, pos := range Indices[T, P](list) {
		out = append(out, list[pos])
	}
	return out
}

// Dense reports whether every entity has an order and the values are a
// permutation of 0..N-1.
func Dense[T any, P Ptr[T]](list []T) bool {
	seen := make([]bool, len(list))
	for i := range list {
		order, ok := P(&list[i]).OrderValue()
		if !ok || order < 0 || order >= len(list) || seen[order] {
			return false
		}
		seen[order] = true
	}
	return true
}

// Compact reassigns 0..N-1 following the current display order and reports
// whether any value changed.
func Compact[T any, P Ptr[T]](list []T) bool {
	changed := false
	for rank, pos := range Indices[T, P](list) {
		p := P(&list[pos])
		if order, ok := p.OrderValue(); !ok || order != rank {
			p.SetOrder(rank)
			changed = true
		}
	}
	return changed
}

// Backfill gives entities without an order their positional index, then
// compacts the list if it is still not dense. A second call is a no-op.
func Backfill[T any, P Ptr[T]](list []T) bool {
	changed := false
	for i := range list {
		p := P(&list[i])
		if _, ok := p.OrderValue(); !ok {
			p.SetOrder(i)
			changed = true
		}
	}
	if !Dense[T, P](list) {
		if Compact[T, P](list) {
			changed = true
		}
	}
	return changed
}

// SwapAdjacent exchanges the order of the entity at display index with its
// neighbour in direction. Moving past either end returns false and no error.
func SwapAdjacent[T any, P Ptr[T]](list []T, index int, dir Direction) (bool, error) {
	if dir != Up && dir != Down {
		return false, ErrBadDirection
	}
	if index < 0 || index >= len(list) {
		return false, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, index, len(list))
	}
	target := index + int(dir)
	if target < 0 || target >= len(list) {
		return false, nil
	}

	if !Dense[T, P](list) {
		Compact[T, P](list)
	}
	idx := Indices[T, P](list)
	a := P(&list[idx[index]])
	b := P(&list[idx[target]])
	orderA, _ := a.OrderValue()
	orderB, _ := b.OrderValue()
	a.SetOrder(orderB)
	b.SetOrder(orderA)
	return true, nil
}

// Next is the order value of an entity appended to list.
func Next[T any](list []T) int {
	return len(list)
}

package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name  string
	order *int
}

func (e *entry) OrderValue() (int, bool) {
	if e.order == nil {
		return 0, false
	}
	return *e.order, true
}

func (e *entry) SetOrder(order int) { e.order = &order }

func at(name string, order int) entry { return entry{name: name, order: &order} }

func unordered(name string) entry { return entry{name: name} }

func names(list []entry) []string {
	out := make([]string, 0, len(list))
	for _, e := range Sorted(list) {
		out = append(out, e.name)
	}
	return out
}

func orders(list []entry) []int {
	out := make([]int, 0, len(list))
	for i := range list {
		v, ok := list[i].OrderValue()
		if !ok {
			v = -100
		}
		out = append(out, v)
	}
	return out
}

func TestSortedUsesOrderThenPosition(t *testing.T) {
	list := []entry{at("c", 2), at("a", 0), at("b", 1)}
	assert.Equal(t, []string{"a", "b", "c"}, names(list))

	tied := []entry{at("first", 1), at("second", 1), at("zero", 0)}
	assert.Equal(t, []string{"zero", "first", "second"}, names(tied))
}

func TestDense(t *testing.T) {
	tests := []struct {
		name string
		list []entry
		want bool
	}{
		{name: "empty", list: nil, want: true},
		{name: "permutation", list: []entry{at("a", 1), at("b", 0)}, want: true},
		{name: "missing", list: []entry{at("a", 0), unordered("b")}, want: false},
		{name: "duplicate", list: []entry{at("a", 0), at("b", 0)}, want: false},
		{name: "gap", list: []entry{at("a", 0), at("b", 2)}, want: false},
		{name: "negative", list: []entry{at("a", -1), at("b", 0)}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dense(tt.list))
		})
	}
}

func TestBackfillAssignsPositions(t *testing.T) {
	list := []entry{unordered("a"), unordered("b"), unordered("c")}

	require.True(t, Backfill(list))
	assert.Equal(t, []int{0, 1, 2}, orders(list))
	assert.False(t, Backfill(list), "second backfill must be a no-op")
}

func TestBackfillRepairsPartialOrders(t *testing.T) {
	list := []entry{at("a", 5), unordered("b"), at("c", 5), at("d", 0)}

	require.True(t, Backfill(list))
	assert.True(t, Dense(list))
	assert.Equal(t, []string{"d", "b", "a", "c"}, names(list))
	assert.False(t, Backfill(list))
}

func TestBackfillLeavesDenseListAlone(t *testing.T) {
	list := []entry{at("a", 1), at("b", 0)}
	assert.False(t, Backfill(list))
	assert.Equal(t, []int{1, 0}, orders(list))
}

func TestCompact(t *testing.T) {
	list := []entry{at("a", 0), at("c", 4), at("b", 2)}

	assert.True(t, Compact(list))
	assert.Equal(t, []int{0, 2, 1}, orders(list))
	assert.False(t, Compact(list))
}

func TestSwapAdjacent(t *testing.T) {
	list := []entry{at("a", 0), at("b", 1), at("c", 2)}

	moved, err := SwapAdjacent(list, 0, Down)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []string{"b", "a", "c"}, names(list))

	moved, err = SwapAdjacent(list, 2, Up)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []string{"b", "c", "a"}, names(list))
	assert.True(t, Dense(list))
}

func TestSwapAdjacentBoundaryIsNoOp(t *testing.T) {
	list := []entry{at("a", 0), at("b", 1), at("c", 2)}

	moved, err := SwapAdjacent(list, 0, Up)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = SwapAdjacent(list, 2, Down)
	require.NoError(t, err)
	assert.False(t, moved)

	assert.Equal(t, []int{0, 1, 2}, orders(list))
}

func TestSwapAdjacentErrors(t *testing.T) {
	list := []entry{at("a", 0), at("b", 1)}

	_, err := SwapAdjacent(list, 2, Up)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = SwapAdjacent(list, -1, Down)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = SwapAdjacent(list, 0, Direction(3))
	assert.ErrorIs(t, err, ErrBadDirection)
}

func TestSwapAdjacentRepairsSparseList(t *testing.T) {
	list := []entry{at("a", 3), at("b", 7), unordered("c")}

	moved, err := SwapAdjacent(list, 0, Down)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.True(t, Dense(list))
}

func TestParseDirection(t *testing.T) {
	dir, err := ParseDirection("UP")
	require.NoError(t, err)
	assert.Equal(t, Up, dir)

	dir, err = ParseDirection("down")
	require.NoError(t, err)
	assert.Equal(t, Down, dir)

	_, err = ParseDirection("left")
	assert.ErrorIs(t, err, ErrBadDirection)
}

func TestNext(t *testing.T) {
	assert.Equal(t, 0, Next([]entry(nil)))
	assert.Equal(t, 2, Next([]entry{at("a", 0), at("b", 1)}))
}

package field

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lessInt(a, b int) bool { return a < b }

func TestAtFallsBackToDefault(t *testing.T) {
	f := FromPairs(0, []int{1, 2}, []int{10, 20})
	require.Equal(t, 10, f.At(1))
	require.Equal(t, 0, f.At(99), "At on a missing id must fall back to the default")
}

func TestSelfIsAt(t *testing.T) {
	f := FromPairs(0, []int{5}, []int{77})
	require.Equal(t, f.At(5), f.Self(5))
}

func TestAlignFillsMissingAndDropsExtra(t *testing.T) {
	f := FromPairs(-1, []int{1, 2, 3}, []int{10, 20, 30})
	out := Align(f, []int{2, 3, 4})
	require.Equal(t, 20, out.At(2))
	require.Equal(t, 30, out.At(3))
	require.Equal(t, -1, out.At(4), "Align must fill missing ids with the default")
	_, ok := out.Exceptions[1]
	require.False(t, ok, "Align must drop ids not in the restriction set")
}

func TestMap2UnionsDomainsAndFallsBackToDefault(t *testing.T) {
	f1 := FromPairs(1, []int{1, 2}, []int{10, 20})
	f2 := FromPairs(100, []int{2, 3}, []int{200, 300})
	out := Map2(lessInt, func(a, b int) int { return a + b }, f1, f2)

	require.Equal(t, 101, out.Default, "default must be op(defaults)")
	require.Equal(t, 110, out.At(1), "id 1: f1=10, f2 falls back to default 100")
	require.Equal(t, 220, out.At(2), "id 2: f1=20, f2=200")
	require.Equal(t, 301, out.At(3), "id 3: f1 falls back to default 1, f2=300")
}

func TestFoldMatchesLeftFold(t *testing.T) {
	f := FromPairs(0, []int{3, 1, 2}, []int{30, 10, 20})
	ids := []int{1, 2, 3} // ascending, as Context.Align guarantees

	got, err := Fold(func(acc, v int) int { return acc - v }, f, ids)
	require.NoError(t, err)
	want := f.Self(1)
	for _, id := range ids[1:] {
		want -= f.Self(id)
	}
	require.Equal(t, want, got)

	// Non-commutative op: order must matter and must follow ascending ids.
	concat, err := Fold(func(acc, v int) int { return acc*10 + v }, f, ids)
	require.NoError(t, err)
	require.Equal(t, 1230, concat, "Fold over ascending ids with non-commutative op")
}

func TestFoldOverEmptyDomainFails(t *testing.T) {
	f := Constant[int](0)
	_, err := Fold(func(a, b int) int { return a + b }, f, nil)
	require.ErrorIs(t, err, ErrEmptyFold)
}

func TestAllTrue(t *testing.T) {
	f := FromPairs(true, []int{1, 2}, []bool{true, false})
	require.False(t, AllTrue(f, []int{1, 2}), "AllTrue must be false when any aligned id is false")
	require.True(t, AllTrue(f, []int{1}), "AllTrue must be true when every aligned id is true")
}

func TestDomainIsSortedAscending(t *testing.T) {
	f := FromPairs(0, []int{5, 1, 3}, []int{0, 0, 0})
	ids := Domain(f)
	for i := 1; i < len(ids); i++ {
		require.Lessf(t, ids[i-1], ids[i], "Domain not strictly ascending: %v", ids)
	}
}

func TestConstantHasNoExceptions(t *testing.T) {
	f := Constant[int](9)
	require.Empty(t, f.Exceptions, "Constant must carry no exceptions")
	require.Equal(t, 9, f.At(123), "Constant field must return the same value for every id")
}

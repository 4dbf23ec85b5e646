package reactivex_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	rx "github.com/xinjiayu/reactivex"
	"github.com/xinjiayu/reactivex/rxtest"
)

// collectGroups 把每个组收集为键和元素列表
func collectGroups[K comparable, T any](groups rx.Observable[*rx.GroupedObservable[K, T]]) rx.Observable[rx.Pair[K, []T]] {
	return rx.FlatMap(func(g *rx.GroupedObservable[K, T]) rx.Observable[rx.Pair[K, []T]] {
		return rx.Map(func(items []T) (rx.Pair[K, []T], error) {
			return rx.Pair[K, []T]{First: g.Key, Second: items}, nil
		})(rx.ToList[T]()(g))
	})(groups)
}

func TestGroupBy(t *testing.T) {
	groups := rx.GroupBy(func(v int) int { return v % 3 })(rx.Range(0, 7, 1))
	require.Equal(t, []rx.Pair[int, []int]{
		{First: 0, Second: []int{0, 3, 6}},
		{First: 1, Second: []int{1, 4}},
		{First: 2, Second: []int{2, 5}},
	}, values(t, collectGroups(groups)))

	t.Run("转换组内元素", func(t *testing.T) {
		groups := rx.GroupByElement(func(s string) int { return len(s) }, func(s string) string {
			return s + "!"
		})(rx.Just("a", "bb", "c"))
		require.Equal(t, []rx.Pair[int, []string]{
			{First: 1, Second: []string{"a!", "c!"}},
			{First: 2, Second: []string{"bb!"}},
		}, values(t, collectGroups(groups)))
	})

	t.Run("源出错时组也出错", func(t *testing.T) {
		var groupErr error
		source := rx.Concat(rx.Just(1), rx.Throw[int](errBoom))
		_, err := valuesErr(t, rx.FlatMap(func(g *rx.GroupedObservable[int, int]) rx.Observable[int] {
			return rx.DoOnError[int](func(err error) { groupErr = err })(g)
		})(rx.GroupBy(func(v int) int { return v })(source)))
		require.ErrorIs(t, err, errBoom)
		require.ErrorIs(t, groupErr, errBoom)
	})
}

func TestGroupByUntil(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot[string](s, "-a-b-a---a|", nil, nil)

	results := rxtest.Start(s, func() rx.Observable[rx.Pair[string, int]] {
		groups := rx.GroupByUntil(func(v string) string { return v }, nil,
			func(*rx.GroupedObservable[string, string]) rx.Observable[int] {
				return rx.Timer(25, 0)
			})(xs)
		return rx.FlatMap(func(g *rx.GroupedObservable[string, string]) rx.Observable[rx.Pair[string, int]] {
			return rx.Map(func(n int) (rx.Pair[string, int], error) {
				return rx.Pair[string, int]{First: g.Key, Second: n}, nil
			})(rx.Count[string](nil)(g))
		})(groups)
	})

	require.Equal(t, []rxtest.Recorded[rx.Pair[string, int]]{
		rxtest.OnNext(235, rx.Pair[string, int]{First: "a", Second: 1}),
		rxtest.OnNext(255, rx.Pair[string, int]{First: "b", Second: 1}),
		rxtest.OnNext(275, rx.Pair[string, int]{First: "a", Second: 1}),
		rxtest.OnNext(300, rx.Pair[string, int]{First: "a", Second: 1}),
		rxtest.OnCompleted[rx.Pair[string, int]](300),
	}, results.Messages())
}

func TestWindowWithCount(t *testing.T) {
	source := rx.Range(0, 10, 1)

	flattened := rx.MergeAll[int](0)(rx.WindowWithCount[int](3, 0)(source))
	require.Equal(t, values(t, source), values(t, flattened))

	windows := rx.FlatMap(func(w rx.Observable[int]) rx.Observable[[]int] {
		return rx.ToList[int]()(w)
	})(rx.WindowWithCount[int](3, 0)(source))
	require.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, {9}}, values(t, windows))

	_, err := valuesErr(t, rx.WindowWithCount[int](0, 0)(source))
	require.ErrorIs(t, err, rx.ErrArgumentOutOfRange)
}

func TestBufferWithCount(t *testing.T) {
	source := rx.Range(0, 5, 1)
	require.Equal(t, [][]int{{0, 1}, {2, 3}, {4}}, values(t, rx.BufferWithCount[int](2, 0)(source)))
	require.Equal(t, [][]int{{0, 1, 2}, {1, 2, 3}, {2, 3, 4}, {3, 4}, {4}}, values(t, rx.BufferWithCount[int](3, 1)(source)))
	require.Equal(t, [][]int{{0}, {2}, {4}}, values(t, rx.BufferWithCount[int](1, 2)(source)))
}

func TestBufferWithBoundaries(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot[string](s, "-a-b-c-d|", nil, nil)
	boundaries := rxtest.Hot[string](s, "----x", nil, nil)

	results := rxtest.Start(s, func() rx.Observable[[]string] {
		return rx.Buffer[string](boundaries)(xs)
	})
	require.Equal(t, []rxtest.Recorded[[]string]{
		rxtest.OnNext(240, []string{"a", "b"}),
		rxtest.OnNext(280, []string{"c", "d"}),
		rxtest.OnCompleted[[]string](280),
	}, results.Messages())
}

func TestExpand(t *testing.T) {
	out := values(t, rx.Expand(func(v int) rx.Observable[int] {
		if v >= 8 {
			return rx.Empty[int]()
		}
		return rx.Just(v * 2)
	})(rx.Just(1)))
	require.Equal(t, []int{1, 2, 4, 8}, out)
}

func TestJoin(t *testing.T) {
	s := rxtest.NewTestScheduler()
	left := rxtest.Hot[string](s, "-a---b---|", nil, nil)
	right := rxtest.Hot[int](s, "--1----2|", nil, nil)

	results := rxtest.Start(s, func() rx.Observable[rx.Pair[string, int]] {
		return rx.Join(right,
			func(string) rx.Observable[int] { return rx.Timer(30, 0) },
			func(int) rx.Observable[int] { return rx.Timer(5, 0) },
		)(left)
	})
	require.Equal(t, []rxtest.Recorded[rx.Pair[string, int]]{
		rxtest.OnNext(220, rx.Pair[string, int]{First: "a", Second: 1}),
		rxtest.OnNext(270, rx.Pair[string, int]{First: "b", Second: 2}),
		rxtest.OnCompleted[rx.Pair[string, int]](280),
	}, results.Messages())
}

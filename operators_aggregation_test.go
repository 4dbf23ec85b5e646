package reactivex_test

import (
	"cmp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	rx "github.com/xinjiayu/reactivex"
)

func TestReduce(t *testing.T) {
	sum := func(acc, v int) (int, error) { return acc + v, nil }
	require.Equal(t, []int{10}, values(t, rx.Reduce(sum, 0)(rx.Range(1, 5, 1))))
	require.Equal(t, []int{42}, values(t, rx.Reduce(sum, 42)(rx.Empty[int]())))

	joined := rx.Reduce(func(acc string, v string) (string, error) { return acc + v, nil }, ">")(rx.Just("a", "b"))
	require.Equal(t, []string{">ab"}, values(t, joined))
}

func TestCountSumAverage(t *testing.T) {
	source := rx.Just(1, 2, 3, 4)
	require.Equal(t, []int{4}, values(t, rx.Count[int](nil)(source)))
	require.Equal(t, []int{2}, values(t, rx.Count(isEven)(source)))
	require.Equal(t, []int{10}, values(t, rx.Sum[int]()(source)))
	require.Equal(t, []float64{2.5}, values(t, rx.Average[int]()(source)))
	require.Equal(t, []float64{0.5}, values(t, rx.Sum[float64]()(rx.Just(0.25, 0.25))))

	_, err := valuesErr(t, rx.Average[int]()(rx.Empty[int]()))
	require.ErrorIs(t, err, rx.ErrSequenceContainsNoElements)
}

func TestMinMax(t *testing.T) {
	source := rx.Just(3, 1, 4, 1, 5)
	require.Equal(t, []int{1}, values(t, rx.Min[int]()(source)))
	require.Equal(t, []int{5}, values(t, rx.Max[int]()(source)))

	words := rx.Just("kiwi", "fig", "banana")
	byLen := func(a, b string) int { return cmp.Compare(len(a), len(b)) }
	require.Equal(t, []string{"fig"}, values(t, rx.MinBy(byLen)(words)))
	require.Equal(t, []string{"banana"}, values(t, rx.MaxBy(byLen)(words)))

	_, err := valuesErr(t, rx.Max[int]()(rx.Empty[int]()))
	require.ErrorIs(t, err, rx.ErrSequenceContainsNoElements)
}

func TestToCollections(t *testing.T) {
	source := rx.Just("b", "a", "b")

	require.Equal(t, [][]string{{"b", "a", "b"}}, values(t, rx.ToList[string]()(source)))
	require.Equal(t, [][]string{{}}, values(t, rx.ToList[string]()(rx.Empty[string]())))
	require.Equal(t, []map[string]struct{}{{"a": {}, "b": {}}}, values(t, rx.ToSet[string]()(source)))

	upper := rx.ToMap(func(s string) string { return s }, strings.ToUpper)(source)
	require.Equal(t, []map[string]string{{"a": "A", "b": "B"}}, values(t, upper))
}

func TestBooleanAggregates(t *testing.T) {
	source := rx.Just(2, 4, 5)

	require.Equal(t, []bool{false}, values(t, rx.All(isEven)(source)))
	require.Equal(t, []bool{true}, values(t, rx.All(isEven)(rx.Just(2, 4))))
	require.Equal(t, []bool{true}, values(t, rx.Some(func(v int) bool { return v > 4 })(source)))
	require.Equal(t, []bool{false}, values(t, rx.Some[int](nil)(rx.Empty[int]())))
	require.Equal(t, []bool{true}, values(t, rx.Contains(4)(source)))
	require.Equal(t, []bool{false}, values(t, rx.Contains(7)(source)))
	require.Equal(t, []bool{true}, values(t, rx.IsEmpty[int]()(rx.Empty[int]())))
	require.Equal(t, []bool{false}, values(t, rx.IsEmpty[int]()(source)))
}

func TestSequenceEqual(t *testing.T) {
	cases := []struct {
		name   string
		first  rx.Observable[int]
		second rx.Observable[int]
		want   bool
	}{
		{"相同", rx.Just(1, 2, 3), rx.Just(1, 2, 3), true},
		{"值不同", rx.Just(1, 2, 3), rx.Just(1, 5, 3), false},
		{"第二个更长", rx.Just(1, 2), rx.Just(1, 2, 3), false},
		{"第一个更长", rx.Just(1, 2, 3), rx.Just(1, 2), false},
		{"都为空", rx.Empty[int](), rx.Empty[int](), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, []bool{c.want}, values(t, rx.SequenceEqual(c.second, nil)(c.first)))
		})
	}
}

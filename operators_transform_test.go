package reactivex_test

import (
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	rx "github.com/xinjiayu/reactivex"
)

func TestMap(t *testing.T) {
	doubled := rx.Map(func(v int) (int, error) { return v * 2, nil })(rx.Just(1, 2, 3))
	require.Equal(t, []int{2, 4, 6}, values(t, doubled))

	t.Run("mapper出错终止序列", func(t *testing.T) {
		out, err := valuesErr(t, rx.Map(func(v int) (string, error) {
			if v == 2 {
				return "", errBoom
			}
			return strconv.Itoa(v), nil
		})(rx.Just(1, 2, 3)))
		require.ErrorIs(t, err, errBoom)
		require.Equal(t, []string{"1"}, out)
	})

	t.Run("mapper的panic转换为错误", func(t *testing.T) {
		_, err := valuesErr(t, rx.Map(func(v int) (int, error) {
			panic(errBoom)
		})(rx.Just(1)))
		require.ErrorIs(t, err, errBoom)
	})
}

func TestMapIndexed(t *testing.T) {
	out := values(t, rx.MapIndexed(func(v string, i int) (string, error) {
		return strconv.Itoa(i) + v, nil
	})(rx.Just("a", "b", "c")))
	require.Equal(t, []string{"0a", "1b", "2c"}, out)
}

func TestOfTypeAndCast(t *testing.T) {
	mixed := rx.Just[any](1, "two", 3, 4.0)
	require.Equal(t, []int{1, 3}, values(t, rx.OfType[any, int]()(mixed)))

	out, err := valuesErr(t, rx.Cast[any, int]()(mixed))
	require.Equal(t, []int{1}, out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot cast string to int")
}

func TestScan(t *testing.T) {
	sums := rx.Scan(func(acc, v int) (int, error) { return acc + v, nil }, 0)(rx.Just(1, 2, 3, 4))
	require.Equal(t, []int{1, 3, 6, 10}, values(t, sums))

	t.Run("每次订阅从种子重新开始", func(t *testing.T) {
		require.Equal(t, []int{1, 3, 6, 10}, values(t, sums))
	})

	t.Run("累积器出错", func(t *testing.T) {
		_, err := valuesErr(t, rx.Scan(func(acc, v int) (int, error) {
			if v > 1 {
				return 0, errBoom
			}
			return acc + v, nil
		}, 0)(rx.Just(1, 2)))
		require.ErrorIs(t, err, errBoom)
	})
}

func TestPairwise(t *testing.T) {
	require.Equal(t, [][2]int{{1, 2}, {2, 3}}, values(t, rx.Pairwise[int]()(rx.Just(1, 2, 3))))
	require.Empty(t, values(t, rx.Pairwise[int]()(rx.Just(1))))
}

func TestStartWithEndWith(t *testing.T) {
	out := rx.Pipe(rx.Just(2, 3), rx.StartWith(0, 1), rx.EndWith(4))
	require.Equal(t, []int{0, 1, 2, 3, 4}, values(t, out))
}

func TestDefaultIfEmpty(t *testing.T) {
	require.Equal(t, []int{7}, values(t, rx.DefaultIfEmpty(7)(rx.Empty[int]())))
	require.Equal(t, []int{1}, values(t, rx.DefaultIfEmpty(7)(rx.Just(1))))
}

func TestIgnoreElements(t *testing.T) {
	require.Empty(t, values(t, rx.IgnoreElements[int]()(rx.Just(1, 2, 3))))

	_, err := valuesErr(t, rx.IgnoreElements[int]()(rx.Throw[int](errBoom)))
	require.ErrorIs(t, err, errBoom)
}

func TestMaterializeDematerialize(t *testing.T) {
	materialized := values(t, rx.Materialize[int]()(rx.Just(1, 2)))
	require.Equal(t, []rx.Notification[int]{
		rx.NextNotification(1),
		rx.NextNotification(2),
		rx.CompletedNotification[int](),
	}, materialized)

	failed := values(t, rx.Materialize[int]()(rx.Throw[int](errBoom)))
	require.Equal(t, []rx.Notification[int]{rx.ErrorNotification[int](errBoom)}, failed)

	t.Run("往返保持原序列", func(t *testing.T) {
		sources := map[string]rx.Observable[int]{
			"values": rx.Just(1, 2, 3),
			"empty":  rx.Empty[int](),
			"error":  rx.Concat(rx.Just(1), rx.Throw[int](errBoom)),
		}
		for name, source := range sources {
			t.Run(name, func(t *testing.T) {
				want, wantErr := valuesErr(t, source)
				got, gotErr := valuesErr(t, rx.Pipe2(source, rx.Materialize[int](), rx.Dematerialize[int]()))
				require.Equal(t, want, got)
				require.Equal(t, errors.Cause(wantErr), errors.Cause(gotErr))
			})
		}
	})
}

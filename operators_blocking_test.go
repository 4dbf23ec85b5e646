package reactivex_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	rx "github.com/xinjiayu/reactivex"
)

func TestToChannel(t *testing.T) {
	var kinds []rx.NotificationKind
	for n := range rx.ToChannel(t.Context(), rx.Just(1, 2)) {
		kinds = append(kinds, n.Kind)
	}
	require.Equal(t, []rx.NotificationKind{rx.KindNext, rx.KindNext, rx.KindCompleted}, kinds)

	t.Run("取消后关闭通道", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		ch := rx.ToChannel(ctx, rx.Never[int]())
		cancel()

		select {
		case _, ok := <-ch:
			require.False(t, ok)
		case <-time.After(5 * time.Second):
			t.Fatal("channel not closed after cancel")
		}
	})
}

func TestToIterable(t *testing.T) {
	t.Run("提前停止释放订阅", func(t *testing.T) {
		disposed := make(chan struct{})
		source := rx.DoOnDispose[int](func() { close(disposed) })(rx.Interval(time.Millisecond))

		var got []int
		for v, err := range rx.ToIterable(t.Context(), source) {
			require.NoError(t, err)
			got = append(got, v)
			if len(got) == 2 {
				break
			}
		}
		require.Equal(t, []int{0, 1}, got)

		select {
		case <-disposed:
		case <-time.After(5 * time.Second):
			t.Fatal("subscription not disposed")
		}
	})

	t.Run("错误作为最后一项", func(t *testing.T) {
		var errs []error
		for _, err := range rx.ToIterable(t.Context(), rx.Concat(rx.Just(1), rx.Throw[int](errBoom))) {
			errs = append(errs, err)
		}
		require.Len(t, errs, 2)
		require.NoError(t, errs[0])
		require.ErrorIs(t, errs[1], errBoom)
	})
}

func TestBlockingResults(t *testing.T) {
	ctx := t.Context()

	first, err := rx.BlockingFirst(ctx, rx.Just(4, 5, 6))
	require.NoError(t, err)
	require.Equal(t, 4, first)

	last, err := rx.BlockingLast(ctx, rx.Just(4, 5, 6))
	require.NoError(t, err)
	require.Equal(t, 6, last)

	_, err = rx.BlockingFirst(ctx, rx.Empty[int]())
	require.ErrorIs(t, err, rx.ErrSequenceContainsNoElements)
	_, err = rx.BlockingLast(ctx, rx.Empty[int]())
	require.ErrorIs(t, err, rx.ErrSequenceContainsNoElements)

	_, err = rx.BlockingLast(ctx, rx.Concat(rx.Just(1), rx.Throw[int](errBoom)))
	require.ErrorIs(t, err, errBoom)

	out, err := rx.BlockingToSlice(ctx, rx.Empty[int]())
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Empty(t, out)

	partial, err := rx.BlockingToSlice(ctx, rx.Concat(rx.Just(1, 2), rx.Throw[int](errBoom)))
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, []int{1, 2}, partial)
}

func TestBlockingForEach(t *testing.T) {
	sum := 0
	require.NoError(t, rx.BlockingForEach(t.Context(), rx.Range(1, 5, 1), func(v int) { sum += v }))
	require.Equal(t, 10, sum)

	err := rx.BlockingForEach(t.Context(), rx.Throw[int](errBoom), func(int) {})
	require.ErrorIs(t, err, errBoom)
}

func TestBlockingSubscribe(t *testing.T) {
	var got []int
	completed := false
	err := rx.BlockingSubscribe(t.Context(), rx.Just(1, 2), rx.NewObserver(func(v int) {
		got = append(got, v)
	}, nil, func() {
		completed = true
	}))
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)
	require.True(t, completed)

	t.Run("超时", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()
		err := rx.BlockingSubscribe(ctx, rx.Never[int](), rx.NewObserver[int](nil, nil, nil))
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

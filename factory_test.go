package reactivex_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	rx "github.com/xinjiayu/reactivex"
	"github.com/xinjiayu/reactivex/rxtest"
)

func TestBasicFactories(t *testing.T) {
	require.Equal(t, []int{5}, values(t, rx.Return(5)))
	require.Empty(t, values(t, rx.Empty[int]()))
	require.Equal(t, []string{"x", "x", "x"}, values(t, rx.Repeat("x", 3)))
	require.Equal(t, []int{1, 2}, values(t, rx.FromSlice([]int{1, 2})))

	_, err := valuesErr(t, rx.Throw[int](errBoom))
	require.ErrorIs(t, err, errBoom)

	s := rxtest.NewTestScheduler()
	never := rxtest.Start(s, rx.Never[int])
	require.Empty(t, never.Messages())
}

func TestRange(t *testing.T) {
	require.Equal(t, []int{0, 2, 4}, values(t, rx.Range(0, 5, 2)))
	require.Equal(t, []int{5, 3, 1}, values(t, rx.Range(5, 0, -2)))
	require.Empty(t, values(t, rx.Range(3, 3, 1)))

	_, err := valuesErr(t, rx.Range(0, 1, 0))
	require.ErrorIs(t, err, rx.ErrArgumentOutOfRange)
}

func TestFromIterableRoundTrip(t *testing.T) {
	items := []string{"a", "b", "c"}
	source := rx.FromIterable(func(yield func(string) bool) {
		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	})

	var got []string
	for v, err := range rx.ToIterable(t.Context(), source) {
		require.NoError(t, err)
		got = append(got, v)
	}
	require.Equal(t, items, got)

	t.Run("迭代器panic", func(t *testing.T) {
		_, err := valuesErr(t, rx.FromIterable(func(yield func(int) bool) {
			yield(1)
			panic(errBoom)
		}))
		require.ErrorIs(t, err, errBoom)
	})
}

func TestFromChannel(t *testing.T) {
	ch := make(chan int, 3)
	ch <- 1
	ch <- 2
	ch <- 3
	close(ch)
	require.Equal(t, []int{1, 2, 3}, values(t, rx.FromChannel(ch)))

	notifications := make(chan rx.Notification[int], 3)
	notifications <- rx.NextNotification(1)
	notifications <- rx.ErrorNotification[int](errBoom)
	notifications <- rx.NextNotification(2)
	out, err := valuesErr(t, rx.FromNotificationChannel(notifications))
	require.Equal(t, []int{1}, out)
	require.ErrorIs(t, err, errBoom)
}

func TestFromFutureAndStart(t *testing.T) {
	calls := 0
	future := rx.FromFuture(func() (int, error) {
		calls++
		return 42, nil
	})
	require.Equal(t, []int{42}, values(t, future))
	require.Equal(t, []int{42}, values(t, future))
	require.Equal(t, 2, calls)

	started := 0
	s := rxtest.NewTestScheduler()
	cached := rx.Start(func() (int, error) {
		started++
		return 7, nil
	}, rx.WithScheduler(s))
	s.Start()
	require.Equal(t, []int{7}, values(t, cached))
	require.Equal(t, []int{7}, values(t, cached))
	require.Equal(t, 1, started)

	_, err := valuesErr(t, rx.FromFuture(func() (int, error) { return 0, errBoom }))
	require.ErrorIs(t, err, errBoom)
}

func TestTimer(t *testing.T) {
	s := rxtest.NewTestScheduler()
	results := rxtest.Start(s, func() rx.Observable[int] {
		return rx.Timer(30, 0)
	})
	require.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(230, 0),
		rxtest.OnCompleted[int](230),
	}, results.Messages())

	t.Run("先延迟再周期", func(t *testing.T) {
		s := rxtest.NewTestScheduler()
		results := rxtest.Start(s, func() rx.Observable[int] {
			return rx.Take[int](3)(rx.Timer(30, 10))
		})
		require.Equal(t, []rxtest.Recorded[int]{
			rxtest.OnNext(230, 0),
			rxtest.OnNext(240, 1),
			rxtest.OnNext(250, 2),
			rxtest.OnCompleted[int](250),
		}, results.Messages())
	})

	t.Run("绝对时刻", func(t *testing.T) {
		s := rxtest.NewTestScheduler()
		results := rxtest.Start(s, func() rx.Observable[int] {
			return rx.TimerAt(rxtest.TimeOf(205), 0)
		})
		require.Equal(t, []rxtest.Recorded[int]{
			rxtest.OnNext(205, 0),
			rxtest.OnCompleted[int](205),
		}, results.Messages())
	})
}

func TestCron(t *testing.T) {
	s := rxtest.NewTestScheduler()
	observer := rxtest.CreateObserver[time.Time](s)
	d := rx.Cron("*/5 * * * * * *").Subscribe(observer, s)
	s.AdvanceTo(rxtest.TimeOf(int64(12 * time.Second)))
	d.Dispose()

	var fired []time.Duration
	for _, v := range observer.Values() {
		fired = append(fired, v.Sub(rxtest.Epoch))
	}
	require.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, fired)

	_, err := valuesErr(t, rx.Cron("not a cron"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid cron expression")
}

func TestGenerate(t *testing.T) {
	out := rx.Generate(0, func(i int) bool { return i < 5 }, func(i int) int { return i + 1 })
	require.Equal(t, []int{0, 1, 2, 3, 4}, values(t, out))

	s := rxtest.NewTestScheduler()
	results := rxtest.Start(s, func() rx.Observable[int] {
		return rx.GenerateWithRelativeTime(1,
			func(i int) bool { return i <= 3 },
			func(i int) int { return i + 1 },
			func(i int) time.Duration { return time.Duration(i * 10) },
		)
	})
	require.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(210, 1),
		rxtest.OnNext(230, 2),
		rxtest.OnNext(260, 3),
		rxtest.OnCompleted[int](260),
	}, results.Messages())
}

func TestDeferAndUsing(t *testing.T) {
	_, err := valuesErr(t, rx.Defer(func(rx.Scheduler) (rx.Observable[int], error) {
		return nil, errBoom
	}))
	require.ErrorIs(t, err, errBoom)

	released := false
	used := rx.Using(func() (rx.Disposable, error) {
		return rx.NewDisposable(func() { released = true }), nil
	}, func(rx.Disposable) (rx.Observable[int], error) {
		return rx.Just(1, 2), nil
	})
	require.Equal(t, []int{1, 2}, values(t, used))
	require.True(t, released)

	failed := rx.Using(func() (rx.Disposable, error) {
		return nil, errors.New("no resource")
	}, func(rx.Disposable) (rx.Observable[int], error) {
		return rx.Just(1), nil
	})
	_, err = valuesErr(t, failed)
	require.EqualError(t, err, "no resource")
}

func TestConditionalFactories(t *testing.T) {
	flag := true
	source := rx.IfThen(func() bool { return flag }, rx.Just(1), rx.Just(2))
	require.Equal(t, []int{1}, values(t, source))
	flag = false
	require.Equal(t, []int{2}, values(t, source))
	require.Empty(t, values(t, rx.IfThen(func() bool { return false }, rx.Just(1), nil)))

	key := "b"
	selected := rx.Case(func() string { return key }, map[string]rx.Observable[int]{
		"a": rx.Just(1),
		"b": rx.Just(2),
	}, rx.Just(0))
	require.Equal(t, []int{2}, values(t, selected))
	key = "z"
	require.Equal(t, []int{0}, values(t, selected))

	out := rx.ForIn([]int{1, 2}, func(v int) rx.Observable[int] { return rx.Just(v, v) })
	require.Equal(t, []int{1, 1, 2, 2}, values(t, out))
}

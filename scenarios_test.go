package reactivex_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	rx "github.com/xinjiayu/reactivex"
	"github.com/xinjiayu/reactivex/rxtest"
)

// 以虚拟时间描述的端到端场景

func TestScenarioTakeUntilPreemption(t *testing.T) {
	s := rxtest.NewTestScheduler()
	source := rxtest.CreateHotObservable(s,
		rxtest.OnNext(150, 1),
		rxtest.OnNext(210, 2),
		rxtest.OnNext(220, 3),
		rxtest.OnNext(230, 4),
		rxtest.OnNext(240, 5),
		rxtest.OnCompleted[int](250),
	)
	trigger := rxtest.CreateHotObservable(s,
		rxtest.OnNext(225, "x"),
	)

	results := rxtest.Start(s, func() rx.Observable[int] {
		return rx.TakeUntil[int](trigger)(source)
	})

	require.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(210, 2),
		rxtest.OnNext(220, 3),
		rxtest.OnCompleted[int](225),
	}, results.Messages())
	require.Equal(t, []rxtest.Subscription{rxtest.Subscribe(200, 225)}, source.Subscriptions())
	require.Equal(t, []rxtest.Subscription{rxtest.Subscribe(200, 225)}, trigger.Subscriptions())
}

func TestScenarioCombineLatestWithSilentSource(t *testing.T) {
	s := rxtest.NewTestScheduler()
	a := rxtest.CreateHotObservable(s,
		rxtest.OnNext(215, 2),
		rxtest.OnNext(230, 3),
		rxtest.OnCompleted[int](240),
	)

	results := rxtest.Start(s, func() rx.Observable[[]int] {
		return rx.CombineLatest[int](a, rx.Never[int]())
	})

	require.Empty(t, results.Messages())
	require.Equal(t, []rxtest.Subscription{rxtest.Subscribe(200, 240)}, a.Subscriptions())
}

func TestScenarioZipFairInterleave(t *testing.T) {
	s := rxtest.NewTestScheduler()
	a := rxtest.CreateHotObservable(s,
		rxtest.OnNext(215, "a"),
		rxtest.OnNext(225, "b"),
		rxtest.OnCompleted[string](230),
	)
	b := rxtest.CreateHotObservable(s,
		rxtest.OnNext(220, 1),
		rxtest.OnNext(225, 2),
		rxtest.OnNext(230, 3),
		rxtest.OnCompleted[int](235),
	)

	results := rxtest.Start(s, func() rx.Observable[rx.Pair[string, int]] {
		return rx.Zip2[string, int](a, b, func(x string, y int) rx.Pair[string, int] {
			return rx.Pair[string, int]{First: x, Second: y}
		})
	})

	require.Equal(t, []rxtest.Recorded[rx.Pair[string, int]]{
		rxtest.OnNext(220, rx.Pair[string, int]{First: "a", Second: 1}),
		rxtest.OnNext(225, rx.Pair[string, int]{First: "b", Second: 2}),
		rxtest.OnCompleted[rx.Pair[string, int]](230),
	}, results.Messages())
	require.Equal(t, []rxtest.Subscription{rxtest.Subscribe(200, 230)}, b.Subscriptions())
}

func TestScenarioSwitchMapCancelsInner(t *testing.T) {
	s := rxtest.NewTestScheduler()
	outer := rxtest.CreateHotObservable(s,
		rxtest.OnNext(300, "a"),
		rxtest.OnNext(400, "b"),
	)

	type tick = rx.Pair[int, string]
	results := rxtest.StartWith(s, func() rx.Observable[tick] {
		return rx.SwitchMap(func(x string) rx.Observable[tick] {
			return rx.Map(func(j int) (tick, error) {
				return tick{First: j, Second: x}, nil
			})(rx.Interval(20))
		})(outer)
	}, rxtest.Created, rxtest.Subscribed, 425)

	require.Equal(t, []rxtest.Recorded[tick]{
		rxtest.OnNext(320, tick{First: 0, Second: "a"}),
		rxtest.OnNext(340, tick{First: 1, Second: "a"}),
		rxtest.OnNext(360, tick{First: 2, Second: "a"}),
		rxtest.OnNext(380, tick{First: 3, Second: "a"}),
		rxtest.OnNext(420, tick{First: 0, Second: "b"}),
	}, results.Messages())
}

func TestScenarioReplayBufferWindow(t *testing.T) {
	s := rxtest.NewTestScheduler()
	subject := rx.NewReplaySubject[int](rx.WithBufferSize(3), rx.WithScheduler(s))

	for i := 1; i <= 5; i++ {
		value := i
		s.ScheduleAt(200+int64(value)*10, func() { subject.OnNext(value) })
	}

	observer := rxtest.CreateObserver[int](s)
	s.ScheduleAt(260, func() { subject.Subscribe(observer, s) })
	s.Start()

	require.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(260, 3),
		rxtest.OnNext(260, 4),
		rxtest.OnNext(260, 5),
	}, observer.Messages())
}

func TestScenarioDelayShiftsCompletion(t *testing.T) {
	s := rxtest.NewTestScheduler()
	source := rxtest.CreateHotObservable(s,
		rxtest.OnNext(250, 2),
		rxtest.OnNext(350, 3),
		rxtest.OnCompleted[int](450),
	)

	results := rxtest.Start(s, func() rx.Observable[int] {
		return rx.Delay[int](100)(source)
	})

	require.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(350, 2),
		rxtest.OnNext(450, 3),
		rxtest.OnCompleted[int](550),
	}, results.Messages())
	require.Equal(t, []rxtest.Subscription{rxtest.Subscribe(200, 450)}, source.Subscriptions())
}

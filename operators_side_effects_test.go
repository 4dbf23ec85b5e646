package reactivex_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	rx "github.com/xinjiayu/reactivex"
)

func TestDoAction(t *testing.T) {
	var events []string
	source := rx.DoAction(func(v int) {
		events = append(events, "next")
	}, func(error) {
		events = append(events, "error")
	}, func() {
		events = append(events, "completed")
	})(rx.Just(1, 2))

	require.Equal(t, []int{1, 2}, values(t, source))
	require.Equal(t, []string{"next", "next", "completed"}, events)

	t.Run("回调panic终止序列", func(t *testing.T) {
		_, err := valuesErr(t, rx.DoOnNext(func(int) { panic(errBoom) })(rx.Just(1)))
		require.ErrorIs(t, err, errBoom)
	})
}

func TestDoOnEach(t *testing.T) {
	var seen []rx.Notification[int]
	source := rx.DoOnEach(func(n rx.Notification[int]) { seen = append(seen, n) })(
		rx.Concat(rx.Just(1), rx.Throw[int](errBoom)))

	_, err := valuesErr(t, source)
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, []rx.Notification[int]{
		rx.NextNotification(1),
		rx.ErrorNotification[int](errBoom),
	}, seen)
}

func TestDoOrdering(t *testing.T) {
	var events []string
	record := func(e string) func() { return func() { events = append(events, e) } }

	source := rx.Pipe(rx.Just(1),
		rx.DoOnSubscribe[int](record("subscribe")),
		rx.DoOnTerminate[int](record("terminate")),
		rx.DoAfterTerminate[int](record("after terminate")),
		rx.DoAfterNext(func(int) { events = append(events, "after next") }),
	)
	source.SubscribeWithCallbacks(func(int) {
		events = append(events, "next")
	}, nil, func() {
		events = append(events, "completed")
	})

	require.Equal(t, []string{"subscribe", "next", "after next", "terminate", "completed", "after terminate"}, events)
}

func TestFinally(t *testing.T) {
	count := 0
	values(t, rx.Finally[int](func() { count++ })(rx.Just(1, 2)))
	require.Equal(t, 1, count)

	t.Run("释放时执行一次", func(t *testing.T) {
		count := 0
		subject := rx.NewSubject[int]()
		d := rx.Finally[int](func() { count++ })(subject).SubscribeWithCallbacks(nil, nil, nil)
		require.Equal(t, 0, count)
		d.Dispose()
		d.Dispose()
		require.Equal(t, 1, count)
	})

	t.Run("DoOnDispose", func(t *testing.T) {
		disposed := false
		subject := rx.NewSubject[int]()
		d := rx.DoOnDispose[int](func() { disposed = true })(subject).SubscribeWithCallbacks(nil, nil, nil)
		d.Dispose()
		require.True(t, disposed)
	})
}

func TestLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	out := values(t, rx.Log[int]("numbers", rx.WithLogger(zap.New(core)))(rx.Just(1, 2)))
	require.Equal(t, []int{1, 2}, out)

	var messages []string
	for _, entry := range logs.All() {
		messages = append(messages, entry.Message)
		require.Equal(t, "numbers", entry.ContextMap()["observable"])
	}
	require.Equal(t, []string{"subscribe", "on next", "on next", "on completed", "dispose"}, messages)
	require.Equal(t, int64(2), logs.FilterMessage("on next").All()[1].ContextMap()["value"])
}

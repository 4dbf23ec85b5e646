package rxtest

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/xinjiayu/reactivex"
)

func TestParseMarbles(t *testing.T) {
	t.Run("值与完成", func(t *testing.T) {
		messages, err := ParseMarbles[string]("-a-b-|", nil, nil)
		require.NoError(t, err)
		require.Equal(t, []Recorded[string]{
			OnNext(10, "a"),
			OnNext(30, "b"),
			OnCompleted[string](50),
		}, messages)
	})

	t.Run("空白被忽略", func(t *testing.T) {
		messages, err := ParseMarbles[string]("- a - b -|", nil, nil)
		require.NoError(t, err)
		require.Equal(t, []Recorded[string]{
			OnNext(10, "a"),
			OnNext(30, "b"),
			OnCompleted[string](50),
		}, messages)
	})

	t.Run("多字符元素占用多帧", func(t *testing.T) {
		messages, err := ParseMarbles[int]("12-3|", nil, nil, WithFrame(1))
		require.NoError(t, err)
		require.Equal(t, []Recorded[int]{
			OnNext(0, 12),
			OnNext(3, 3),
			OnCompleted[int](4),
		}, messages)
	})

	t.Run("组内元素共享时刻", func(t *testing.T) {
		messages, err := ParseMarbles[string]("-(ab)-(c,d,|)", nil, nil)
		require.NoError(t, err)
		require.Equal(t, []Recorded[string]{
			OnNext(10, "a"),
			OnNext(10, "b"),
			OnNext(60, "c"),
			OnNext(60, "d"),
			OnCompleted[string](60),
		}, messages)
	})

	t.Run("错误与查找表", func(t *testing.T) {
		boom := errors.New("boom")
		messages, err := ParseMarbles("a-#", map[string]int{"a": 42}, boom, WithTimeShift(100))
		require.NoError(t, err)
		require.Equal(t, []Recorded[int]{
			OnNext(100, 42),
			OnError[int](120, boom),
		}, messages)
	})

	t.Run("默认错误", func(t *testing.T) {
		messages, err := ParseMarbles[string]("#", nil, nil)
		require.NoError(t, err)
		require.Equal(t, []Recorded[string]{OnError[string](0, ErrMarble)}, messages)
	})

	t.Run("any字面量", func(t *testing.T) {
		messages, err := ParseMarbles[any]("1-2.5-x", nil, nil, WithFrame(1))
		require.NoError(t, err)
		require.Equal(t, []Recorded[any]{
			OnNext[any](0, 1),
			OnNext[any](2, 2.5),
			OnNext[any](6, "x"),
		}, messages)
	})

	t.Run("订阅点", func(t *testing.T) {
		messages, err := ParseMarbles[string]("a-^-b", nil, nil, WithTimeShift(200))
		require.NoError(t, err)
		require.Equal(t, []Recorded[string]{
			OnNext(180, "a"),
			OnNext(220, "b"),
		}, messages)
	})
}

func TestParseMarblesInvalid(t *testing.T) {
	for _, marbles := range []string{
		"a,b",
		"-(a-",
		"-a)-",
		"-|-a",
		"^-^",
	} {
		_, err := ParseMarbles[string](marbles, nil, nil)
		require.ErrorIs(t, err, ErrInvalidMarbles, marbles)
	}

	_, err := ParseMarbles[int]("x", nil, nil)
	require.ErrorIs(t, err, ErrInvalidMarbles)

	_, err = ParseMarbles[struct{}]("x", nil, nil)
	require.ErrorIs(t, err, ErrInvalidMarbles)
}

func TestToMarbles(t *testing.T) {
	messages := []Recorded[string]{
		OnNext(10, "a"),
		OnNext(30, "b"),
		OnNext(50, "c"),
		OnNext(50, "d"),
		OnCompleted[string](50),
	}
	marbles := ToMarbles(messages)
	require.Equal(t, "-a-b-(c,d,|)", marbles)

	parsed, err := ParseMarbles[string](marbles, nil, nil)
	require.NoError(t, err)
	require.Equal(t, messages, parsed)
}

func TestToMarblesShift(t *testing.T) {
	messages := []Recorded[int]{
		OnNext(210, 1),
		OnError[int](240, ErrMarble),
	}
	require.Equal(t, "-1--#", ToMarbles(messages, WithTimeShift(200)))
}

func TestHotAndColdMarbles(t *testing.T) {
	s := NewTestScheduler()
	xs := Hot[string](s, "a-^-b-c-|", nil, nil)
	ys := Cold[string](s, "--x|", nil, nil)

	results := Start(s, func() reactivex.Observable[string] {
		return reactivex.Concat[string](xs, ys)
	})

	require.Equal(t, []Recorded[string]{
		OnNext(220, "b"),
		OnNext(240, "c"),
		OnNext(280, "x"),
		OnCompleted[string](290),
	}, results.Messages())
	require.Equal(t, []Subscription{Subscribe(200, 260)}, xs.Subscriptions())
	require.Equal(t, []Subscription{Subscribe(260, 290)}, ys.Subscriptions())
}

func TestExpectedMessages(t *testing.T) {
	require.Equal(t, []Recorded[string]{
		OnNext(220, "b"),
		OnCompleted[string](240),
	}, ExpectedMessages[string]("^-b-|", nil, nil))
	require.Equal(t, []Recorded[string]{
		OnNext(210, "b"),
	}, ExpectedMessages[string]("-b", nil, nil))
}

func TestColdRejectsSubscriptionPoint(t *testing.T) {
	s := NewTestScheduler()
	require.Panics(t, func() {
		Cold[string](s, "-^-a", nil, nil)
	})
}

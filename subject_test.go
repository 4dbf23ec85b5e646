package reactivex

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// recorder 记录通知的观察者
type recorder[T any] struct {
	mu            sync.Mutex
	notifications []Notification[T]
}

func (r *recorder[T]) OnNext(value T) { r.add(NextNotification(value)) }

func (r *recorder[T]) OnError(err error) { r.add(ErrorNotification[T](err)) }

func (r *recorder[T]) OnCompleted() { r.add(CompletedNotification[T]()) }

func (r *recorder[T]) add(n Notification[T]) {
	r.mu.Lock()
	r.notifications = append(r.notifications, n)
	r.mu.Unlock()
}

func (r *recorder[T]) values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	var values []T
	for _, n := range r.notifications {
		if n.Kind == KindNext {
			values = append(values, n.Value)
		}
	}
	return values
}

func (r *recorder[T]) all() []Notification[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification[T](nil), r.notifications...)
}

// ============================================================================
// Subject
// ============================================================================

func TestSubject(t *testing.T) {
	t.Run("多个订阅者同时接收", func(t *testing.T) {
		subject := NewSubject[int]()
		a, b := &recorder[int]{}, &recorder[int]{}

		subject.Subscribe(a, nil)
		subject.OnNext(1)
		subject.Subscribe(b, nil)
		subject.OnNext(2)
		subject.OnCompleted()

		require.Equal(t, []int{1, 2}, a.values())
		require.Equal(t, []int{2}, b.values())
		require.Equal(t, KindCompleted, b.all()[1].Kind)
		require.Equal(t, 0, subject.ObserverCount())
	})

	t.Run("终止后订阅立即收到终止通知", func(t *testing.T) {
		boom := errors.New("boom")
		subject := NewSubject[int]()
		subject.OnError(boom)
		subject.OnNext(1)

		r := &recorder[int]{}
		subject.Subscribe(r, nil)
		require.Equal(t, []Notification[int]{ErrorNotification[int](boom)}, r.all())
	})

	t.Run("作为观察者订阅源", func(t *testing.T) {
		subject := NewSubject[int]()
		r := &recorder[int]{}
		subject.Subscribe(r, nil)

		Just(1, 2, 3).Subscribe(subject, nil)
		require.Equal(t, []int{1, 2, 3}, r.values())
		require.Len(t, r.all(), 4)
	})

	t.Run("释放后使用panic", func(t *testing.T) {
		subject := NewSubject[int]()
		subject.Dispose()
		require.True(t, subject.IsDisposed())
		require.PanicsWithValue(t, ErrDisposed, func() { subject.OnNext(1) })
		require.PanicsWithValue(t, ErrDisposed, func() { subject.OnCompleted() })

		r := &recorder[int]{}
		subject.Subscribe(r, nil)
		require.Equal(t, []Notification[int]{ErrorNotification[int](ErrDisposed)}, r.all())
	})

	t.Run("并发发射不丢失", func(t *testing.T) {
		subject := NewSubject[int]()
		r := &recorder[int]{}
		subject.Subscribe(NewObserver(r.OnNext, r.OnError, r.OnCompleted), nil)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					subject.OnNext(i*100 + j)
				}
			}(i)
		}
		wg.Wait()
		require.Len(t, r.values(), 1000)
	})
}

// ============================================================================
// BehaviorSubject
// ============================================================================

func TestBehaviorSubject(t *testing.T) {
	subject := NewBehaviorSubject(0)
	a := &recorder[int]{}
	subject.Subscribe(a, nil)

	subject.OnNext(1)
	subject.OnNext(2)

	b := &recorder[int]{}
	subject.Subscribe(b, nil)
	subject.OnNext(3)

	require.Equal(t, []int{0, 1, 2, 3}, a.values())
	require.Equal(t, []int{2, 3}, b.values())

	value, err := subject.Value()
	require.NoError(t, err)
	require.Equal(t, 3, value)

	boom := errors.New("boom")
	subject.OnError(boom)
	_, err = subject.Value()
	require.ErrorIs(t, err, boom)

	c := &recorder[int]{}
	subject.Subscribe(c, nil)
	require.Equal(t, []Notification[int]{ErrorNotification[int](boom)}, c.all())

	subject.Dispose()
	require.PanicsWithValue(t, ErrDisposed, func() { _, _ = subject.Value() })
}

func TestBehaviorSubjectOrdering(t *testing.T) {
	t.Run("重入的新值排在当前值之后", func(t *testing.T) {
		subject := NewBehaviorSubject(1)
		var got []int
		subject.SubscribeWithCallbacks(func(v int) {
			got = append(got, v)
			if v == 1 {
				subject.OnNext(2)
				got = append(got, -1)
			}
		}, nil, nil)
		require.Equal(t, []int{1, -1, 2}, got)
	})

	t.Run("并发写入时值不倒序", func(t *testing.T) {
		for round := 0; round < 200; round++ {
			subject := NewBehaviorSubject(0)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 1; i <= 50; i++ {
					subject.OnNext(i)
				}
			}()

			var mu sync.Mutex
			var got []int
			d := subject.SubscribeWithCallbacks(func(v int) {
				mu.Lock()
				got = append(got, v)
				mu.Unlock()
			}, nil, nil)
			<-done
			d.Dispose()

			mu.Lock()
			for i := 1; i < len(got); i++ {
				require.Less(t, got[i-1], got[i], "round %d: %v", round, got)
			}
			mu.Unlock()
		}
	})
}

func TestSerializerHold(t *testing.T) {
	gate := &serializer{}
	var order []string

	gate.Hold()
	gate.Do(func() { order = append(order, "queued") })
	require.Empty(t, order)

	gate.Resume(func() { order = append(order, "first") })
	require.Equal(t, []string{"first", "queued"}, order)

	gate.Do(func() { order = append(order, "direct") })
	require.Equal(t, []string{"first", "queued", "direct"}, order)
}

// ============================================================================
// ReplaySubject
// ============================================================================

func TestReplaySubject(t *testing.T) {
	t.Run("无界缓存", func(t *testing.T) {
		subject := NewReplaySubject[int]()
		subject.OnNext(1)
		subject.OnNext(2)
		subject.OnCompleted()

		r := &recorder[int]{}
		subject.Subscribe(r, nil)
		require.Equal(t, []Notification[int]{
			NextNotification(1),
			NextNotification(2),
			CompletedNotification[int](),
		}, r.all())
	})

	t.Run("按数量裁剪", func(t *testing.T) {
		subject := NewReplaySubject[int](WithBufferSize(2))
		for i := 1; i <= 5; i++ {
			subject.OnNext(i)
		}
		r := &recorder[int]{}
		subject.Subscribe(r, nil)
		subject.OnNext(6)
		require.Equal(t, []int{4, 5, 6}, r.values())
	})

	t.Run("按时间窗口裁剪", func(t *testing.T) {
		s := NewVirtualTimeScheduler(epoch)
		subject := NewReplaySubject[int](WithWindow(25), WithScheduler(s))

		for i := 1; i <= 4; i++ {
			v := i
			s.ScheduleAbsolute(epoch.Add(time.Duration(v*10)), func(Scheduler, any) Disposable {
				subject.OnNext(v)
				return nil
			}, nil)
		}

		r := &recorder[int]{}
		s.ScheduleAbsolute(epoch.Add(50), func(Scheduler, any) Disposable {
			subject.Subscribe(r, nil)
			return nil
		}, nil)

		s.Start()
		require.Equal(t, []int{3, 4}, r.values())
	})
}

// ============================================================================
// AsyncSubject
// ============================================================================

func TestAsyncSubject(t *testing.T) {
	subject := NewAsyncSubject[int]()
	a := &recorder[int]{}
	subject.Subscribe(a, nil)

	subject.OnNext(1)
	subject.OnNext(2)
	require.Empty(t, a.all())

	subject.OnCompleted()
	require.Equal(t, []Notification[int]{NextNotification(2), CompletedNotification[int]()}, a.all())

	b := &recorder[int]{}
	subject.Subscribe(b, nil)
	require.Equal(t, a.all(), b.all())

	t.Run("无值完成", func(t *testing.T) {
		subject := NewAsyncSubject[int]()
		subject.OnCompleted()
		r := &recorder[int]{}
		subject.Subscribe(r, nil)
		require.Equal(t, []Notification[int]{CompletedNotification[int]()}, r.all())
	})

	t.Run("出错丢弃值", func(t *testing.T) {
		boom := errors.New("boom")
		subject := NewAsyncSubject[int]()
		subject.OnNext(1)
		subject.OnError(boom)
		r := &recorder[int]{}
		subject.Subscribe(r, nil)
		require.Equal(t, []Notification[int]{ErrorNotification[int](boom)}, r.all())
	})
}

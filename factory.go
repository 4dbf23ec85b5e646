// Factory functions for reactivex
// 工厂函数：创建各种可观察序列
package reactivex

import (
	"iter"
	"slices"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/pkg/errors"
)

// ============================================================================
// 基础工厂函数
// ============================================================================

// Never 创建一个永不发射任何通知的Observable
func Never[T any]() Observable[T] {
	return Create(func(Observer[T], Scheduler) Disposable {
		return EmptyDisposable()
	})
}

// Empty 创建一个立即完成的Observable，默认使用立即调度器
func Empty[T any](options ...Option) Observable[T] {
	config := newConfig(options...)
	return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
		s := pickScheduler(config, scheduler, ImmediateScheduler)
		return s.Schedule(func(Scheduler, any) Disposable {
			observer.OnCompleted()
			return nil
		}, nil)
	})
}

// Return 创建只发射一个值的Observable，默认使用当前goroutine的蹦床
func Return[T any](value T, options ...Option) Observable[T] {
	config := newConfig(options...)
	return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
		s := pickScheduler(config, scheduler, currentThreadScheduler)
		return s.Schedule(func(Scheduler, any) Disposable {
			observer.OnNext(value)
			observer.OnCompleted()
			return nil
		}, nil)
	})
}

// Throw 创建立即以错误终止的Observable，默认使用立即调度器
func Throw[T any](err error, options ...Option) Observable[T] {
	config := newConfig(options...)
	return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
		s := pickScheduler(config, scheduler, ImmediateScheduler)
		return s.Schedule(func(Scheduler, any) Disposable {
			observer.OnError(err)
			return nil
		}, nil)
	})
}

// Just 从给定的值创建Observable
func Just[T any](values ...T) Observable[T] {
	return FromSlice(values)
}

// FromSlice 从切片创建Observable
func FromSlice[T any](items []T, options ...Option) Observable[T] {
	return FromIterable(slices.Values(items), options...)
}

// FromIterable 从迭代器创建Observable，默认使用当前goroutine的蹦床
func FromIterable[T any](seq iter.Seq[T], options ...Option) Observable[T] {
	config := newConfig(options...)
	return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
		s := pickScheduler(config, scheduler, currentThreadScheduler)
		cancel := NewBooleanDisposable()

		action := func(Scheduler, any) Disposable {
			err := tryCall(func() {
				for value := range seq {
					if cancel.IsDisposed() {
						return
					}
					observer.OnNext(value)
				}
			})
			if cancel.IsDisposed() {
				return nil
			}
			if err != nil {
				observer.OnError(err)
				return nil
			}
			observer.OnCompleted()
			return nil
		}

		return NewCompositeDisposable(s.Schedule(action, nil), cancel)
	})
}

// FromChannel 从channel创建Observable，在独立goroutine上读取直到channel关闭
func FromChannel[T any](ch <-chan T) Observable[T] {
	return Create(func(observer Observer[T], _ Scheduler) Disposable {
		done := make(chan struct{})

		go func() {
			for {
				select {
				case <-done:
					return
				case value, ok := <-ch:
					if !ok {
						observer.OnCompleted()
						return
					}
					observer.OnNext(value)
				}
			}
		}()

		return NewDisposable(func() {
			close(done)
		})
	})
}

// FromNotificationChannel 从通知channel创建Observable，终止通知或channel关闭时结束
func FromNotificationChannel[T any](ch <-chan Notification[T]) Observable[T] {
	return Create(func(observer Observer[T], _ Scheduler) Disposable {
		done := make(chan struct{})

		go func() {
			for {
				select {
				case <-done:
					return
				case n, ok := <-ch:
					if !ok {
						observer.OnCompleted()
						return
					}
					n.Accept(observer)
					if n.Kind != KindNext {
						return
					}
				}
			}
		}()

		return NewDisposable(func() {
			close(done)
		})
	})
}

// FromFuture 订阅时在调度器上执行fn，发射其结果，默认使用新goroutine
func FromFuture[T any](fn func() (T, error), options ...Option) Observable[T] {
	config := newConfig(options...)
	return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
		s := pickScheduler(config, scheduler, func() Scheduler { return NewThread() })
		return s.Schedule(func(Scheduler, any) Disposable {
			value, err := tryCall1(fn)
			if err != nil {
				observer.OnError(err)
				return nil
			}
			observer.OnNext(value)
			observer.OnCompleted()
			return nil
		}, nil)
	})
}

// Start 立即在调度器上执行fn，结果缓存在AsyncSubject中，默认使用定时器调度器
func Start[T any](fn func() (T, error), options ...Option) Observable[T] {
	config := newConfig(options...)
	s := config.schedulerOr(TimeoutScheduler())
	subject := NewAsyncSubject[T]()

	s.Schedule(func(Scheduler, any) Disposable {
		value, err := tryCall1(fn)
		if err != nil {
			subject.OnError(err)
			return nil
		}
		subject.OnNext(value)
		subject.OnCompleted()
		return nil
	}, nil)

	return AsObservable[T]()(subject)
}

// Range 发射 [start, stop) 内以step为步长的整数
func Range(start, stop, step int, options ...Option) Observable[int] {
	if step == 0 {
		return Throw[int](errors.Wrap(ErrArgumentOutOfRange, "range step must not be zero"), options...)
	}
	return FromIterable(func(yield func(int) bool) {
		for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
			if !yield(i) {
				return
			}
		}
	}, options...)
}

// Repeat 重复发射value count次，count为负数时无限重复
func Repeat[T any](value T, count int, options ...Option) Observable[T] {
	return FromIterable(func(yield func(T) bool) {
		for i := 0; count < 0 || i < count; i++ {
			if !yield(value) {
				return
			}
		}
	}, options...)
}

// ============================================================================
// 时间相关工厂函数
// ============================================================================

// Timer duetime后发射0；period大于0时此后每隔period发射递增的计数
func Timer(duetime, period time.Duration, options ...Option) Observable[int] {
	config := newConfig(options...)

	if period > 0 && duetime == period {
		return Create(func(observer Observer[int], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			return s.SchedulePeriodic(period, func(state any) any {
				count := state.(int)
				observer.OnNext(count)
				return count + 1
			}, 0)
		})
	}

	return Create(func(observer Observer[int], scheduler Scheduler) Disposable {
		s := pickScheduler(config, scheduler, TimeoutScheduler)
		return timerAt(observer, s, s.Now().Add(duetime), period)
	})
}

// TimerAt 在指定时刻发射0；period大于0时此后每隔period发射递增的计数
func TimerAt(duetime time.Time, period time.Duration, options ...Option) Observable[int] {
	config := newConfig(options...)
	return Create(func(observer Observer[int], scheduler Scheduler) Disposable {
		s := pickScheduler(config, scheduler, TimeoutScheduler)
		return timerAt(observer, s, duetime, period)
	})
}

func timerAt(observer Observer[int], s Scheduler, duetime time.Time, period time.Duration) Disposable {
	mad := NewMultipleAssignmentDisposable()
	due := duetime
	count := 0

	var action ScheduledAction
	action = func(scheduler Scheduler, _ any) Disposable {
		if period <= 0 {
			observer.OnNext(0)
			observer.OnCompleted()
			return nil
		}

		now := scheduler.Now()
		due = due.Add(period)
		if !due.After(now) {
			due = now.Add(period)
		}
		observer.OnNext(count)
		count++
		mad.SetDisposable(scheduler.ScheduleAbsolute(due, action, nil))
		return nil
	}

	mad.SetDisposable(s.ScheduleAbsolute(due, action, nil))
	return mad
}

// Interval 每隔period发射递增的计数
func Interval(period time.Duration, options ...Option) Observable[int] {
	return Timer(period, period, options...)
}

// Cron 按cron表达式的触发时刻发射触发时间，表达式不再触发时完成
func Cron(expr string, options ...Option) Observable[time.Time] {
	schedule, err := cronexpr.Parse(expr)
	if err != nil {
		return Throw[time.Time](errors.Wrapf(err, "invalid cron expression %q", expr), options...)
	}

	config := newConfig(options...)
	return Create(func(observer Observer[time.Time], scheduler Scheduler) Disposable {
		s := pickScheduler(config, scheduler, TimeoutScheduler)
		mad := NewMultipleAssignmentDisposable()

		var action ScheduledAction
		action = func(scheduler Scheduler, state any) Disposable {
			fired := state.(time.Time)
			observer.OnNext(fired)

			next := schedule.Next(fired)
			if next.IsZero() {
				observer.OnCompleted()
				return nil
			}
			mad.SetDisposable(scheduler.ScheduleAbsolute(next, action, next))
			return nil
		}

		first := schedule.Next(s.Now())
		if first.IsZero() {
			observer.OnCompleted()
			return mad
		}
		mad.SetDisposable(s.ScheduleAbsolute(first, action, first))
		return mad
	})
}

// ============================================================================
// 延迟创建与生成
// ============================================================================

// Defer 每次订阅时调用工厂创建Observable
func Defer[T any](factory func(scheduler Scheduler) (Observable[T], error)) Observable[T] {
	return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
		source, err := tryCall1(func() (Observable[T], error) {
			return factory(scheduler)
		})
		if err != nil {
			return Throw[T](err).Subscribe(observer, scheduler)
		}
		return source.Subscribe(observer, scheduler)
	})
}

// Using 资源的生命周期与订阅绑定
func Using[T any](resourceFactory func() (Disposable, error), observableFactory func(resource Disposable) (Observable[T], error)) Observable[T] {
	return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
		var resource Disposable = EmptyDisposable()

		source, err := tryCall1(func() (Observable[T], error) {
			r, err := resourceFactory()
			if err != nil {
				return nil, err
			}
			if r != nil {
				resource = r
			}
			return observableFactory(r)
		})
		if err != nil {
			return NewCompositeDisposable(Throw[T](err).Subscribe(observer, scheduler), resource)
		}
		return NewCompositeDisposable(source.Subscribe(observer, scheduler), resource)
	})
}

// Generate 从初始状态开始迭代，condition为false时完成
func Generate[S any](initial S, condition func(S) bool, iterate func(S) S, options ...Option) Observable[S] {
	config := newConfig(options...)
	return Create(func(observer Observer[S], scheduler Scheduler) Disposable {
		s := pickScheduler(config, scheduler, currentThreadScheduler)
		mad := NewMultipleAssignmentDisposable()
		state := initial
		first := true

		var action ScheduledAction
		action = func(scheduler Scheduler, _ any) Disposable {
			var hasResult bool
			err := tryCall(func() {
				if first {
					first = false
				} else {
					state = iterate(state)
				}
				hasResult = condition(state)
			})
			if err != nil {
				observer.OnError(err)
				return nil
			}

			if !hasResult {
				observer.OnCompleted()
				return nil
			}
			observer.OnNext(state)
			mad.SetDisposable(scheduler.Schedule(action, nil))
			return nil
		}

		mad.SetDisposable(s.Schedule(action, nil))
		return mad
	})
}

// GenerateWithRelativeTime 同Generate，每个值在timeMapper给出的延迟后发射
func GenerateWithRelativeTime[S any](initial S, condition func(S) bool, iterate func(S) S, timeMapper func(S) time.Duration, options ...Option) Observable[S] {
	config := newConfig(options...)
	return Create(func(observer Observer[S], scheduler Scheduler) Disposable {
		s := pickScheduler(config, scheduler, TimeoutScheduler)
		mad := NewMultipleAssignmentDisposable()
		state := initial
		first := true
		hasResult := false
		var result S

		var action ScheduledAction
		action = func(scheduler Scheduler, _ any) Disposable {
			if hasResult {
				observer.OnNext(result)
			}

			var delay time.Duration
			err := tryCall(func() {
				if first {
					first = false
				} else {
					state = iterate(state)
				}
				hasResult = condition(state)
				if hasResult {
					result = state
					delay = timeMapper(state)
				}
			})
			if err != nil {
				observer.OnError(err)
				return nil
			}

			if !hasResult {
				observer.OnCompleted()
				return nil
			}
			mad.SetDisposable(scheduler.ScheduleRelative(delay, action, nil))
			return nil
		}

		mad.SetDisposable(s.ScheduleRelative(0, action, nil))
		return mad
	})
}

// ============================================================================
// 条件选择
// ============================================================================

// IfThen 订阅时根据condition选择源，elseSource为nil时为空序列
func IfThen[T any](condition func() bool, thenSource, elseSource Observable[T]) Observable[T] {
	if elseSource == nil {
		elseSource = Empty[T]()
	}
	return Defer(func(Scheduler) (Observable[T], error) {
		if condition() {
			return thenSource, nil
		}
		return elseSource, nil
	})
}

// Case 订阅时根据selector的结果从sources中选择源，找不到时使用defaultSource
func Case[K comparable, T any](selector func() K, sources map[K]Observable[T], defaultSource Observable[T]) Observable[T] {
	if defaultSource == nil {
		defaultSource = Empty[T]()
	}
	return Defer(func(Scheduler) (Observable[T], error) {
		if source, ok := sources[selector()]; ok {
			return source, nil
		}
		return defaultSource, nil
	})
}

// ForIn 依次连接每个值映射出的序列
func ForIn[T, R any](values []T, mapper func(T) Observable[R]) Observable[R] {
	return ConcatIterable(func(yield func(Observable[R]) bool) {
		for _, v := range values {
			if !yield(mapper(v)) {
				return
			}
		}
	})
}

// Time-based operators for reactivex
// 时间操作符实现，包含Delay, Debounce, Throttle, Sample, Timeout, 时间窗口等
package reactivex

import (
	"time"

	"github.com/pkg/errors"
)

// ============================================================================
// 时间标记
// ============================================================================

// Timestamped 带时间戳的值
type Timestamped[T any] struct {
	Value     T
	Timestamp time.Time
}

// TimedValue 带与前一个值间隔的值
type TimedValue[T any] struct {
	Value    T
	Interval time.Duration
}

// Timestamp 为每个值附加调度器时钟的当前时间
func Timestamp[T any](options ...Option) Operator[T, Timestamped[T]] {
	config := newConfig(options...)
	return func(source Observable[T]) Observable[Timestamped[T]] {
		return Create(func(observer Observer[Timestamped[T]], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			return source.Subscribe(NewObserver(func(value T) {
				observer.OnNext(Timestamped[T]{Value: value, Timestamp: s.Now()})
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// TimeInterval 为每个值附加与前一个值（第一个值为订阅时刻）的间隔
func TimeInterval[T any](options ...Option) Operator[T, TimedValue[T]] {
	config := newConfig(options...)
	return func(source Observable[T]) Observable[TimedValue[T]] {
		return Create(func(observer Observer[TimedValue[T]], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			last := s.Now()
			return source.Subscribe(NewObserver(func(value T) {
				now := s.Now()
				span := now.Sub(last)
				last = now
				observer.OnNext(TimedValue[T]{Value: value, Interval: span})
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// ============================================================================
// Delay
// ============================================================================

type delayedNotification[T any] struct {
	due          time.Time
	notification Notification[T]
}

// Delay 把每个值和完成信号推迟duetime后发射，保持顺序；错误不推迟，立即发射并丢弃排队的值
func Delay[T any](duetime time.Duration, options ...Option) Operator[T, T] {
	config := newConfig(options...)
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			gate := &serializer{}
			cancelable := NewSerialDisposable()

			var queue []delayedNotification[T]
			active := false
			failed := false

			// start 开始一轮投递，只在闸门内调用
			start := func() {
				mad := NewMultipleAssignmentDisposable()
				cancelable.SetDisposable(mad)

				var action ScheduledAction
				action = func(Scheduler, any) Disposable {
					gate.Do(func() {
						if failed {
							return
						}
						for len(queue) > 0 && !queue[0].due.After(s.Now()) {
							next := queue[0]
							queue = queue[1:]
							next.notification.Accept(observer)
						}
						if len(queue) == 0 {
							active = false
							return
						}
						wait := queue[0].due.Sub(s.Now())
						if wait < 0 {
							wait = 0
						}
						mad.SetDisposable(s.ScheduleRelative(wait, action, nil))
					})
					return nil
				}
				mad.SetDisposable(s.ScheduleRelative(duetime, action, nil))
			}

			enqueue := func(notification Notification[T]) {
				due := s.Now().Add(duetime)
				gate.Do(func() {
					if failed {
						return
					}
					queue = append(queue, delayedNotification[T]{due: due, notification: notification})
					if !active {
						active = true
						start()
					}
				})
			}

			subscription := source.Subscribe(NewObserver(func(value T) {
				enqueue(NextNotification(value))
			}, func(err error) {
				gate.Do(func() {
					queue = nil
					failed = true
					observer.OnError(err)
				})
			}, func() {
				enqueue(CompletedNotification[T]())
			}), scheduler)

			return NewCompositeDisposable(subscription, cancelable)
		})
	}
}

// DelaySubscription 推迟duetime后才订阅源
func DelaySubscription[T any](duetime time.Duration, options ...Option) Operator[T, T] {
	config := newConfig(options...)
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			subscription := NewSerialDisposable()
			subscription.SetDisposable(s.ScheduleRelative(duetime, func(Scheduler, any) Disposable {
				subscription.SetDisposable(source.Subscribe(observer, scheduler))
				return nil
			}, nil))
			return subscription
		})
	}
}

// ============================================================================
// Debounce / Throttle / Sample
// ============================================================================

// Debounce 值之后duetime内没有新值时才发射该值，完成时立即发射待发的值
func Debounce[T any](duetime time.Duration, options ...Option) Operator[T, T] {
	config := newConfig(options...)
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			gate := &serializer{}
			cancelable := NewSerialDisposable()

			var value T
			hasValue := false
			id := 0

			subscription := source.Subscribe(NewObserver(func(v T) {
				gate.Do(func() {
					value = v
					hasValue = true
					id++
					current := id

					d := NewSingleAssignmentDisposable()
					cancelable.SetDisposable(d)
					d.SetDisposable(s.ScheduleRelative(duetime, func(Scheduler, any) Disposable {
						gate.Do(func() {
							if hasValue && id == current {
								hasValue = false
								observer.OnNext(value)
							}
						})
						return nil
					}, nil))
				})
			}, func(err error) {
				gate.Do(func() {
					cancelable.Dispose()
					hasValue = false
					id++
					observer.OnError(err)
				})
			}, func() {
				gate.Do(func() {
					cancelable.Dispose()
					if hasValue {
						hasValue = false
						observer.OnNext(value)
					}
					id++
					observer.OnCompleted()
				})
			}), scheduler)

			return NewCompositeDisposable(subscription, cancelable)
		})
	}
}

// ThrottleFirst 发射一个值后在window时间内忽略后续值
func ThrottleFirst[T any](window time.Duration, options ...Option) Operator[T, T] {
	config := newConfig(options...)
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			var last time.Time
			hasLast := false
			return source.Subscribe(NewObserver(func(value T) {
				now := s.Now()
				if !hasLast || now.Sub(last) >= window {
					last = now
					hasLast = true
					observer.OnNext(value)
				}
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// Sample 每隔period发射期间收到的最新值，期间没有新值时不发射
func Sample[T any](period time.Duration, options ...Option) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return SampleWith[T](Interval(period, options...))(source)
	}
}

// SampleWith sampler每次发射或完成时发射源的最新值；源完成后在下一次采样时完成
func SampleWith[T, S any](sampler Observable[S]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			gate := &serializer{}
			var value T
			hasValue := false
			atEnd := false

			sample := func() {
				gate.Do(func() {
					if hasValue {
						hasValue = false
						observer.OnNext(value)
					}
					if atEnd {
						observer.OnCompleted()
					}
				})
			}
			onError := func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}

			return NewCompositeDisposable(
				source.Subscribe(NewObserver(func(v T) {
					gate.Do(func() {
						value = v
						hasValue = true
					})
				}, onError, func() {
					gate.Do(func() { atEnd = true })
				}), scheduler),
				sampler.Subscribe(NewObserver(func(S) { sample() }, onError, sample), scheduler),
			)
		})
	}
}

// ============================================================================
// Timeout
// ============================================================================

// Timeout 两个通知间隔超过duetime时切换到other，other为nil时以ErrTimeout终止
func Timeout[T any](duetime time.Duration, other Observable[T], options ...Option) Operator[T, T] {
	return timeout(func(s Scheduler, action ScheduledAction) Disposable {
		return s.ScheduleRelative(duetime, action, nil)
	}, other, options...)
}

// TimeoutAt 到达deadline前源没有终止时切换到other，other为nil时以ErrTimeout终止
func TimeoutAt[T any](deadline time.Time, other Observable[T], options ...Option) Operator[T, T] {
	return timeout(func(s Scheduler, action ScheduledAction) Disposable {
		return s.ScheduleAbsolute(deadline, action, nil)
	}, other, options...)
}

func timeout[T any](schedule func(Scheduler, ScheduledAction) Disposable, other Observable[T], options ...Option) Operator[T, T] {
	config := newConfig(options...)
	if other == nil {
		other = Throw[T](ErrTimeout)
	}
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			gate := &serializer{}
			switched := false
			id := 0

			original := NewSingleAssignmentDisposable()
			subscription := NewSerialDisposable()
			subscription.SetDisposable(original)
			timer := NewSerialDisposable()

			// createTimer 只在闸门内或订阅前调用
			createTimer := func() {
				current := id
				timer.SetDisposable(schedule(s, func(Scheduler, any) Disposable {
					gate.Do(func() {
						if switched || id != current {
							return
						}
						switched = true
						subscription.SetDisposable(other.Subscribe(observer, scheduler))
					})
					return nil
				}))
			}
			createTimer()

			original.SetDisposable(source.Subscribe(NewObserver(func(value T) {
				gate.Do(func() {
					if switched {
						return
					}
					id++
					observer.OnNext(value)
					createTimer()
				})
			}, func(err error) {
				gate.Do(func() {
					if switched {
						return
					}
					id++
					observer.OnError(err)
				})
			}, func() {
				gate.Do(func() {
					if switched {
						return
					}
					id++
					observer.OnCompleted()
				})
			}), scheduler))

			return NewCompositeDisposable(subscription, timer)
		})
	}
}

// ============================================================================
// 时间窗口
// ============================================================================

// WindowWithTime 每timeshift打开一个窗口，每个窗口打开timespan后关闭；timeshift为0时等于timespan
func WindowWithTime[T any](timespan, timeshift time.Duration, options ...Option) Operator[T, Observable[T]] {
	if timeshift == 0 {
		timeshift = timespan
	}
	config := newConfig(options...)
	return func(source Observable[T]) Observable[Observable[T]] {
		if timespan <= 0 || timeshift < 0 {
			return Throw[Observable[T]](errors.Wrapf(ErrArgumentOutOfRange, "window timespan %v timeshift %v", timespan, timeshift))
		}
		return Create(func(observer Observer[Observable[T]], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			gate := &serializer{}
			timerD := NewSerialDisposable()
			groupDisposable := NewCompositeDisposable(timerD)
			refCount := NewRefCountDisposable(groupDisposable)

			nextShift := timeshift
			nextSpan := timespan
			var totalTime time.Duration
			var queue []*Subject[T]

			var createTimer func()
			createTimer = func() {
				m := NewSingleAssignmentDisposable()
				timerD.SetDisposable(m)

				isSpan, isShift := false, false
				switch {
				case nextSpan == nextShift:
					isSpan, isShift = true, true
				case nextSpan < nextShift:
					isSpan = true
				default:
					isShift = true
				}

				newTotalTime := nextShift
				if isSpan {
					newTotalTime = nextSpan
				}
				ts := newTotalTime - totalTime
				totalTime = newTotalTime
				if isSpan {
					nextSpan += timeshift
				}
				if isShift {
					nextShift += timeshift
				}

				m.SetDisposable(s.ScheduleRelative(ts, func(Scheduler, any) Disposable {
					gate.Do(func() {
						if isShift {
							w := NewSubject[T]()
							queue = append(queue, w)
							observer.OnNext(addRef[T](w, refCount))
						}
						if isSpan && len(queue) > 0 {
							w := queue[0]
							queue = queue[1:]
							w.OnCompleted()
						}
					})
					createTimer()
					return nil
				}, nil))
			}

			first := NewSubject[T]()
			queue = append(queue, first)
			observer.OnNext(addRef[T](first, refCount))
			createTimer()

			groupDisposable.Add(source.Subscribe(NewObserver(func(value T) {
				gate.Do(func() {
					for _, w := range queue {
						w.OnNext(value)
					}
				})
			}, func(err error) {
				gate.Do(func() {
					for _, w := range queue {
						w.OnError(err)
					}
					queue = nil
					observer.OnError(err)
				})
			}, func() {
				gate.Do(func() {
					for _, w := range queue {
						w.OnCompleted()
					}
					queue = nil
					observer.OnCompleted()
				})
			}), scheduler))

			return refCount
		})
	}
}

// WindowWithTimeOrCount 窗口满count个元素或打开timespan后关闭并立即打开下一个
func WindowWithTimeOrCount[T any](timespan time.Duration, count int, options ...Option) Operator[T, Observable[T]] {
	config := newConfig(options...)
	return func(source Observable[T]) Observable[Observable[T]] {
		if timespan <= 0 || count <= 0 {
			return Throw[Observable[T]](errors.Wrapf(ErrArgumentOutOfRange, "window timespan %v count %d", timespan, count))
		}
		return Create(func(observer Observer[Observable[T]], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			gate := &serializer{}
			timerD := NewSerialDisposable()
			groupDisposable := NewCompositeDisposable(timerD)
			refCount := NewRefCountDisposable(groupDisposable)

			n := 0
			windowID := 0
			window := NewSubject[T]()

			// rotate 关闭当前窗口并打开下一个，只在闸门内调用
			var createTimer func(id int)
			rotate := func() {
				n = 0
				windowID++
				window.OnCompleted()
				window = NewSubject[T]()
				observer.OnNext(addRef[T](window, refCount))
				createTimer(windowID)
			}

			createTimer = func(id int) {
				m := NewSingleAssignmentDisposable()
				timerD.SetDisposable(m)
				m.SetDisposable(s.ScheduleRelative(timespan, func(Scheduler, any) Disposable {
					gate.Do(func() {
						if id == windowID {
							rotate()
						}
					})
					return nil
				}, nil))
			}

			observer.OnNext(addRef[T](window, refCount))
			createTimer(0)

			groupDisposable.Add(source.Subscribe(NewObserver(func(value T) {
				gate.Do(func() {
					window.OnNext(value)
					n++
					if n == count {
						rotate()
					}
				})
			}, func(err error) {
				gate.Do(func() {
					window.OnError(err)
					observer.OnError(err)
				})
			}, func() {
				gate.Do(func() {
					window.OnCompleted()
					observer.OnCompleted()
				})
			}), scheduler))

			return refCount
		})
	}
}

// BufferWithTime 按WindowWithTime划分并把每个窗口收集为切片
func BufferWithTime[T any](timespan, timeshift time.Duration, options ...Option) Operator[T, []T] {
	return Compose(WindowWithTime[T](timespan, timeshift, options...), FlatMap(func(w Observable[T]) Observable[[]T] {
		return ToList[T]()(w)
	}))
}

// BufferWithTimeOrCount 按WindowWithTimeOrCount划分并把每个窗口收集为切片
func BufferWithTimeOrCount[T any](timespan time.Duration, count int, options ...Option) Operator[T, []T] {
	return Compose(WindowWithTimeOrCount[T](timespan, count, options...), FlatMap(func(w Observable[T]) Observable[[]T] {
		return ToList[T]()(w)
	}))
}

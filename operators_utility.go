// Utility operators for reactivex
// 工具操作符实现，包含ObserveOn, SubscribeOn, 重复订阅与空序列切换
package reactivex

import (
	"github.com/pkg/errors"
)

// ============================================================================
// 调度切换
// ============================================================================

// ObserveOn 在scheduler上按顺序投递通知，同一时刻最多一个投递在执行
func ObserveOn[T any](scheduler Scheduler) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], subscribeScheduler Scheduler) Disposable {
			scheduled := newObserveOnObserver(scheduler, observer)
			subscription := source.Subscribe(scheduled, subscribeScheduler)
			return NewCompositeDisposable(subscription, NewDisposable(scheduled.Dispose))
		})
	}
}

// SubscribeOn 在scheduler上执行订阅，释放也在同一调度器上执行
func SubscribeOn[T any](scheduler Scheduler) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], subscribeScheduler Scheduler) Disposable {
			m := NewSingleAssignmentDisposable()
			d := NewSerialDisposable()
			d.SetDisposable(m)

			m.SetDisposable(scheduler.Schedule(func(s Scheduler, _ any) Disposable {
				d.SetDisposable(NewScheduledDisposable(s, source.Subscribe(observer, subscribeScheduler)))
				return nil
			}, nil))

			return d
		})
	}
}

// ============================================================================
// 重复订阅
// ============================================================================

// RepeatN 源完成后重新订阅，总共订阅count次，count<0时无限重复
func RepeatN[T any](count int) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		if count == 0 {
			return Empty[T]()
		}
		return ConcatIterable(func(yield func(Observable[T]) bool) {
			for i := 0; count < 0 || i < count; i++ {
				if !yield(source) {
					return
				}
			}
		})
	}
}

// DoWhile 先订阅一次源，之后condition为true时继续重复订阅
func DoWhile[T any](condition func(source Observable[T]) bool) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Concat(source, WhileDo(condition)(source))
	}
}

// SwitchIfEmpty 源没有发射任何值就完成时切换到other
func SwitchIfEmpty[T any](other Observable[T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			subscription := NewSerialDisposable()
			empty := true

			first := NewSingleAssignmentDisposable()
			subscription.SetDisposable(first)
			first.SetDisposable(source.Subscribe(NewObserver(func(value T) {
				empty = false
				observer.OnNext(value)
			}, observer.OnError, func() {
				if !empty {
					observer.OnCompleted()
					return
				}
				subscription.SetDisposable(other.Subscribe(observer, scheduler))
			}), scheduler))

			return subscription
		})
	}
}

// ThrowIfEmpty 源没有发射任何值就完成时以ErrSequenceContainsNoElements终止
func ThrowIfEmpty[T any](message string) Operator[T, T] {
	return SwitchIfEmpty(Throw[T](errors.Wrap(ErrSequenceContainsNoElements, message)))
}

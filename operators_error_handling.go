// Error handling operators for reactivex
// 错误处理操作符实现，包含Catch, OnErrorResumeNext, Retry, RetryWithBackoff
package reactivex

import (
	"iter"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ============================================================================
// Catch 系列
// ============================================================================

// Catch 源出错时用handler(err, source)返回的序列继续，handler失败时以新的错误终止
func Catch[T any](handler func(err error, source Observable[T]) (Observable[T], error)) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			d1 := NewSingleAssignmentDisposable()
			subscription := NewSerialDisposable()
			subscription.SetDisposable(d1)

			d1.SetDisposable(source.Subscribe(NewObserver(observer.OnNext, func(err error) {
				next, herr := tryCall1(func() (Observable[T], error) {
					return handler(err, source)
				})
				if herr != nil {
					observer.OnError(herr)
					return
				}
				d := NewSingleAssignmentDisposable()
				subscription.SetDisposable(d)
				d.SetDisposable(next.Subscribe(observer, scheduler))
			}, observer.OnCompleted), scheduler))

			return subscription
		})
	}
}

// CatchWith 源出错时依次尝试others
func CatchWith[T any](others ...Observable[T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return CatchAll(append([]Observable[T]{source}, others...)...)
	}
}

// CatchAll 依次订阅sources，某个源出错时继续下一个，任一源完成时完成；
// 所有源都出错时以最后一个错误终止
func CatchAll[T any](sources ...Observable[T]) Observable[T] {
	return CatchIterable(slices.Values(sources))
}

// CatchIterable 迭代器版本的CatchAll
func CatchIterable[T any](sources iter.Seq[Observable[T]]) Observable[T] {
	return chainIterable(sources, chainCatch)
}

// OnErrorResumeNext 依次订阅sources，无论前一个完成还是出错都继续下一个
func OnErrorResumeNext[T any](sources ...Observable[T]) Observable[T] {
	return chainIterable(slices.Values(sources), chainResume)
}

// OnErrorResumeNextWith 源终止后依次继续others
func OnErrorResumeNextWith[T any](others ...Observable[T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return OnErrorResumeNext(append([]Observable[T]{source}, others...)...)
	}
}

// OnErrorReturn 源出错时发射value并完成
func OnErrorReturn[T any](value T) Operator[T, T] {
	return Catch(func(error, Observable[T]) (Observable[T], error) {
		return Return(value), nil
	})
}

// ============================================================================
// Retry 系列
// ============================================================================

// Retry 源出错时重新订阅，最多订阅count次，count<0时无限重试；完成直接透传
func Retry[T any](count int) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return CatchIterable(func(yield func(Observable[T]) bool) {
			for i := 0; count < 0 || i < count; i++ {
				if !yield(source) {
					return
				}
			}
		})
	}
}

// RetryWithBackoff 源出错时按policy给出的间隔重新订阅，policy返回backoff.Stop时以最后的错误终止。
// 每次订阅都会Reset策略，策略实例不应在多个订阅之间共享。
func RetryWithBackoff[T any](policy backoff.BackOff, options ...Option) Operator[T, T] {
	config := newConfig(options...)
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			logger := config.loggerOr()
			policy.Reset()

			subscription := NewSerialDisposable()
			timer := NewSerialDisposable()

			var subscribe func()
			subscribe = func() {
				d := NewSingleAssignmentDisposable()
				subscription.SetDisposable(d)
				d.SetDisposable(source.Subscribe(NewObserver(observer.OnNext, func(err error) {
					wait := policy.NextBackOff()
					if wait == backoff.Stop {
						observer.OnError(err)
						return
					}
					logger.Sugar().Debugw("retrying after error", "error", err, "wait", wait)
					timer.SetDisposable(s.ScheduleRelative(wait, func(Scheduler, any) Disposable {
						subscribe()
						return nil
					}, nil))
				}, observer.OnCompleted), scheduler))
			}

			timer.SetDisposable(s.Schedule(func(Scheduler, any) Disposable {
				subscribe()
				return nil
			}, nil))

			return NewCompositeDisposable(subscription, timer)
		})
	}
}

// ConstantBackoff 固定间隔、最多重试maxRetries次的退避策略
func ConstantBackoff(interval time.Duration, maxRetries uint64) backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), maxRetries)
}

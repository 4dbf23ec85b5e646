// Side effect operators for reactivex
// 副作用操作符实现，在不改变序列的前提下观察通知和订阅生命周期
package reactivex

import (
	"sync"

	"go.uber.org/zap"
)

// ============================================================================
// Do 系列
// ============================================================================

// Do 把每个通知同时转发给observer，observer的回调panic时序列以错误终止
func Do[T any](observer Observer[T]) Operator[T, T] {
	return DoAction(observer.OnNext, observer.OnError, observer.OnCompleted)
}

// DoAction 通用的副作用操作符，可以指定多个回调，nil回调被忽略
func DoAction[T any](onNext func(T), onError func(error), onCompleted func()) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			return source.Subscribe(NewObserver(func(value T) {
				if onNext != nil {
					if err := tryCall(func() { onNext(value) }); err != nil {
						observer.OnError(err)
						return
					}
				}
				observer.OnNext(value)
			}, func(err error) {
				if onError != nil {
					if herr := tryCall(func() { onError(err) }); herr != nil {
						observer.OnError(herr)
						return
					}
				}
				observer.OnError(err)
			}, func() {
				if onCompleted != nil {
					if err := tryCall(onCompleted); err != nil {
						observer.OnError(err)
						return
					}
				}
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// DoOnNext 在每个值发射前执行副作用操作
func DoOnNext[T any](action func(T)) Operator[T, T] {
	return DoAction[T](action, nil, nil)
}

// DoOnError 在发生错误时执行副作用操作
func DoOnError[T any](action func(error)) Operator[T, T] {
	return DoAction[T](nil, action, nil)
}

// DoOnCompleted 在完成时执行副作用操作
func DoOnCompleted[T any](action func()) Operator[T, T] {
	return DoAction[T](nil, nil, action)
}

// DoOnEach 对每个通知（包括错误和完成）执行副作用操作
func DoOnEach[T any](action func(Notification[T])) Operator[T, T] {
	return DoAction(func(value T) {
		action(NextNotification(value))
	}, func(err error) {
		action(ErrorNotification[T](err))
	}, func() {
		action(CompletedNotification[T]())
	})
}

// DoOnTerminate 在终止（完成或错误）之前执行副作用操作
func DoOnTerminate[T any](action func()) Operator[T, T] {
	return DoAction[T](nil, func(error) { action() }, action)
}

// DoAfterNext 在每个值发射之后执行副作用操作
func DoAfterNext[T any](action func(T)) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			return source.Subscribe(NewObserver(func(value T) {
				observer.OnNext(value)
				if err := tryCall(func() { action(value) }); err != nil {
					observer.OnError(err)
				}
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// DoAfterTerminate 在终止通知投递之后执行副作用操作
func DoAfterTerminate[T any](action func()) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			return source.Subscribe(NewObserver(observer.OnNext, func(err error) {
				observer.OnError(err)
				action()
			}, func() {
				observer.OnCompleted()
				action()
			}), scheduler)
		})
	}
}

// ============================================================================
// 订阅生命周期
// ============================================================================

// DoOnSubscribe 在订阅源之前执行副作用操作
func DoOnSubscribe[T any](action func()) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			action()
			return source.Subscribe(observer, scheduler)
		})
	}
}

// DoOnDispose 订阅被释放时执行副作用操作
func DoOnDispose[T any](action func()) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			return NewCompositeDisposable(NewDisposable(action), source.Subscribe(observer, scheduler))
		})
	}
}

// Finally 序列终止或订阅被释放时执行一次action，以先发生者为准
func Finally[T any](action func()) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			var once sync.Once
			run := func() { once.Do(action) }

			subscription := source.Subscribe(NewObserver(observer.OnNext, func(err error) {
				defer run()
				observer.OnError(err)
			}, func() {
				defer run()
				observer.OnCompleted()
			}), scheduler)

			return NewCompositeDisposable(subscription, NewDisposable(run))
		})
	}
}

// ============================================================================
// 日志
// ============================================================================

// Log 用zap记录每个通知和订阅生命周期，默认使用包级日志器
func Log[T any](name string, options ...Option) Operator[T, T] {
	config := newConfig(options...)
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			logger := config.loggerOr().With(zap.String("observable", name))
			logger.Debug("subscribe")

			subscription := source.Subscribe(NewObserver(func(value T) {
				logger.Debug("on next", zap.Any("value", value))
				observer.OnNext(value)
			}, func(err error) {
				logger.Debug("on error", zap.Error(err))
				observer.OnError(err)
			}, func() {
				logger.Debug("on completed")
				observer.OnCompleted()
			}), scheduler)

			return NewCompositeDisposable(subscription, NewDisposable(func() {
				logger.Debug("dispose")
			}))
		})
	}
}

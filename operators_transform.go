// Transformation operators for reactivex
// 转换操作符：Map、Scan、StartWith、Pairwise、Materialize等
package reactivex

import (
	"github.com/pkg/errors"
)

// ============================================================================
// 映射
// ============================================================================

// Map 对每个值应用mapper，mapper返回错误或panic时序列以错误终止
func Map[T, R any](mapper Mapper[T, R]) Operator[T, R] {
	return MapIndexed(func(value T, _ int) (R, error) {
		return mapper(value)
	})
}

// MapIndexed 带索引的Map
func MapIndexed[T, R any](mapper IndexedMapper[T, R]) Operator[T, R] {
	return func(source Observable[T]) Observable[R] {
		return Create(func(observer Observer[R], scheduler Scheduler) Disposable {
			index := 0
			return source.Subscribe(NewObserver(func(value T) {
				result, err := tryCall1(func() (R, error) {
					return mapper(value, index)
				})
				if err != nil {
					observer.OnError(err)
					return
				}
				index++
				observer.OnNext(result)
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// OfType 只保留能断言为R的值
func OfType[T, R any]() Operator[T, R] {
	return func(source Observable[T]) Observable[R] {
		return Create(func(observer Observer[R], scheduler Scheduler) Disposable {
			return source.Subscribe(NewObserver(func(value T) {
				if result, ok := any(value).(R); ok {
					observer.OnNext(result)
				}
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// Cast 把每个值断言为R，失败时以错误终止
func Cast[T, R any]() Operator[T, R] {
	return Map(func(value T) (R, error) {
		result, ok := any(value).(R)
		if !ok {
			return result, errors.Errorf("cannot cast %T to %T", value, result)
		}
		return result, nil
	})
}

// ============================================================================
// 累积
// ============================================================================

// Scan 发射每一步的累积结果
func Scan[T, A any](accumulator Accumulator[T, A], seed A) Operator[T, A] {
	return func(source Observable[T]) Observable[A] {
		return Defer(func(Scheduler) (Observable[A], error) {
			acc := seed
			return Map(func(value T) (A, error) {
				next, err := accumulator(acc, value)
				if err != nil {
					return next, err
				}
				acc = next
				return acc, nil
			})(source), nil
		})
	}
}

// Pairwise 发射相邻两个值组成的对
func Pairwise[T any]() Operator[T, [2]T] {
	return func(source Observable[T]) Observable[[2]T] {
		return Create(func(observer Observer[[2]T], scheduler Scheduler) Disposable {
			var previous T
			hasPrevious := false
			return source.Subscribe(NewObserver(func(value T) {
				if hasPrevious {
					observer.OnNext([2]T{previous, value})
				}
				previous = value
				hasPrevious = true
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// ============================================================================
// 序列首尾
// ============================================================================

// StartWith 先发射给定的值再发射源序列
func StartWith[T any](values ...T) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Concat(FromSlice(values), source)
	}
}

// EndWith 源序列完成后追加给定的值
func EndWith[T any](values ...T) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Concat(source, FromSlice(values))
	}
}

// DefaultIfEmpty 源序列为空时发射默认值
func DefaultIfEmpty[T any](defaultValue T) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			found := false
			return source.Subscribe(NewObserver(func(value T) {
				found = true
				observer.OnNext(value)
			}, observer.OnError, func() {
				if !found {
					observer.OnNext(defaultValue)
				}
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// IgnoreElements 忽略所有值，只保留终止通知
func IgnoreElements[T any]() Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			return source.Subscribe(NewObserver(func(T) {}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// ============================================================================
// 通知的值化
// ============================================================================

// Materialize 把所有通知转换为Notification值
func Materialize[T any]() Operator[T, Notification[T]] {
	return func(source Observable[T]) Observable[Notification[T]] {
		return Create(func(observer Observer[Notification[T]], scheduler Scheduler) Disposable {
			return source.Subscribe(NewObserver(func(value T) {
				observer.OnNext(NextNotification(value))
			}, func(err error) {
				observer.OnNext(ErrorNotification[T](err))
				observer.OnCompleted()
			}, func() {
				observer.OnNext(CompletedNotification[T]())
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// Dematerialize 把Notification值还原为通知
func Dematerialize[T any]() Operator[Notification[T], T] {
	return func(source Observable[Notification[T]]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			return source.Subscribe(NewObserver(func(n Notification[T]) {
				n.Accept(observer)
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

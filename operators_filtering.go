// Filtering operators for reactivex
// 过滤操作符：Filter、Take/Skip系列、Distinct、元素选取
package reactivex

import (
	"reflect"
	"time"

	"github.com/pkg/errors"
)

// ============================================================================
// 过滤
// ============================================================================

// Filter 只保留满足谓词的值，谓词panic时序列以错误终止
func Filter[T any](predicate Predicate[T]) Operator[T, T] {
	return FilterIndexed(func(value T, _ int) bool {
		return predicate(value)
	})
}

// FilterIndexed 带索引的Filter
func FilterIndexed[T any](predicate IndexedPredicate[T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			index := 0
			return source.Subscribe(NewObserver(func(value T) {
				var ok bool
				if err := tryCall(func() { ok = predicate(value, index) }); err != nil {
					observer.OnError(err)
					return
				}
				index++
				if ok {
					observer.OnNext(value)
				}
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// ============================================================================
// Take 系列
// ============================================================================

// Take 只取前count个值，取满后立即完成
func Take[T any](count int) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		if count < 0 {
			return Throw[T](errors.Wrap(ErrArgumentOutOfRange, "take count must not be negative"))
		}
		if count == 0 {
			return Empty[T]()
		}
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			remaining := count
			return source.Subscribe(NewObserver(func(value T) {
				if remaining > 0 {
					remaining--
					observer.OnNext(value)
					if remaining == 0 {
						observer.OnCompleted()
					}
				}
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// TakeLast 完成时发射最后count个值
func TakeLast[T any](count int) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			var queue []T
			return source.Subscribe(NewObserver(func(value T) {
				queue = append(queue, value)
				if len(queue) > count {
					queue = queue[1:]
				}
			}, observer.OnError, func() {
				for _, value := range queue {
					observer.OnNext(value)
				}
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// TakeLastWithTime 完成时发射最后duration时间内收到的值
func TakeLastWithTime[T any](duration time.Duration, options ...Option) Operator[T, T] {
	config := newConfig(options...)
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			var queue []replayItem[T]

			return source.Subscribe(NewObserver(func(value T) {
				now := s.Now()
				queue = append(queue, replayItem[T]{interval: now, value: value})
				for len(queue) > 0 && now.Sub(queue[0].interval) >= duration {
					queue = queue[1:]
				}
			}, observer.OnError, func() {
				now := s.Now()
				for _, item := range queue {
					if now.Sub(item.interval) <= duration {
						observer.OnNext(item.value)
					}
				}
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// TakeWhile 谓词为true时转发，第一次为false时完成；inclusive为true时也发射该值
func TakeWhile[T any](predicate Predicate[T], inclusive bool) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			running := true
			return source.Subscribe(NewObserver(func(value T) {
				if !running {
					return
				}
				if err := tryCall(func() { running = predicate(value) }); err != nil {
					observer.OnError(err)
					return
				}
				if running {
					observer.OnNext(value)
					return
				}
				if inclusive {
					observer.OnNext(value)
				}
				observer.OnCompleted()
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// TakeUntil other发射第一个值时完成
func TakeUntil[T, U any](other Observable[U]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			gate := &serializer{}
			otherSubscription := other.Subscribe(NewObserver(func(U) {
				gate.Do(observer.OnCompleted)
			}, func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}, nil), scheduler)

			sourceSubscription := source.Subscribe(NewObserver(func(value T) {
				gate.Do(func() { observer.OnNext(value) })
			}, func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}, func() {
				gate.Do(observer.OnCompleted)
			}), scheduler)

			return NewCompositeDisposable(otherSubscription, sourceSubscription)
		})
	}
}

// TakeUntilWithTime 经过duration后完成
func TakeUntilWithTime[T any](duration time.Duration, options ...Option) Operator[T, T] {
	config := newConfig(options...)
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			return takeUntilAt(source, observer, scheduler, s, s.Now().Add(duration))
		})
	}
}

// TakeUntilAt 到达指定时刻时完成
func TakeUntilAt[T any](endTime time.Time, options ...Option) Operator[T, T] {
	config := newConfig(options...)
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			return takeUntilAt(source, observer, scheduler, s, endTime)
		})
	}
}

func takeUntilAt[T any](source Observable[T], observer Observer[T], subscribeScheduler, s Scheduler, endTime time.Time) Disposable {
	gate := &serializer{}
	timer := s.ScheduleAbsolute(endTime, func(Scheduler, any) Disposable {
		gate.Do(observer.OnCompleted)
		return nil
	}, nil)

	subscription := source.Subscribe(NewObserver(func(value T) {
		gate.Do(func() { observer.OnNext(value) })
	}, func(err error) {
		gate.Do(func() { observer.OnError(err) })
	}, func() {
		gate.Do(observer.OnCompleted)
	}), subscribeScheduler)

	return NewCompositeDisposable(timer, subscription)
}

// ============================================================================
// Skip 系列
// ============================================================================

// Skip 跳过前count个值
func Skip[T any](count int) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		if count < 0 {
			return Throw[T](errors.Wrap(ErrArgumentOutOfRange, "skip count must not be negative"))
		}
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			remaining := count
			return source.Subscribe(NewObserver(func(value T) {
				if remaining <= 0 {
					observer.OnNext(value)
				} else {
					remaining--
				}
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// SkipLast 跳过最后count个值
func SkipLast[T any](count int) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			var queue []T
			return source.Subscribe(NewObserver(func(value T) {
				queue = append(queue, value)
				if len(queue) > count {
					front := queue[0]
					queue = queue[1:]
					observer.OnNext(front)
				}
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// SkipWhile 谓词为true时跳过，之后全部转发
func SkipWhile[T any](predicate Predicate[T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			running := false
			return source.Subscribe(NewObserver(func(value T) {
				if !running {
					if err := tryCall(func() { running = !predicate(value) }); err != nil {
						observer.OnError(err)
						return
					}
				}
				if running {
					observer.OnNext(value)
				}
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// SkipUntil other发射第一个值之后才开始转发
func SkipUntil[T, U any](other Observable[U]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			gate := &serializer{}
			open := false

			subscriptions := NewCompositeDisposable()
			subscriptions.Add(source.Subscribe(NewObserver(func(value T) {
				gate.Do(func() {
					if open {
						observer.OnNext(value)
					}
				})
			}, func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}, func() {
				gate.Do(func() {
					if open {
						observer.OnCompleted()
					}
				})
			}), scheduler))

			right := NewSingleAssignmentDisposable()
			subscriptions.Add(right)
			right.SetDisposable(other.Subscribe(NewObserver(func(U) {
				gate.Do(func() { open = true })
				right.Dispose()
			}, func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}, right.Dispose), scheduler))

			return subscriptions
		})
	}
}

// SkipUntilWithTime 经过duration之后才开始转发
func SkipUntilWithTime[T any](duration time.Duration, options ...Option) Operator[T, T] {
	config := newConfig(options...)
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			s := pickScheduler(config, scheduler, TimeoutScheduler)
			gate := &serializer{}
			open := false

			timer := s.ScheduleRelative(duration, func(Scheduler, any) Disposable {
				gate.Do(func() { open = true })
				return nil
			}, nil)

			subscription := source.Subscribe(NewObserver(func(value T) {
				gate.Do(func() {
					if open {
						observer.OnNext(value)
					}
				})
			}, func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}, func() {
				gate.Do(observer.OnCompleted)
			}), scheduler)

			return NewCompositeDisposable(timer, subscription)
		})
	}
}

// ============================================================================
// 去重
// ============================================================================

// Distinct 只发射未出现过的值
func Distinct[T comparable]() Operator[T, T] {
	return DistinctBy(func(value T) T { return value })
}

// DistinctBy 按键去重
func DistinctBy[T any, K comparable](keySelector func(T) K) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			seen := make(map[K]struct{})
			return source.Subscribe(NewObserver(func(value T) {
				var key K
				if err := tryCall(func() { key = keySelector(value) }); err != nil {
					observer.OnError(err)
					return
				}
				if _, ok := seen[key]; ok {
					return
				}
				seen[key] = struct{}{}
				observer.OnNext(value)
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// DistinctUntilChanged 只发射与前一个值不同的值
func DistinctUntilChanged[T comparable]() Operator[T, T] {
	return DistinctUntilChangedBy(func(value T) T { return value }, func(a, b T) bool { return a == b })
}

// DistinctUntilChangedBy 按键比较相邻值，comparer为nil时使用reflect.DeepEqual
func DistinctUntilChangedBy[T, K any](keySelector func(T) K, comparer Comparer[K]) Operator[T, T] {
	if comparer == nil {
		comparer = func(a, b K) bool { return reflect.DeepEqual(a, b) }
	}
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			var currentKey K
			hasCurrentKey := false
			return source.Subscribe(NewObserver(func(value T) {
				var key K
				var equal bool
				err := tryCall(func() {
					key = keySelector(value)
					if hasCurrentKey {
						equal = comparer(currentKey, key)
					}
				})
				if err != nil {
					observer.OnError(err)
					return
				}
				if hasCurrentKey && equal {
					return
				}
				hasCurrentKey = true
				currentKey = key
				observer.OnNext(value)
			}, observer.OnError, observer.OnCompleted), scheduler)
		})
	}
}

// ============================================================================
// 元素选取
// ============================================================================

// ElementAt 发射指定位置的值，越界时以ErrArgumentOutOfRange终止
func ElementAt[T any](index int) Operator[T, T] {
	return elementAt[T](index, false, *new(T))
}

// ElementAtOrDefault 发射指定位置的值，越界时发射默认值
func ElementAtOrDefault[T any](index int, defaultValue T) Operator[T, T] {
	return elementAt(index, true, defaultValue)
}

func elementAt[T any](index int, hasDefault bool, defaultValue T) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		if index < 0 {
			return Throw[T](ErrArgumentOutOfRange)
		}
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			i := index
			return source.Subscribe(NewObserver(func(value T) {
				if i == 0 {
					observer.OnNext(value)
					observer.OnCompleted()
				}
				i--
			}, observer.OnError, func() {
				if !hasDefault {
					observer.OnError(ErrArgumentOutOfRange)
					return
				}
				observer.OnNext(defaultValue)
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// First 发射第一个满足谓词的值，predicate为nil时取第一个值；没有时以ErrSequenceContainsNoElements终止
func First[T any](predicate Predicate[T]) Operator[T, T] {
	return firstOrDefault(predicate, false, *new(T))
}

// FirstOrDefault 同First，没有时发射默认值
func FirstOrDefault[T any](predicate Predicate[T], defaultValue T) Operator[T, T] {
	return firstOrDefault(predicate, true, defaultValue)
}

func firstOrDefault[T any](predicate Predicate[T], hasDefault bool, defaultValue T) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		if predicate != nil {
			source = Filter(predicate)(source)
		}
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			return source.Subscribe(NewObserver(func(value T) {
				observer.OnNext(value)
				observer.OnCompleted()
			}, observer.OnError, func() {
				if !hasDefault {
					observer.OnError(ErrSequenceContainsNoElements)
					return
				}
				observer.OnNext(defaultValue)
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// Last 发射最后一个满足谓词的值；没有时以ErrSequenceContainsNoElements终止
func Last[T any](predicate Predicate[T]) Operator[T, T] {
	return lastOrDefault(predicate, false, *new(T))
}

// LastOrDefault 同Last，没有时发射默认值
func LastOrDefault[T any](predicate Predicate[T], defaultValue T) Operator[T, T] {
	return lastOrDefault(predicate, true, defaultValue)
}

func lastOrDefault[T any](predicate Predicate[T], hasDefault bool, defaultValue T) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		if predicate != nil {
			source = Filter(predicate)(source)
		}
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			value := defaultValue
			seen := false
			return source.Subscribe(NewObserver(func(v T) {
				value = v
				seen = true
			}, observer.OnError, func() {
				if !seen && !hasDefault {
					observer.OnError(ErrSequenceContainsNoElements)
					return
				}
				observer.OnNext(value)
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// Single 要求恰好一个满足谓词的值
func Single[T any](predicate Predicate[T]) Operator[T, T] {
	return singleOrDefault(predicate, false, *new(T))
}

// SingleOrDefault 同Single，没有时发射默认值
func SingleOrDefault[T any](predicate Predicate[T], defaultValue T) Operator[T, T] {
	return singleOrDefault(predicate, true, defaultValue)
}

func singleOrDefault[T any](predicate Predicate[T], hasDefault bool, defaultValue T) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		if predicate != nil {
			source = Filter(predicate)(source)
		}
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			value := defaultValue
			seen := false
			return source.Subscribe(NewObserver(func(v T) {
				if seen {
					observer.OnError(ErrSequenceContainsMoreThanOneElement)
					return
				}
				value = v
				seen = true
			}, observer.OnError, func() {
				if !seen && !hasDefault {
					observer.OnError(ErrSequenceContainsNoElements)
					return
				}
				observer.OnNext(value)
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

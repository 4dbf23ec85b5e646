// Aggregation operators for reactivex
// 聚合操作符：Reduce、Count、Sum、Average、Min、Max、ToList、All、Some等
package reactivex

import (
	"cmp"
	"reflect"
)

// Number 可求和的数值类型
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// ============================================================================
// 归约
// ============================================================================

// Reduce 完成时发射累积结果，空序列发射seed
func Reduce[T, A any](accumulator Accumulator[T, A], seed A) Operator[T, A] {
	return func(source Observable[T]) Observable[A] {
		return Pipe2(source, Scan(accumulator, seed), LastOrDefault[A](nil, seed))
	}
}

// Count 统计满足谓词的值的数量，predicate为nil时统计全部
func Count[T any](predicate Predicate[T]) Operator[T, int] {
	return func(source Observable[T]) Observable[int] {
		if predicate != nil {
			source = Filter(predicate)(source)
		}
		return Reduce(func(n int, _ T) (int, error) { return n + 1, nil }, 0)(source)
	}
}

// Sum 求和
func Sum[T Number]() Operator[T, T] {
	return Reduce(func(acc T, value T) (T, error) { return acc + value, nil }, 0)
}

// Average 求平均值，空序列以ErrSequenceContainsNoElements终止
func Average[T Number]() Operator[T, float64] {
	return func(source Observable[T]) Observable[float64] {
		return Create(func(observer Observer[float64], scheduler Scheduler) Disposable {
			var sum float64
			count := 0
			return source.Subscribe(NewObserver(func(value T) {
				sum += float64(value)
				count++
			}, observer.OnError, func() {
				if count == 0 {
					observer.OnError(ErrSequenceContainsNoElements)
					return
				}
				observer.OnNext(sum / float64(count))
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// Min 最小值，空序列以ErrSequenceContainsNoElements终止
func Min[T cmp.Ordered]() Operator[T, T] {
	return extremum(func(a, b T) bool { return cmp.Less(b, a) })
}

// Max 最大值，空序列以ErrSequenceContainsNoElements终止
func Max[T cmp.Ordered]() Operator[T, T] {
	return extremum(func(a, b T) bool { return cmp.Less(a, b) })
}

// MinBy 按比较函数取最小值
func MinBy[T any](compare func(a, b T) int) Operator[T, T] {
	return extremum(func(a, b T) bool { return compare(b, a) < 0 })
}

// MaxBy 按比较函数取最大值
func MaxBy[T any](compare func(a, b T) int) Operator[T, T] {
	return extremum(func(a, b T) bool { return compare(a, b) < 0 })
}

// extremum replace(current, candidate)为true时用candidate替换current
func extremum[T any](replace func(current, candidate T) bool) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			var current T
			seen := false
			return source.Subscribe(NewObserver(func(value T) {
				if !seen {
					current = value
					seen = true
					return
				}
				var ok bool
				if err := tryCall(func() { ok = replace(current, value) }); err != nil {
					observer.OnError(err)
					return
				}
				if ok {
					current = value
				}
			}, observer.OnError, func() {
				if !seen {
					observer.OnError(ErrSequenceContainsNoElements)
					return
				}
				observer.OnNext(current)
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// ============================================================================
// 收集
// ============================================================================

// ToList 完成时发射所有值组成的切片
func ToList[T any]() Operator[T, []T] {
	return func(source Observable[T]) Observable[[]T] {
		return Create(func(observer Observer[[]T], scheduler Scheduler) Disposable {
			items := []T{}
			return source.Subscribe(NewObserver(func(value T) {
				items = append(items, value)
			}, observer.OnError, func() {
				observer.OnNext(items)
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// ToSet 完成时发射所有不同值组成的集合
func ToSet[T comparable]() Operator[T, map[T]struct{}] {
	return func(source Observable[T]) Observable[map[T]struct{}] {
		return Create(func(observer Observer[map[T]struct{}], scheduler Scheduler) Disposable {
			set := make(map[T]struct{})
			return source.Subscribe(NewObserver(func(value T) {
				set[value] = struct{}{}
			}, observer.OnError, func() {
				observer.OnNext(set)
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// ToMap 完成时发射按键归类的映射，相同键保留最后一个值
func ToMap[T any, K comparable, V any](keySelector func(T) K, elementSelector func(T) V) Operator[T, map[K]V] {
	return func(source Observable[T]) Observable[map[K]V] {
		return Create(func(observer Observer[map[K]V], scheduler Scheduler) Disposable {
			m := make(map[K]V)
			return source.Subscribe(NewObserver(func(value T) {
				err := tryCall(func() {
					m[keySelector(value)] = elementSelector(value)
				})
				if err != nil {
					observer.OnError(err)
				}
			}, observer.OnError, func() {
				observer.OnNext(m)
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// ============================================================================
// 布尔判断
// ============================================================================

// All 所有值都满足谓词时发射true，遇到第一个不满足的值立即发射false
func All[T any](predicate Predicate[T]) Operator[T, bool] {
	return func(source Observable[T]) Observable[bool] {
		return Create(func(observer Observer[bool], scheduler Scheduler) Disposable {
			return source.Subscribe(NewObserver(func(value T) {
				var ok bool
				if err := tryCall(func() { ok = predicate(value) }); err != nil {
					observer.OnError(err)
					return
				}
				if !ok {
					observer.OnNext(false)
					observer.OnCompleted()
				}
			}, observer.OnError, func() {
				observer.OnNext(true)
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// Some 存在满足谓词的值时立即发射true，predicate为nil时判断序列是否非空
func Some[T any](predicate Predicate[T]) Operator[T, bool] {
	return func(source Observable[T]) Observable[bool] {
		return Create(func(observer Observer[bool], scheduler Scheduler) Disposable {
			return source.Subscribe(NewObserver(func(value T) {
				ok := true
				if predicate != nil {
					if err := tryCall(func() { ok = predicate(value) }); err != nil {
						observer.OnError(err)
						return
					}
				}
				if ok {
					observer.OnNext(true)
					observer.OnCompleted()
				}
			}, observer.OnError, func() {
				observer.OnNext(false)
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// Contains 是否包含指定值
func Contains[T comparable](value T) Operator[T, bool] {
	return Some(func(v T) bool { return v == value })
}

// IsEmpty 序列是否为空
func IsEmpty[T any]() Operator[T, bool] {
	return func(source Observable[T]) Observable[bool] {
		return Map(func(some bool) (bool, error) { return !some, nil })(Some[T](nil)(source))
	}
}

// SequenceEqual 两个序列是否逐项相等，comparer为nil时使用reflect.DeepEqual
func SequenceEqual[T any](second Observable[T], comparer Comparer[T]) Operator[T, bool] {
	if comparer == nil {
		comparer = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	return func(first Observable[T]) Observable[bool] {
		return Create(func(observer Observer[bool], scheduler Scheduler) Disposable {
			gate := &serializer{}
			var ql, qr []T
			var doneL, doneR bool

			emit := func(equal bool) {
				observer.OnNext(equal)
				observer.OnCompleted()
			}

			// side: 本侧队列、对侧队列、对侧是否完成
			onNext := func(value T, mine, theirs *[]T, theirDone *bool) {
				if len(*theirs) > 0 {
					v := (*theirs)[0]
					*theirs = (*theirs)[1:]
					var equal bool
					if err := tryCall(func() { equal = comparer(v, value) }); err != nil {
						observer.OnError(err)
						return
					}
					if !equal {
						emit(false)
					}
				} else if *theirDone {
					emit(false)
				} else {
					*mine = append(*mine, value)
				}
			}
			onCompleted := func(myDone *bool, mine, theirs []T, theirDone bool) {
				*myDone = true
				if len(mine) == 0 {
					if len(theirs) > 0 {
						emit(false)
					} else if theirDone {
						emit(true)
					}
				}
			}

			subscriptionL := first.Subscribe(NewObserver(func(value T) {
				gate.Do(func() { onNext(value, &ql, &qr, &doneR) })
			}, func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}, func() {
				gate.Do(func() { onCompleted(&doneL, ql, qr, doneR) })
			}), scheduler)

			subscriptionR := second.Subscribe(NewObserver(func(value T) {
				gate.Do(func() { onNext(value, &qr, &ql, &doneL) })
			}, func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}, func() {
				gate.Do(func() { onCompleted(&doneR, qr, ql, doneL) })
			}), scheduler)

			return NewCompositeDisposable(subscriptionL, subscriptionR)
		})
	}
}

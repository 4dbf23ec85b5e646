// Combination operators for reactivex
// 组合操作符实现，包含Merge, Concat, Zip, CombineLatest, SwitchLatest等
package reactivex

import (
	"iter"
	"slices"
	"sync"
)

// ============================================================================
// Merge 系列
// ============================================================================

// Merge 合并多个序列，所有源完成后完成，任一源出错即终止
func Merge[T any](sources ...Observable[T]) Observable[T] {
	return MergeAll[T](0)(FromSlice(sources))
}

// MergeWith 把源与others合并
func MergeWith[T any](others ...Observable[T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Merge(append([]Observable[T]{source}, others...)...)
	}
}

// MergeAll 展平高阶序列，maxConcurrent<=0表示不限制并发订阅数，
// 超出并发数的内部序列排队，等前一个完成后再订阅
func MergeAll[T any](maxConcurrent int) Operator[Observable[T], T] {
	return func(sources Observable[Observable[T]]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			gate := &serializer{}
			group := NewCompositeDisposable()
			active := 0
			stopped := false
			var queue []Observable[T]

			onError := func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}

			// subscribe 只在闸门内调用
			var subscribe func(inner Observable[T])
			subscribe = func(inner Observable[T]) {
				active++
				slot := NewSingleAssignmentDisposable()
				group.Add(slot)

				slot.SetDisposable(inner.Subscribe(NewObserver(func(value T) {
					gate.Do(func() { observer.OnNext(value) })
				}, onError, func() {
					gate.Do(func() {
						group.Remove(slot)
						if len(queue) > 0 {
							next := queue[0]
							queue = queue[1:]
							active--
							subscribe(next)
							return
						}
						active--
						if stopped && active == 0 {
							observer.OnCompleted()
						}
					})
				}), scheduler))
			}

			outer := NewSingleAssignmentDisposable()
			group.Add(outer)
			outer.SetDisposable(sources.Subscribe(NewObserver(func(inner Observable[T]) {
				gate.Do(func() {
					if maxConcurrent <= 0 || active < maxConcurrent {
						subscribe(inner)
					} else {
						queue = append(queue, inner)
					}
				})
			}, onError, func() {
				gate.Do(func() {
					stopped = true
					if active == 0 {
						observer.OnCompleted()
					}
				})
			}), scheduler))

			return group
		})
	}
}

// FlatMap 把每个值映射为序列并合并
func FlatMap[T, R any](mapper func(T) Observable[R]) Operator[T, R] {
	return Compose(Map(func(value T) (Observable[R], error) {
		return mapper(value), nil
	}), MergeAll[R](0))
}

// FlatMapIndexed 带索引的FlatMap
func FlatMapIndexed[T, R any](mapper func(T, int) Observable[R]) Operator[T, R] {
	return Compose(MapIndexed(func(value T, index int) (Observable[R], error) {
		return mapper(value, index), nil
	}), MergeAll[R](0))
}

// ============================================================================
// Concat 系列
// ============================================================================

// Concat 依次连接多个序列，前一个完成后才订阅下一个
func Concat[T any](sources ...Observable[T]) Observable[T] {
	return ConcatIterable(slices.Values(sources))
}

// ConcatWith 在源之后依次连接others
func ConcatWith[T any](others ...Observable[T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Concat(append([]Observable[T]{source}, others...)...)
	}
}

// ConcatIterable 依次连接迭代器产生的序列
//
// 每个源完成后在调度器上调度下一次订阅（默认当前goroutine的蹦床），
// 因此长链不会加深调用栈。迭代器panic时以错误终止。
func ConcatIterable[T any](sources iter.Seq[Observable[T]]) Observable[T] {
	return chainIterable(sources, chainConcat)
}

// chainMode 源终止后是否继续订阅下一个源
type chainMode int

const (
	// chainConcat 完成时继续，出错时终止
	chainConcat chainMode = iota
	// chainCatch 出错时继续，完成时终止；源耗尽时以最后一个错误终止
	chainCatch
	// chainResume 完成或出错都继续
	chainResume
)

// chainIterable 依次订阅迭代器中的源
func chainIterable[T any](sources iter.Seq[Observable[T]], mode chainMode) Observable[T] {
	return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
		s := pickScheduler(nil, scheduler, currentThreadScheduler)

		var mu sync.Mutex
		next, stop := iter.Pull(sources)
		disposed := false
		var lastErr error

		pull := func() (Observable[T], bool, error) {
			mu.Lock()
			defer mu.Unlock()
			if disposed {
				return nil, false, nil
			}
			var current Observable[T]
			var ok bool
			err := tryCall(func() { current, ok = next() })
			return current, ok, err
		}

		subscription := NewSerialDisposable()
		cancelable := NewSerialDisposable()

		var action ScheduledAction
		action = func(Scheduler, any) Disposable {
			current, ok, err := pull()
			switch {
			case err != nil:
				observer.OnError(err)
			case !ok:
				mu.Lock()
				finished := !disposed
				failure := lastErr
				mu.Unlock()
				if !finished {
					return nil
				}
				if failure != nil {
					observer.OnError(failure)
				} else {
					observer.OnCompleted()
				}
			default:
				onError := observer.OnError
				if mode != chainConcat {
					onError = func(err error) {
						if mode == chainCatch {
							mu.Lock()
							lastErr = err
							mu.Unlock()
						}
						cancelable.SetDisposable(s.Schedule(action, nil))
					}
				}
				onCompleted := observer.OnCompleted
				if mode != chainCatch {
					onCompleted = func() {
						cancelable.SetDisposable(s.Schedule(action, nil))
					}
				}

				d := NewSingleAssignmentDisposable()
				subscription.SetDisposable(d)
				d.SetDisposable(current.Subscribe(NewObserver(observer.OnNext, onError, onCompleted), scheduler))
			}
			return nil
		}

		cancelable.SetDisposable(s.Schedule(action, nil))

		return NewCompositeDisposable(subscription, cancelable, NewDisposable(func() {
			mu.Lock()
			defer mu.Unlock()
			disposed = true
			stop()
		}))
	})
}

// ConcatAll 依次连接高阶序列中的每个内部序列
func ConcatAll[T any]() Operator[Observable[T], T] {
	return MergeAll[T](1)
}

// ConcatMap 把每个值映射为序列并依次连接
func ConcatMap[T, R any](mapper func(T) Observable[R]) Operator[T, R] {
	return Compose(Map(func(value T) (Observable[R], error) {
		return mapper(value), nil
	}), ConcatAll[R]())
}

// WhileDo condition为true时反复订阅源
func WhileDo[T any](condition func(source Observable[T]) bool) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return ConcatIterable(func(yield func(Observable[T]) bool) {
			for condition(source) {
				if !yield(source) {
					return
				}
			}
		})
	}
}

// ============================================================================
// CombineLatest
// ============================================================================

// CombineLatest 任一源发射时组合所有源的最新值，所有源都至少发射过一次后才开始发射。
// 某个源未发射就完成时结果直接完成；否则所有源完成后完成。
func CombineLatest[T any](sources ...Observable[T]) Observable[[]T] {
	n := len(sources)
	if n == 0 {
		return Empty[[]T]()
	}
	return Create(func(observer Observer[[]T], scheduler Scheduler) Disposable {
		gate := &serializer{}
		values := make([]T, n)
		hasValue := make([]bool, n)
		done := make([]bool, n)
		hasValueAll := false

		allOf := func(flags []bool, except int) bool {
			for i, f := range flags {
				if i != except && !f {
					return false
				}
			}
			return true
		}

		subscriptions := NewCompositeDisposable()
		for i, source := range sources {
			slot := NewSingleAssignmentDisposable()
			subscriptions.Add(slot)
			slot.SetDisposable(source.Subscribe(NewObserver(func(value T) {
				gate.Do(func() {
					values[i] = value
					hasValue[i] = true
					if hasValueAll || allOf(hasValue, -1) {
						hasValueAll = true
						observer.OnNext(slices.Clone(values))
					}
				})
			}, func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}, func() {
				gate.Do(func() {
					done[i] = true
					if !hasValue[i] || allOf(done, -1) {
						observer.OnCompleted()
					}
				})
			}), scheduler))
		}
		return subscriptions
	})
}

// CombineLatest2 组合两个不同类型的源
func CombineLatest2[A, B, R any](a Observable[A], b Observable[B], combiner func(A, B) R) Observable[R] {
	return Pipe1(CombineLatest(toAny(a), toAny(b)), Map(func(values []any) (R, error) {
		return combiner(values[0].(A), values[1].(B)), nil
	}))
}

// CombineLatestWith 源与others组合
func CombineLatestWith[T any](others ...Observable[T]) Operator[T, []T] {
	return func(source Observable[T]) Observable[[]T] {
		return CombineLatest(append([]Observable[T]{source}, others...)...)
	}
}

// toAny 擦除元素类型，供异构组合使用
func toAny[T any](source Observable[T]) Observable[any] {
	return Map(func(value T) (any, error) {
		return value, nil
	})(source)
}

// ============================================================================
// WithLatestFrom
// ============================================================================

// WithLatestFrom 源发射时与other的最新值组合，other还没有值时丢弃；
// other完成不影响结果，源完成时结果完成
func WithLatestFrom[T, U, R any](other Observable[U], combiner func(T, U) R) Operator[T, R] {
	return func(source Observable[T]) Observable[R] {
		return Create(func(observer Observer[R], scheduler Scheduler) Disposable {
			gate := &serializer{}
			var latest U
			hasLatest := false

			otherSubscription := NewSingleAssignmentDisposable()
			otherSubscription.SetDisposable(other.Subscribe(NewObserver(func(value U) {
				gate.Do(func() {
					latest = value
					hasLatest = true
				})
			}, func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}, nil), scheduler))

			sourceSubscription := NewSingleAssignmentDisposable()
			sourceSubscription.SetDisposable(source.Subscribe(NewObserver(func(value T) {
				gate.Do(func() {
					if !hasLatest {
						return
					}
					result, err := tryCall1(func() (R, error) {
						return combiner(value, latest), nil
					})
					if err != nil {
						observer.OnError(err)
						return
					}
					observer.OnNext(result)
				})
			}, func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}, func() {
				gate.Do(observer.OnCompleted)
			}), scheduler))

			return NewCompositeDisposable(otherSubscription, sourceSubscription)
		})
	}
}

// ============================================================================
// Zip
// ============================================================================

// Zip 按位置配对各源的值，每个源都有排队值时弹出一组发射；
// 已完成且队列为空的源使结果完成
func Zip[T any](sources ...Observable[T]) Observable[[]T] {
	n := len(sources)
	if n == 0 {
		return Empty[[]T]()
	}
	return Create(func(observer Observer[[]T], scheduler Scheduler) Disposable {
		gate := &serializer{}
		queues := make([][]T, n)
		completed := make([]bool, n)

		emit := func() {
			for _, q := range queues {
				if len(q) == 0 {
					return
				}
			}
			values := make([]T, n)
			for i := range queues {
				values[i] = queues[i][0]
				queues[i] = queues[i][1:]
			}
			observer.OnNext(values)

			for i, q := range queues {
				if completed[i] && len(q) == 0 {
					observer.OnCompleted()
					return
				}
			}
		}

		subscriptions := NewCompositeDisposable()
		for i, source := range sources {
			slot := NewSingleAssignmentDisposable()
			subscriptions.Add(slot)
			slot.SetDisposable(source.Subscribe(NewObserver(func(value T) {
				gate.Do(func() {
					queues[i] = append(queues[i], value)
					emit()
				})
			}, func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}, func() {
				gate.Do(func() {
					completed[i] = true
					if len(queues[i]) == 0 {
						observer.OnCompleted()
					}
				})
			}), scheduler))
		}
		return subscriptions
	})
}

// Zip2 配对两个不同类型的源
func Zip2[A, B, R any](a Observable[A], b Observable[B], zipper func(A, B) R) Observable[R] {
	return Pipe1(Zip(toAny(a), toAny(b)), Map(func(values []any) (R, error) {
		return zipper(values[0].(A), values[1].(B)), nil
	}))
}

// ZipWith 源与others按位置配对
func ZipWith[T any](others ...Observable[T]) Operator[T, []T] {
	return func(source Observable[T]) Observable[[]T] {
		return Zip(append([]Observable[T]{source}, others...)...)
	}
}

// ZipWithIterable 源的每个值与迭代器的下一个值配对，迭代器耗尽时完成
func ZipWithIterable[T, U, R any](seq iter.Seq[U], zipper func(T, U) R) Operator[T, R] {
	return func(source Observable[T]) Observable[R] {
		return Create(func(observer Observer[R], scheduler Scheduler) Disposable {
			next, stop := iter.Pull(seq)
			var mu sync.Mutex

			subscription := source.Subscribe(NewObserver(func(value T) {
				mu.Lock()
				var other U
				var ok bool
				err := tryCall(func() { other, ok = next() })
				mu.Unlock()

				if err != nil {
					observer.OnError(err)
					return
				}
				if !ok {
					observer.OnCompleted()
					return
				}
				result, err := tryCall1(func() (R, error) {
					return zipper(value, other), nil
				})
				if err != nil {
					observer.OnError(err)
					return
				}
				observer.OnNext(result)
			}, observer.OnError, observer.OnCompleted), scheduler)

			return NewCompositeDisposable(subscription, NewDisposable(func() {
				mu.Lock()
				defer mu.Unlock()
				stop()
			}))
		})
	}
}

// ============================================================================
// Switch
// ============================================================================

// SwitchLatest 总是只订阅最新的内部序列，新的内部序列到来时释放前一个；
// 外部完成且当前内部序列也完成时结果完成
func SwitchLatest[T any]() Operator[Observable[T], T] {
	return func(sources Observable[Observable[T]]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			gate := &serializer{}
			innerSubscription := NewSerialDisposable()
			latest := 0
			hasLatest := false
			stopped := false

			subscription := sources.Subscribe(NewObserver(func(inner Observable[T]) {
				gate.Do(func() {
					latest++
					id := latest
					hasLatest = true

					d := NewSingleAssignmentDisposable()
					innerSubscription.SetDisposable(d)
					d.SetDisposable(inner.Subscribe(NewObserver(func(value T) {
						gate.Do(func() {
							if latest == id {
								observer.OnNext(value)
							}
						})
					}, func(err error) {
						gate.Do(func() {
							if latest == id {
								observer.OnError(err)
							}
						})
					}, func() {
						gate.Do(func() {
							if latest == id {
								hasLatest = false
								if stopped {
									observer.OnCompleted()
								}
							}
						})
					}), scheduler))
				})
			}, func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}, func() {
				gate.Do(func() {
					stopped = true
					if !hasLatest {
						observer.OnCompleted()
					}
				})
			}), scheduler)

			return NewCompositeDisposable(subscription, innerSubscription)
		})
	}
}

// SwitchMap 把每个值映射为序列，只转发最新映射出的序列
func SwitchMap[T, R any](mapper func(T) Observable[R]) Operator[T, R] {
	return Compose(Map(func(value T) (Observable[R], error) {
		return mapper(value), nil
	}), SwitchLatest[R]())
}

// SwitchMapIndexed 带索引的SwitchMap
func SwitchMapIndexed[T, R any](mapper func(T, int) Observable[R]) Operator[T, R] {
	return Compose(MapIndexed(func(value T, index int) (Observable[R], error) {
		return mapper(value, index), nil
	}), SwitchLatest[R]())
}

// Exclusive 内部序列活跃时忽略新到来的内部序列
func Exclusive[T any]() Operator[Observable[T], T] {
	return func(sources Observable[Observable[T]]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			gate := &serializer{}
			hasCurrent := false
			stopped := false

			group := NewCompositeDisposable()
			outer := NewSingleAssignmentDisposable()
			group.Add(outer)

			outer.SetDisposable(sources.Subscribe(NewObserver(func(inner Observable[T]) {
				gate.Do(func() {
					if hasCurrent {
						return
					}
					hasCurrent = true

					slot := NewSingleAssignmentDisposable()
					group.Add(slot)
					slot.SetDisposable(inner.Subscribe(NewObserver(func(value T) {
						gate.Do(func() { observer.OnNext(value) })
					}, func(err error) {
						gate.Do(func() { observer.OnError(err) })
					}, func() {
						gate.Do(func() {
							group.Remove(slot)
							hasCurrent = false
							if stopped && group.Len() == 1 {
								observer.OnCompleted()
							}
						})
					}), scheduler))
				})
			}, func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}, func() {
				gate.Do(func() {
					stopped = true
					if !hasCurrent && group.Len() == 1 {
						observer.OnCompleted()
					}
				})
			}), scheduler))

			return group
		})
	}
}

// ============================================================================
// ForkJoin / Amb
// ============================================================================

// ForkJoin 所有源完成后发射各自的最后一个值，任一源没有值就完成时直接完成
func ForkJoin[T any](sources ...Observable[T]) Observable[[]T] {
	n := len(sources)
	if n == 0 {
		return Empty[[]T]()
	}
	return Create(func(observer Observer[[]T], scheduler Scheduler) Disposable {
		gate := &serializer{}
		values := make([]T, n)
		hasValue := make([]bool, n)
		done := make([]bool, n)

		subscriptions := NewCompositeDisposable()
		for i, source := range sources {
			slot := NewSingleAssignmentDisposable()
			subscriptions.Add(slot)
			slot.SetDisposable(source.Subscribe(NewObserver(func(value T) {
				gate.Do(func() {
					values[i] = value
					hasValue[i] = true
				})
			}, func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}, func() {
				gate.Do(func() {
					done[i] = true
					if !hasValue[i] {
						observer.OnCompleted()
						return
					}
					if !slices.Contains(done, false) {
						observer.OnNext(slices.Clone(values))
						observer.OnCompleted()
					}
				})
			}), scheduler))
		}
		return subscriptions
	})
}

// Amb 竞速操作符，只转发最先发出任何通知的源，其余源被释放
func Amb[T any](sources ...Observable[T]) Observable[T] {
	if len(sources) == 0 {
		return Never[T]()
	}
	if len(sources) == 1 {
		return sources[0]
	}
	return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
		gate := &serializer{}
		winner := -1
		slots := make([]*SingleAssignmentDisposable, len(sources))
		for i := range slots {
			slots[i] = NewSingleAssignmentDisposable()
		}

		// win 返回i是否是胜出者，第一次决出胜者时释放其余源
		win := func(i int) bool {
			if winner == -1 {
				winner = i
				for j, slot := range slots {
					if j != i {
						slot.Dispose()
					}
				}
			}
			return winner == i
		}

		for i, source := range sources {
			slots[i].SetDisposable(source.Subscribe(NewObserver(func(value T) {
				gate.Do(func() {
					if win(i) {
						observer.OnNext(value)
					}
				})
			}, func(err error) {
				gate.Do(func() {
					if win(i) {
						observer.OnError(err)
					}
				})
			}, func() {
				gate.Do(func() {
					if win(i) {
						observer.OnCompleted()
					}
				})
			}), scheduler))
		}

		disposables := make([]Disposable, len(slots))
		for i, slot := range slots {
			disposables[i] = slot
		}
		return NewCompositeDisposable(disposables...)
	})
}

// Race Amb的别名
func Race[T any](sources ...Observable[T]) Observable[T] {
	return Amb(sources...)
}

// AmbWith 源与others竞速
func AmbWith[T any](others ...Observable[T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Amb(append([]Observable[T]{source}, others...)...)
	}
}

// ============================================================================
// Partition
// ============================================================================

// Partition 把源共享后拆分为满足谓词和不满足谓词的两个序列
func Partition[T any](predicate Predicate[T]) func(Observable[T]) [2]Observable[T] {
	return func(source Observable[T]) [2]Observable[T] {
		published := Share[T]()(source)
		return [2]Observable[T]{
			Filter(predicate)(published),
			Filter(func(value T) bool { return !predicate(value) })(published),
		}
	}
}

// Advanced operators for reactivex
// 高级操作符实现，包含GroupBy, Window, Buffer, Expand, Join等
package reactivex

import (
	"sync"

	"github.com/pkg/errors"
)

// ============================================================================
// 分组Observable
// ============================================================================

// Pair 二元组
type Pair[A, B any] struct {
	First  A
	Second B
}

// GroupedObservable 分组Observable，包含键和该组的元素序列
type GroupedObservable[K comparable, T any] struct {
	Observable[T]
	Key K
}

// newGroupedObservable 创建分组，refCount不为nil时每个订阅持有一个引用
func newGroupedObservable[K comparable, T any](key K, underlying Observable[T], refCount *RefCountDisposable) *GroupedObservable[K, T] {
	if refCount != nil {
		underlying = addRef(underlying, refCount)
	}
	return &GroupedObservable[K, T]{Observable: underlying, Key: key}
}

// addRef 订阅期间持有refCount的一个内部句柄
func addRef[T any](source Observable[T], refCount *RefCountDisposable) Observable[T] {
	return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
		return NewCompositeDisposable(refCount.Disposable(), source.Subscribe(observer, scheduler))
	})
}

// ============================================================================
// GroupBy
// ============================================================================

// GroupBy 按键分组，每个新键发射一个GroupedObservable
func GroupBy[T any, K comparable](keyMapper func(T) K) Operator[T, *GroupedObservable[K, T]] {
	return GroupByUntil[T, K, T, struct{}](keyMapper, nil, nil)
}

// GroupByElement 按键分组并转换组内元素
func GroupByElement[T any, K comparable, V any](keyMapper func(T) K, elementMapper func(T) V) Operator[T, *GroupedObservable[K, V]] {
	return GroupByUntil[T, K, V, struct{}](keyMapper, elementMapper, nil)
}

// GroupByUntil 按键分组，durationMapper返回的序列发射第一个值或完成时该组完成并移除，
// 之后同一个键的元素会创建新的组。elementMapper为nil时元素原样放入组中，
// durationMapper为nil时组永不过期。
//
// 源出错或任一mapper失败时所有活跃组和结果一起以错误终止；
// 结果订阅被释放后，仍有订阅者的组继续接收元素直到它们也被释放。
func GroupByUntil[T any, K comparable, V, D any](keyMapper func(T) K, elementMapper func(T) V, durationMapper func(*GroupedObservable[K, V]) Observable[D]) Operator[T, *GroupedObservable[K, V]] {
	if elementMapper == nil {
		elementMapper = func(value T) V {
			return any(value).(V)
		}
	}
	return func(source Observable[T]) Observable[*GroupedObservable[K, V]] {
		return Create(func(observer Observer[*GroupedObservable[K, V]], scheduler Scheduler) Disposable {
			gate := &serializer{}
			writers := make(map[K]*Subject[V])
			var order []K

			groupDisposable := NewCompositeDisposable()
			refCount := NewRefCountDisposable(groupDisposable)

			remove := func(key K) {
				delete(writers, key)
				for i, k := range order {
					if k == key {
						order = append(order[:i], order[i+1:]...)
						break
					}
				}
			}

			// fail 以错误终止所有组和结果，只在闸门内调用
			fail := func(err error) {
				for _, key := range order {
					writers[key].OnError(err)
				}
				writers = make(map[K]*Subject[V])
				order = nil
				observer.OnError(err)
			}

			onNext := func(value T) {
				var key K
				if err := tryCall(func() { key = keyMapper(value) }); err != nil {
					fail(err)
					return
				}

				writer, ok := writers[key]
				if !ok {
					writer = NewSubject[V]()
					writers[key] = writer
					order = append(order, key)

					var duration Observable[D]
					if durationMapper != nil {
						durationGroup := newGroupedObservable[K, V](key, writer, nil)
						if err := tryCall(func() { duration = durationMapper(durationGroup) }); err != nil {
							fail(err)
							return
						}
					}

					observer.OnNext(newGroupedObservable[K, V](key, writer, refCount))

					if duration != nil {
						expired := writer
						slot := NewSingleAssignmentDisposable()
						groupDisposable.Add(slot)

						expire := func() {
							gate.Do(func() {
								if current, ok := writers[key]; ok && current == expired {
									remove(key)
									expired.OnCompleted()
								}
								groupDisposable.Remove(slot)
							})
						}
						slot.SetDisposable(Take[D](1)(duration).Subscribe(NewObserver(func(D) {}, func(err error) {
							gate.Do(func() { fail(err) })
						}, expire), scheduler))
					}
				}

				var element V
				if err := tryCall(func() { element = elementMapper(value) }); err != nil {
					fail(err)
					return
				}
				writer.OnNext(element)
			}

			groupDisposable.Add(source.Subscribe(NewObserver(func(value T) {
				gate.Do(func() { onNext(value) })
			}, func(err error) {
				gate.Do(func() { fail(err) })
			}, func() {
				gate.Do(func() {
					for _, key := range order {
						writers[key].OnCompleted()
					}
					writers = make(map[K]*Subject[V])
					order = nil
					observer.OnCompleted()
				})
			}), scheduler))

			return refCount
		})
	}
}

// ============================================================================
// Window
// ============================================================================

// Window boundaries每发射一次就关闭当前窗口并打开新窗口
func Window[T, B any](boundaries Observable[B]) Operator[T, Observable[T]] {
	return func(source Observable[T]) Observable[Observable[T]] {
		return Create(func(observer Observer[Observable[T]], scheduler Scheduler) Disposable {
			gate := &serializer{}
			window := NewSubject[T]()
			d := NewCompositeDisposable()
			refCount := NewRefCountDisposable(d)

			observer.OnNext(addRef[T](window, refCount))

			onError := func(err error) {
				gate.Do(func() {
					window.OnError(err)
					observer.OnError(err)
				})
			}
			onCompleted := func() {
				gate.Do(func() {
					window.OnCompleted()
					observer.OnCompleted()
				})
			}

			d.Add(source.Subscribe(NewObserver(func(value T) {
				gate.Do(func() { window.OnNext(value) })
			}, onError, onCompleted), scheduler))

			d.Add(boundaries.Subscribe(NewObserver(func(B) {
				gate.Do(func() {
					window.OnCompleted()
					window = NewSubject[T]()
					observer.OnNext(addRef[T](window, refCount))
				})
			}, onError, onCompleted), scheduler))

			return refCount
		})
	}
}

// WindowWhen closingMapper返回的序列发射第一个值或完成时关闭当前窗口并打开新窗口
func WindowWhen[T, C any](closingMapper func() Observable[C]) Operator[T, Observable[T]] {
	return func(source Observable[T]) Observable[Observable[T]] {
		return Create(func(observer Observer[Observable[T]], scheduler Scheduler) Disposable {
			gate := &serializer{}
			m := NewSerialDisposable()
			d := NewCompositeDisposable(m)
			refCount := NewRefCountDisposable(d)
			window := NewSubject[T]()

			observer.OnNext(addRef[T](window, refCount))

			onError := func(err error) {
				gate.Do(func() {
					window.OnError(err)
					observer.OnError(err)
				})
			}

			d.Add(source.Subscribe(NewObserver(func(value T) {
				gate.Do(func() { window.OnNext(value) })
			}, onError, func() {
				gate.Do(func() {
					window.OnCompleted()
					observer.OnCompleted()
				})
			}), scheduler))

			var createWindowClose func()
			createWindowClose = func() {
				var closing Observable[C]
				if err := tryCall(func() { closing = closingMapper() }); err != nil {
					gate.Do(func() { observer.OnError(err) })
					return
				}
				slot := NewSingleAssignmentDisposable()
				m.SetDisposable(slot)
				slot.SetDisposable(Take[C](1)(closing).Subscribe(NewObserver(func(C) {}, onError, func() {
					gate.Do(func() {
						window.OnCompleted()
						window = NewSubject[T]()
						observer.OnNext(addRef[T](window, refCount))
					})
					createWindowClose()
				}), scheduler))
			}
			createWindowClose()

			return refCount
		})
	}
}

// WindowToggle openings每发射一个值打开一个窗口，closingMapper返回的序列决定它何时关闭
func WindowToggle[T, O, C any](openings Observable[O], closingMapper func(O) Observable[C]) Operator[T, Observable[T]] {
	return func(source Observable[T]) Observable[Observable[T]] {
		return Pipe2(openings,
			GroupJoin(source, closingMapper, func(T) Observable[struct{}] { return Empty[struct{}]() }),
			Map(func(p Pair[O, Observable[T]]) (Observable[T], error) {
				return p.Second, nil
			}),
		)
	}
}

// WindowWithCount 每skip个元素打开一个新窗口，每个窗口收满count个元素后关闭。
// skip为0时等于count。
func WindowWithCount[T any](count, skip int) Operator[T, Observable[T]] {
	if skip == 0 {
		skip = count
	}
	return func(source Observable[T]) Observable[Observable[T]] {
		if count <= 0 || skip < 0 {
			return Throw[Observable[T]](errors.Wrapf(ErrArgumentOutOfRange, "window count %d skip %d", count, skip))
		}
		return Create(func(observer Observer[Observable[T]], scheduler Scheduler) Disposable {
			m := NewSingleAssignmentDisposable()
			refCount := NewRefCountDisposable(m)
			n := 0
			var queue []*Subject[T]

			createWindow := func() {
				s := NewSubject[T]()
				queue = append(queue, s)
				observer.OnNext(addRef[T](s, refCount))
			}
			createWindow()

			m.SetDisposable(source.Subscribe(NewObserver(func(value T) {
				for _, s := range queue {
					s.OnNext(value)
				}
				c := n - count + 1
				if c >= 0 && c%skip == 0 {
					s := queue[0]
					queue = queue[1:]
					s.OnCompleted()
				}
				n++
				if n%skip == 0 {
					createWindow()
				}
			}, func(err error) {
				for _, s := range queue {
					s.OnError(err)
				}
				queue = nil
				observer.OnError(err)
			}, func() {
				for _, s := range queue {
					s.OnCompleted()
				}
				queue = nil
				observer.OnCompleted()
			}), scheduler))

			return refCount
		})
	}
}

// ============================================================================
// Buffer
// ============================================================================

// Buffer boundaries每发射一次就发射当前缓冲区
func Buffer[T, B any](boundaries Observable[B]) Operator[T, []T] {
	return Compose(Window[T](boundaries), FlatMap(func(w Observable[T]) Observable[[]T] {
		return ToList[T]()(w)
	}))
}

// BufferWhen closingMapper返回的序列发射或完成时发射当前缓冲区
func BufferWhen[T, C any](closingMapper func() Observable[C]) Operator[T, []T] {
	return Compose(WindowWhen[T](closingMapper), FlatMap(func(w Observable[T]) Observable[[]T] {
		return ToList[T]()(w)
	}))
}

// BufferToggle openings打开缓冲区，closingMapper返回的序列决定何时发射
func BufferToggle[T, O, C any](openings Observable[O], closingMapper func(O) Observable[C]) Operator[T, []T] {
	return Compose(WindowToggle[T](openings, closingMapper), FlatMap(func(w Observable[T]) Observable[[]T] {
		return ToList[T]()(w)
	}))
}

// BufferWithCount 每skip个元素开始一个新缓冲区，收满count个后发射；
// 完成时发射剩余的非空缓冲区。skip为0时等于count。
func BufferWithCount[T any](count, skip int) Operator[T, []T] {
	if skip == 0 {
		skip = count
	}
	return func(source Observable[T]) Observable[[]T] {
		if count <= 0 || skip < 0 {
			return Throw[[]T](errors.Wrapf(ErrArgumentOutOfRange, "buffer count %d skip %d", count, skip))
		}
		return Create(func(observer Observer[[]T], scheduler Scheduler) Disposable {
			n := 0
			buffers := [][]T{make([]T, 0, count)}

			return source.Subscribe(NewObserver(func(value T) {
				for i := range buffers {
					buffers[i] = append(buffers[i], value)
				}
				if len(buffers) > 0 && len(buffers[0]) == count {
					full := buffers[0]
					buffers = buffers[1:]
					observer.OnNext(full)
				}
				n++
				if n%skip == 0 {
					buffers = append(buffers, make([]T, 0, count))
				}
			}, observer.OnError, func() {
				for _, buffer := range buffers {
					if len(buffer) > 0 {
						observer.OnNext(buffer)
					}
				}
				observer.OnCompleted()
			}), scheduler)
		})
	}
}

// ============================================================================
// Expand
// ============================================================================

// Expand 发射每个值并把mapper(value)返回的序列也递归展开，
// 所有展开出的序列都完成后完成。默认在立即调度器上展开，
// 无限展开时应指定会让出执行的调度器。
func Expand[T any](mapper func(T) Observable[T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			s := pickScheduler(nil, scheduler, ImmediateScheduler)
			gate := &serializer{}

			var mu sync.Mutex
			queue := []Observable[T]{source}
			active := 1
			acquired := false

			m := NewSerialDisposable()
			d := NewCompositeDisposable(m)

			var action ScheduledAction
			ensureActive := func() {
				mu.Lock()
				owner := false
				if len(queue) > 0 {
					owner = !acquired
					acquired = true
				}
				mu.Unlock()
				if owner {
					m.SetDisposable(s.Schedule(action, nil))
				}
			}

			action = func(Scheduler, any) Disposable {
				if d.IsDisposed() {
					return nil
				}
				mu.Lock()
				if len(queue) == 0 {
					acquired = false
					mu.Unlock()
					return nil
				}
				work := queue[0]
				queue = queue[1:]
				mu.Unlock()

				slot := NewSingleAssignmentDisposable()
				d.Add(slot)
				slot.SetDisposable(work.Subscribe(NewObserver(func(value T) {
					gate.Do(func() { observer.OnNext(value) })

					next, err := tryCall1(func() (Observable[T], error) {
						return mapper(value), nil
					})
					if err != nil {
						gate.Do(func() { observer.OnError(err) })
						return
					}
					mu.Lock()
					queue = append(queue, next)
					active++
					mu.Unlock()
					ensureActive()
				}, func(err error) {
					gate.Do(func() { observer.OnError(err) })
				}, func() {
					d.Remove(slot)
					mu.Lock()
					active--
					done := active == 0
					mu.Unlock()
					if done {
						gate.Do(observer.OnCompleted)
					}
				}), s))

				m.SetDisposable(s.Schedule(action, nil))
				return nil
			}

			ensureActive()
			return d
		})
	}
}

// ============================================================================
// Join
// ============================================================================

// Join 左右两个序列的元素在各自的持续期内重叠时配对发射
func Join[L, R, LD, RD any](right Observable[R], leftDuration func(L) Observable[LD], rightDuration func(R) Observable[RD]) Operator[L, Pair[L, R]] {
	return func(left Observable[L]) Observable[Pair[L, R]] {
		return Create(func(observer Observer[Pair[L, R]], scheduler Scheduler) Disposable {
			gate := &serializer{}
			group := NewCompositeDisposable()

			leftDone, rightDone := false, false
			leftID, rightID := 0, 0
			leftValues := newOrderedMap[L]()
			rightValues := newOrderedMap[R]()

			onError := func(err error) {
				gate.Do(func() { observer.OnError(err) })
			}

			group.Add(left.Subscribe(NewObserver(func(value L) {
				gate.Do(func() {
					id := leftID
					leftID++
					leftValues.set(id, value)

					var duration Observable[LD]
					if err := tryCall(func() { duration = leftDuration(value) }); err != nil {
						observer.OnError(err)
						return
					}

					slot := NewSingleAssignmentDisposable()
					group.Add(slot)
					slot.SetDisposable(Take[LD](1)(duration).Subscribe(NewObserver(func(LD) {}, onError, func() {
						gate.Do(func() {
							leftValues.delete(id)
							if leftValues.len() == 0 && leftDone {
								observer.OnCompleted()
							}
							group.Remove(slot)
						})
					}), scheduler))

					for _, r := range rightValues.values() {
						observer.OnNext(Pair[L, R]{First: value, Second: r})
					}
				})
			}, onError, func() {
				gate.Do(func() {
					leftDone = true
					if rightDone || leftValues.len() == 0 {
						observer.OnCompleted()
					}
				})
			}), scheduler))

			group.Add(right.Subscribe(NewObserver(func(value R) {
				gate.Do(func() {
					id := rightID
					rightID++
					rightValues.set(id, value)

					var duration Observable[RD]
					if err := tryCall(func() { duration = rightDuration(value) }); err != nil {
						observer.OnError(err)
						return
					}

					slot := NewSingleAssignmentDisposable()
					group.Add(slot)
					slot.SetDisposable(Take[RD](1)(duration).Subscribe(NewObserver(func(RD) {}, onError, func() {
						gate.Do(func() {
							rightValues.delete(id)
							if rightValues.len() == 0 && rightDone {
								observer.OnCompleted()
							}
							group.Remove(slot)
						})
					}), scheduler))

					for _, l := range leftValues.values() {
						observer.OnNext(Pair[L, R]{First: l, Second: value})
					}
				})
			}, onError, func() {
				gate.Do(func() {
					rightDone = true
					if leftDone || rightValues.len() == 0 {
						observer.OnCompleted()
					}
				})
			}), scheduler))

			return group
		})
	}
}

// GroupJoin 每个左元素配对一个序列，包含与它持续期重叠的所有右元素
func GroupJoin[L, R, LD, RD any](right Observable[R], leftDuration func(L) Observable[LD], rightDuration func(R) Observable[RD]) Operator[L, Pair[L, Observable[R]]] {
	return func(left Observable[L]) Observable[Pair[L, Observable[R]]] {
		return Create(func(observer Observer[Pair[L, Observable[R]]], scheduler Scheduler) Disposable {
			gate := &serializer{}
			group := NewCompositeDisposable()
			refCount := NewRefCountDisposable(group)

			leftID, rightID := 0, 0
			leftWindows := newOrderedMap[*Subject[R]]()
			rightValues := newOrderedMap[R]()

			// fail 只在闸门内调用
			fail := func(err error) {
				for _, w := range leftWindows.values() {
					w.OnError(err)
				}
				observer.OnError(err)
			}
			onError := func(err error) {
				gate.Do(func() { fail(err) })
			}

			group.Add(left.Subscribe(NewObserver(func(value L) {
				gate.Do(func() {
					window := NewSubject[R]()
					id := leftID
					leftID++
					leftWindows.set(id, window)

					observer.OnNext(Pair[L, Observable[R]]{First: value, Second: addRef[R](window, refCount)})
					for _, r := range rightValues.values() {
						window.OnNext(r)
					}

					var duration Observable[LD]
					if err := tryCall(func() { duration = leftDuration(value) }); err != nil {
						fail(err)
						return
					}

					slot := NewSingleAssignmentDisposable()
					group.Add(slot)
					slot.SetDisposable(Take[LD](1)(duration).Subscribe(NewObserver(func(LD) {}, onError, func() {
						gate.Do(func() {
							if leftWindows.delete(id) {
								window.OnCompleted()
							}
							group.Remove(slot)
						})
					}), scheduler))
				})
			}, onError, func() {
				gate.Do(observer.OnCompleted)
			}), scheduler))

			group.Add(right.Subscribe(NewObserver(func(value R) {
				gate.Do(func() {
					id := rightID
					rightID++
					rightValues.set(id, value)

					var duration Observable[RD]
					if err := tryCall(func() { duration = rightDuration(value) }); err != nil {
						fail(err)
						return
					}

					slot := NewSingleAssignmentDisposable()
					group.Add(slot)
					slot.SetDisposable(Take[RD](1)(duration).Subscribe(NewObserver(func(RD) {}, onError, func() {
						gate.Do(func() {
							rightValues.delete(id)
							group.Remove(slot)
						})
					}), scheduler))

					for _, w := range leftWindows.values() {
						w.OnNext(value)
					}
				})
			}, onError, nil), scheduler))

			return refCount
		})
	}
}

// orderedMap 按插入顺序遍历的id映射
type orderedMap[V any] struct {
	ids   []int
	items map[int]V
}

func newOrderedMap[V any]() *orderedMap[V] {
	return &orderedMap[V]{items: make(map[int]V)}
}

func (m *orderedMap[V]) set(id int, value V) {
	if _, ok := m.items[id]; !ok {
		m.ids = append(m.ids, id)
	}
	m.items[id] = value
}

func (m *orderedMap[V]) delete(id int) bool {
	if _, ok := m.items[id]; !ok {
		return false
	}
	delete(m.items, id)
	for i, v := range m.ids {
		if v == id {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			break
		}
	}
	return true
}

func (m *orderedMap[V]) len() int { return len(m.ids) }

func (m *orderedMap[V]) values() []V {
	values := make([]V, 0, len(m.ids))
	for _, id := range m.ids {
		values = append(values, m.items[id])
	}
	return values
}

// Package reactivex provides reactive extensions primitives for Go
// 基于推送的响应式编程核心：可观察序列、观察者、调度器与操作符
package reactivex

// ============================================================================
// 核心接口定义
// ============================================================================

// Observer 观察者接口，接收 OnNext* (OnError | OnCompleted)? 序列
type Observer[T any] interface {
	// OnNext 接收下一个值
	OnNext(value T)
	// OnError 接收错误，终止序列
	OnError(err error)
	// OnCompleted 接收完成信号，终止序列
	OnCompleted()
}

// Observable 可观察序列接口
type Observable[T any] interface {
	// Subscribe 订阅，observer为nil时使用空观察者，scheduler可以为nil
	Subscribe(observer Observer[T], scheduler Scheduler) Disposable
	// SubscribeWithCallbacks 使用回调函数订阅
	SubscribeWithCallbacks(onNext func(T), onError func(error), onCompleted func()) Disposable
}

// SubscribeFunc 订阅函数，Create的参数
type SubscribeFunc[T any] func(observer Observer[T], scheduler Scheduler) Disposable

// ============================================================================
// 函数类型定义
// ============================================================================

// Mapper 转换函数，返回错误时序列以该错误终止
type Mapper[T, R any] func(value T) (R, error)

// IndexedMapper 带索引的转换函数
type IndexedMapper[T, R any] func(value T, index int) (R, error)

// Predicate 谓词函数，用于过滤
type Predicate[T any] func(value T) bool

// IndexedPredicate 带索引的谓词函数
type IndexedPredicate[T any] func(value T, index int) bool

// Accumulator 累加函数
type Accumulator[T, A any] func(acc A, value T) (A, error)

// Comparer 相等比较函数
type Comparer[T any] func(a, b T) bool

// ============================================================================
// 操作符组合
// ============================================================================

// Operator 操作符：把一个可观察序列转换为另一个
type Operator[T, R any] func(source Observable[T]) Observable[R]

// Pipe 依次应用同类型的操作符
func Pipe[T any](source Observable[T], operators ...Operator[T, T]) Observable[T] {
	for _, op := range operators {
		source = op(source)
	}
	return source
}

// Pipe1 应用一个操作符
func Pipe1[A, B any](source Observable[A], op1 Operator[A, B]) Observable[B] {
	return op1(source)
}

// Pipe2 依次应用两个操作符
func Pipe2[A, B, C any](source Observable[A], op1 Operator[A, B], op2 Operator[B, C]) Observable[C] {
	return op2(op1(source))
}

// Pipe3 依次应用三个操作符
func Pipe3[A, B, C, D any](source Observable[A], op1 Operator[A, B], op2 Operator[B, C], op3 Operator[C, D]) Observable[D] {
	return op3(op2(op1(source)))
}

// Pipe4 依次应用四个操作符
func Pipe4[A, B, C, D, E any](source Observable[A], op1 Operator[A, B], op2 Operator[B, C], op3 Operator[C, D], op4 Operator[D, E]) Observable[E] {
	return op4(op3(op2(op1(source))))
}

// Pipe5 依次应用五个操作符
func Pipe5[A, B, C, D, E, F any](source Observable[A], op1 Operator[A, B], op2 Operator[B, C], op3 Operator[C, D], op4 Operator[D, E], op5 Operator[E, F]) Observable[F] {
	return op5(op4(op3(op2(op1(source)))))
}

// Pipe6 依次应用六个操作符
func Pipe6[A, B, C, D, E, F, G any](source Observable[A], op1 Operator[A, B], op2 Operator[B, C], op3 Operator[C, D], op4 Operator[D, E], op5 Operator[E, F], op6 Operator[F, G]) Observable[G] {
	return op6(op5(op4(op3(op2(op1(source))))))
}

// Compose 组合两个操作符
func Compose[A, B, C any](first Operator[A, B], second Operator[B, C]) Operator[A, C] {
	return func(source Observable[A]) Observable[C] {
		return second(first(source))
	}
}

// Chain 组合多个同类型操作符
func Chain[T any](operators ...Operator[T, T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Pipe(source, operators...)
	}
}

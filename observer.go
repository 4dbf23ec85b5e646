// Observers for reactivex
// 观察者实现：语法约束、自动解绑、跨调度器投递、重入检查
package reactivex

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ============================================================================
// BaseObserver
// ============================================================================

// BaseObserver 基于回调的观察者，保证 OnNext* (OnError | OnCompleted)? 语法
type BaseObserver[T any] struct {
	onNext      func(T)
	onError     func(error)
	onCompleted func()
	stopped     atomic.Bool
}

// NewObserver 创建观察者，nil回调为空操作，nil的onError记录日志
func NewObserver[T any](onNext func(T), onError func(error), onCompleted func()) *BaseObserver[T] {
	if onNext == nil {
		onNext = func(T) {}
	}
	if onError == nil {
		onError = defaultOnError
	}
	if onCompleted == nil {
		onCompleted = func() {}
	}
	return &BaseObserver[T]{
		onNext:      onNext,
		onError:     onError,
		onCompleted: onCompleted,
	}
}

// defaultOnError 未处理的错误
func defaultOnError(err error) {
	Logger().Error("unhandled error in observer", zap.Error(err))
}

// OnNext 接收下一个值
func (o *BaseObserver[T]) OnNext(value T) {
	if o.stopped.Load() {
		return
	}
	o.onNext(value)
}

// OnError 接收错误
func (o *BaseObserver[T]) OnError(err error) {
	if o.stopped.CompareAndSwap(false, true) {
		o.onError(err)
	}
}

// OnCompleted 接收完成信号
func (o *BaseObserver[T]) OnCompleted() {
	if o.stopped.CompareAndSwap(false, true) {
		o.onCompleted()
	}
}

// Fail 尝试以OnError投递错误，观察者已停止时返回false
func (o *BaseObserver[T]) Fail(err error) bool {
	if o.stopped.CompareAndSwap(false, true) {
		o.onError(err)
		return true
	}
	return false
}

// Dispose 停止接收通知
func (o *BaseObserver[T]) Dispose() {
	o.stopped.Store(true)
}

// IsStopped 是否已停止
func (o *BaseObserver[T]) IsStopped() bool {
	return o.stopped.Load()
}

// AsObserver 隐藏具体类型
func (o *BaseObserver[T]) AsObserver() Observer[T] {
	return NewObserver(o.OnNext, o.OnError, o.OnCompleted)
}

// ToNotifier 转换为接收通知的函数
func (o *BaseObserver[T]) ToNotifier() func(Notification[T]) {
	return func(n Notification[T]) {
		n.Accept(o)
	}
}

// ============================================================================
// autoDetachObserver
// ============================================================================

// autoDetachObserver 终止后自动释放订阅
type autoDetachObserver[T any] struct {
	observer     Observer[T]
	subscription *SingleAssignmentDisposable
	stopped      atomic.Bool
}

func newAutoDetachObserver[T any](observer Observer[T]) *autoDetachObserver[T] {
	return &autoDetachObserver[T]{
		observer:     observer,
		subscription: NewSingleAssignmentDisposable(),
	}
}

// OnNext 用户回调panic时转为OnError并释放订阅
func (o *autoDetachObserver[T]) OnNext(value T) {
	if o.stopped.Load() {
		return
	}
	if err := tryCall(func() { o.observer.OnNext(value) }); err != nil {
		if o.stopped.CompareAndSwap(false, true) {
			defer o.subscription.Dispose()
			o.observer.OnError(err)
		}
	}
}

// OnError 投递错误后释放订阅，OnError本身的panic在释放后继续传播
func (o *autoDetachObserver[T]) OnError(err error) {
	if !o.stopped.CompareAndSwap(false, true) {
		return
	}
	defer o.subscription.Dispose()
	o.observer.OnError(err)
}

// OnCompleted 投递完成后释放订阅
func (o *autoDetachObserver[T]) OnCompleted() {
	if !o.stopped.CompareAndSwap(false, true) {
		return
	}
	defer o.subscription.Dispose()
	o.observer.OnCompleted()
}

// Fail 订阅过程中的错误
func (o *autoDetachObserver[T]) Fail(err error) bool {
	if !o.stopped.CompareAndSwap(false, true) {
		return false
	}
	defer o.subscription.Dispose()
	o.observer.OnError(err)
	return true
}

// SetSubscription 挂载订阅
func (o *autoDetachObserver[T]) SetSubscription(d Disposable) {
	if d == nil {
		d = EmptyDisposable()
	}
	o.subscription.SetDisposable(d)
}

// Dispose 停止接收并释放订阅
func (o *autoDetachObserver[T]) Dispose() {
	o.stopped.Store(true)
	o.subscription.Dispose()
}

// ============================================================================
// ScheduledObserver
// ============================================================================

// ScheduledObserver 把通知排队，由目标调度器上唯一的排空者依次投递
type ScheduledObserver[T any] struct {
	scheduler  Scheduler
	observer   Observer[T]
	disposable *SerialDisposable
	stopped    atomic.Bool

	mu       sync.Mutex
	queue    []func()
	acquired bool
	faulted  bool
	// generation 每次调度排空者递增，过期的句柄不再写入disposable
	generation uint64
}

// NewScheduledObserver 创建ScheduledObserver，需要调用EnsureActive触发投递
func NewScheduledObserver[T any](scheduler Scheduler, observer Observer[T]) *ScheduledObserver[T] {
	return &ScheduledObserver[T]{
		scheduler:  scheduler,
		observer:   observer,
		disposable: NewSerialDisposable(),
	}
}

// OnNext 排队值通知
func (o *ScheduledObserver[T]) OnNext(value T) {
	if o.stopped.Load() {
		return
	}
	o.enqueue(func() { o.observer.OnNext(value) })
}

// OnError 排队错误通知
func (o *ScheduledObserver[T]) OnError(err error) {
	if o.stopped.CompareAndSwap(false, true) {
		o.enqueue(func() { o.observer.OnError(err) })
	}
}

// OnCompleted 排队完成通知
func (o *ScheduledObserver[T]) OnCompleted() {
	if o.stopped.CompareAndSwap(false, true) {
		o.enqueue(o.observer.OnCompleted)
	}
}

func (o *ScheduledObserver[T]) enqueue(work func()) {
	o.mu.Lock()
	o.queue = append(o.queue, work)
	o.mu.Unlock()
}

// EnsureActive 队列非空且没有排空者时调度排空
func (o *ScheduledObserver[T]) EnsureActive() {
	o.mu.Lock()
	owner := !o.faulted && len(o.queue) > 0 && !o.acquired
	if owner {
		o.acquired = true
	}
	o.mu.Unlock()

	if owner {
		o.scheduleRun()
	}
}

// scheduleRun 调度排空者；并发调度器上排空者可能在Schedule返回前已重新调度，
// 此时旧句柄已过期，不能覆盖新句柄
func (o *ScheduledObserver[T]) scheduleRun() {
	o.mu.Lock()
	o.generation++
	generation := o.generation
	o.mu.Unlock()

	d := o.scheduler.Schedule(o.run, nil)

	o.mu.Lock()
	defer o.mu.Unlock()
	if generation == o.generation {
		o.disposable.SetDisposable(d)
	}
}

// run 每次投递一个通知，还有剩余时重新调度自身
func (o *ScheduledObserver[T]) run(scheduler Scheduler, _ any) Disposable {
	o.mu.Lock()
	if len(o.queue) == 0 {
		o.acquired = false
		o.mu.Unlock()
		return nil
	}
	work := o.queue[0]
	o.queue[0] = nil
	o.queue = o.queue[1:]
	o.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			o.mu.Lock()
			o.queue = nil
			o.faulted = true
			o.mu.Unlock()
			panic(r)
		}
	}()

	work()
	o.scheduleRun()
	return nil
}

// Dispose 停止并取消排空
func (o *ScheduledObserver[T]) Dispose() {
	o.stopped.Store(true)
	o.disposable.Dispose()
}

// observeOnObserver 每个通知之后立即触发排空
type observeOnObserver[T any] struct {
	*ScheduledObserver[T]
}

func newObserveOnObserver[T any](scheduler Scheduler, observer Observer[T]) *observeOnObserver[T] {
	return &observeOnObserver[T]{NewScheduledObserver(scheduler, observer)}
}

func (o *observeOnObserver[T]) OnNext(value T) {
	o.ScheduledObserver.OnNext(value)
	o.EnsureActive()
}

func (o *observeOnObserver[T]) OnError(err error) {
	o.ScheduledObserver.OnError(err)
	o.EnsureActive()
}

func (o *observeOnObserver[T]) OnCompleted() {
	o.ScheduledObserver.OnCompleted()
	o.EnsureActive()
}

// ============================================================================
// CheckedObserver
// ============================================================================

const (
	checkedIdle int32 = iota
	checkedBusy
	checkedDone
)

// CheckedObserver 检查语法违规：重入调用panic(ErrReentrancy)，终止后调用panic(ErrCompleted)
type CheckedObserver[T any] struct {
	observer Observer[T]
	state    atomic.Int32
}

// NewCheckedObserver 创建CheckedObserver
func NewCheckedObserver[T any](observer Observer[T]) *CheckedObserver[T] {
	return &CheckedObserver[T]{observer: observer}
}

func (o *CheckedObserver[T]) checkAccess() {
	if o.state.CompareAndSwap(checkedIdle, checkedBusy) {
		return
	}
	if o.state.Load() == checkedBusy {
		panic(ErrReentrancy)
	}
	panic(ErrCompleted)
}

// OnNext 转发值
func (o *CheckedObserver[T]) OnNext(value T) {
	o.checkAccess()
	defer o.state.Store(checkedIdle)
	o.observer.OnNext(value)
}

// OnError 转发错误
func (o *CheckedObserver[T]) OnError(err error) {
	o.checkAccess()
	defer o.state.Store(checkedDone)
	o.observer.OnError(err)
}

// OnCompleted 转发完成
func (o *CheckedObserver[T]) OnCompleted() {
	o.checkAccess()
	defer o.state.Store(checkedDone)
	o.observer.OnCompleted()
}

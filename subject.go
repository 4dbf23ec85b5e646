// Subject implementations for reactivex
// 实现Subject系统，包括Subject、BehaviorSubject、ReplaySubject、AsyncSubject
package reactivex

import (
	"math"
	"sync"
	"time"
)

// SubjectLike 既是观察者又是可观察序列
type SubjectLike[T any] interface {
	Observer[T]
	Observable[T]
}

// ============================================================================
// 公共部分
// ============================================================================

// subjectCore 观察者列表与终止状态
type subjectCore[T any] struct {
	mu        sync.Mutex
	observers []Observer[T]
	stopped   bool
	disposed  bool
	err       error
}

// lockChecked 加锁，已释放时解锁并panic(ErrDisposed)
func (c *subjectCore[T]) lockChecked() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		panic(ErrDisposed)
	}
}

// snapshot 观察者列表快照，调用时需持有锁
func (c *subjectCore[T]) snapshot() []Observer[T] {
	observers := make([]Observer[T], len(c.observers))
	copy(observers, c.observers)
	return observers
}

// terminate 标记终止并取出观察者，调用时需持有锁
func (c *subjectCore[T]) terminate(err error) []Observer[T] {
	observers := c.observers
	c.observers = nil
	c.stopped = true
	c.err = err
	return observers
}

// inner 返回移除观察者的订阅句柄
func (c *subjectCore[T]) inner(observer Observer[T]) Disposable {
	return NewDisposable(func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.disposed {
			return
		}
		for i, o := range c.observers {
			if o == observer {
				c.observers = append(c.observers[:i:i], c.observers[i+1:]...)
				return
			}
		}
	})
}

// HasObservers 是否有订阅者
func (c *subjectCore[T]) HasObservers() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.observers) > 0
}

// ObserverCount 订阅者数量
func (c *subjectCore[T]) ObserverCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.observers)
}

// IsDisposed 是否已释放
func (c *subjectCore[T]) IsDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// ============================================================================
// Subject - 发布主题
// ============================================================================

// Subject 只向当前订阅者广播新的通知
type Subject[T any] struct {
	Observable[T]
	subjectCore[T]
}

// NewSubject 创建Subject
func NewSubject[T any]() *Subject[T] {
	s := &Subject[T]{}
	s.Observable = Create(s.subscribeCore)
	return s
}

func (s *Subject[T]) subscribeCore(observer Observer[T], _ Scheduler) Disposable {
	s.lockChecked()
	if !s.stopped {
		s.observers = append(s.observers, observer)
		s.mu.Unlock()
		return s.inner(observer)
	}
	err := s.err
	s.mu.Unlock()

	if err != nil {
		observer.OnError(err)
	} else {
		observer.OnCompleted()
	}
	return EmptyDisposable()
}

// OnNext 广播值
func (s *Subject[T]) OnNext(value T) {
	s.lockChecked()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	observers := s.snapshot()
	s.mu.Unlock()

	for _, o := range observers {
		o.OnNext(value)
	}
}

// OnError 广播错误并终止
func (s *Subject[T]) OnError(err error) {
	s.lockChecked()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	observers := s.terminate(err)
	s.mu.Unlock()

	for _, o := range observers {
		o.OnError(err)
	}
}

// OnCompleted 广播完成并终止
func (s *Subject[T]) OnCompleted() {
	s.lockChecked()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	observers := s.terminate(nil)
	s.mu.Unlock()

	for _, o := range observers {
		o.OnCompleted()
	}
}

// Dispose 释放，之后的任何使用都会panic(ErrDisposed)
func (s *Subject[T]) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.observers = nil
	s.err = nil
}

// ============================================================================
// BehaviorSubject - 行为主题
// ============================================================================

// BehaviorSubject 保存最新值，新订阅者先收到最新值
type BehaviorSubject[T any] struct {
	Observable[T]
	subjectCore[T]
	value T
}

// NewBehaviorSubject 创建带初始值的BehaviorSubject
func NewBehaviorSubject[T any](initial T) *BehaviorSubject[T] {
	s := &BehaviorSubject[T]{value: initial}
	s.Observable = Create(s.subscribeCore)
	return s
}

func (s *BehaviorSubject[T]) subscribeCore(observer Observer[T], _ Scheduler) Disposable {
	s.lockChecked()
	if !s.stopped {
		// 注册与取当前值在同一把锁内完成，闸门保证当前值先于并发的新值到达
		gated := &gatedObserver[T]{observer: observer, gate: &serializer{}}
		gated.gate.Hold()
		s.observers = append(s.observers, gated)
		value := s.value
		s.mu.Unlock()

		gated.gate.Resume(func() { observer.OnNext(value) })
		return s.inner(gated)
	}
	err := s.err
	s.mu.Unlock()

	if err != nil {
		observer.OnError(err)
	} else {
		observer.OnCompleted()
	}
	return EmptyDisposable()
}

// Value 当前值，出错后返回该错误
func (s *BehaviorSubject[T]) Value() (T, error) {
	s.lockChecked()
	defer s.mu.Unlock()

	if s.err != nil {
		var zero T
		return zero, s.err
	}
	return s.value, nil
}

// OnNext 更新并广播值
func (s *BehaviorSubject[T]) OnNext(value T) {
	s.lockChecked()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.value = value
	observers := s.snapshot()
	s.mu.Unlock()

	for _, o := range observers {
		o.OnNext(value)
	}
}

// OnError 广播错误并终止
func (s *BehaviorSubject[T]) OnError(err error) {
	s.lockChecked()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	observers := s.terminate(err)
	s.mu.Unlock()

	for _, o := range observers {
		o.OnError(err)
	}
}

// OnCompleted 广播完成并终止
func (s *BehaviorSubject[T]) OnCompleted() {
	s.lockChecked()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	observers := s.terminate(nil)
	s.mu.Unlock()

	for _, o := range observers {
		o.OnCompleted()
	}
}

// Dispose 释放
func (s *BehaviorSubject[T]) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	s.disposed = true
	s.observers = nil
	s.value = zero
	s.err = nil
}

// ============================================================================
// ReplaySubject - 重放主题
// ============================================================================

type replayItem[T any] struct {
	interval time.Time
	value    T
}

// ReplaySubject 缓存通知并向新订阅者重放，可以按数量和时间窗口限制
type ReplaySubject[T any] struct {
	Observable[T]
	subjectCore[T]

	bufferSize int
	window     time.Duration
	scheduler  Scheduler
	queue      []replayItem[T]
}

// NewReplaySubject 创建ReplaySubject，选项：WithBufferSize、WithWindow、WithScheduler
func NewReplaySubject[T any](options ...Option) *ReplaySubject[T] {
	config := newConfig(options...)

	bufferSize := config.BufferSize
	if bufferSize < 0 {
		bufferSize = math.MaxInt
	}
	window := config.Window
	if window < 0 {
		window = time.Duration(math.MaxInt64)
	}

	s := &ReplaySubject[T]{
		bufferSize: bufferSize,
		window:     window,
		scheduler:  config.schedulerOr(CurrentThread()),
	}
	s.Observable = Create(s.subscribeCore)
	return s
}

func (s *ReplaySubject[T]) subscribeCore(observer Observer[T], _ Scheduler) Disposable {
	so := NewScheduledObserver(s.scheduler, observer)

	s.lockChecked()
	s.trim(s.scheduler.Now())
	s.observers = append(s.observers, so)
	for _, item := range s.queue {
		so.OnNext(item.value)
	}
	if s.err != nil {
		so.OnError(s.err)
	} else if s.stopped {
		so.OnCompleted()
	}
	s.mu.Unlock()

	so.EnsureActive()

	remove := s.inner(so)
	return NewDisposable(func() {
		so.Dispose()
		remove.Dispose()
	})
}

// trim 按数量和时间窗口裁剪缓存，调用时需持有锁
func (s *ReplaySubject[T]) trim(now time.Time) {
	if len(s.queue) > s.bufferSize {
		s.queue = s.queue[len(s.queue)-s.bufferSize:]
	}
	for len(s.queue) > 0 && now.Sub(s.queue[0].interval) > s.window {
		s.queue = s.queue[1:]
	}
}

// OnNext 缓存并广播值
func (s *ReplaySubject[T]) OnNext(value T) {
	s.lockChecked()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	now := s.scheduler.Now()
	s.queue = append(s.queue, replayItem[T]{interval: now, value: value})
	s.trim(now)
	observers := s.snapshot()
	s.mu.Unlock()

	for _, o := range observers {
		o.OnNext(value)
	}
	ensureActive(observers)
}

// OnError 广播错误并终止
func (s *ReplaySubject[T]) OnError(err error) {
	s.lockChecked()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.trim(s.scheduler.Now())
	observers := s.terminate(err)
	s.mu.Unlock()

	for _, o := range observers {
		o.OnError(err)
	}
	ensureActive(observers)
}

// OnCompleted 广播完成并终止
func (s *ReplaySubject[T]) OnCompleted() {
	s.lockChecked()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.trim(s.scheduler.Now())
	observers := s.terminate(nil)
	s.mu.Unlock()

	for _, o := range observers {
		o.OnCompleted()
	}
	ensureActive(observers)
}

// Dispose 释放并清空缓存
func (s *ReplaySubject[T]) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.observers = nil
	s.queue = nil
	s.err = nil
}

func ensureActive[T any](observers []Observer[T]) {
	for _, o := range observers {
		if so, ok := o.(*ScheduledObserver[T]); ok {
			so.EnsureActive()
		}
	}
}

// ============================================================================
// AsyncSubject - 异步主题
// ============================================================================

// AsyncSubject 只在完成时发出最后一个值
type AsyncSubject[T any] struct {
	Observable[T]
	subjectCore[T]

	value    T
	hasValue bool
}

// NewAsyncSubject 创建AsyncSubject
func NewAsyncSubject[T any]() *AsyncSubject[T] {
	s := &AsyncSubject[T]{}
	s.Observable = Create(s.subscribeCore)
	return s
}

func (s *AsyncSubject[T]) subscribeCore(observer Observer[T], _ Scheduler) Disposable {
	s.lockChecked()
	if !s.stopped {
		s.observers = append(s.observers, observer)
		s.mu.Unlock()
		return s.inner(observer)
	}
	err, value, hasValue := s.err, s.value, s.hasValue
	s.mu.Unlock()

	if err != nil {
		observer.OnError(err)
	} else if hasValue {
		observer.OnNext(value)
		observer.OnCompleted()
	} else {
		observer.OnCompleted()
	}
	return EmptyDisposable()
}

// OnNext 记录最后一个值
func (s *AsyncSubject[T]) OnNext(value T) {
	s.lockChecked()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.value = value
	s.hasValue = true
}

// OnError 广播错误并终止
func (s *AsyncSubject[T]) OnError(err error) {
	s.lockChecked()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	var zero T
	s.value = zero
	s.hasValue = false
	observers := s.terminate(err)
	s.mu.Unlock()

	for _, o := range observers {
		o.OnError(err)
	}
}

// OnCompleted 发出最后一个值并完成
func (s *AsyncSubject[T]) OnCompleted() {
	s.lockChecked()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	value, hasValue := s.value, s.hasValue
	observers := s.terminate(nil)
	s.mu.Unlock()

	for _, o := range observers {
		if hasValue {
			o.OnNext(value)
		}
		o.OnCompleted()
	}
}

// Dispose 释放
func (s *AsyncSubject[T]) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	s.disposed = true
	s.observers = nil
	s.value = zero
	s.hasValue = false
	s.err = nil
}

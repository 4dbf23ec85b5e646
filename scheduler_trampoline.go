// Trampoline schedulers for reactivex
// 蹦床调度器：递归调度排队执行，避免栈增长
package reactivex

import (
	"sync"
	"time"

	"github.com/petermattis/goid"
	"go.uber.org/zap"
)

// ============================================================================
// Trampoline
// ============================================================================

// Trampoline 单个蹦床：第一个调用者负责排空队列，重入的提交只入队
type Trampoline struct {
	mu    sync.Mutex
	queue priorityQueue
	idle  bool
	wake  chan struct{}
}

// NewTrampoline 创建蹦床
func NewTrampoline() *Trampoline {
	return &Trampoline{
		idle: true,
		wake: make(chan struct{}, 1),
	}
}

// Idle 是否没有正在排空的调用者
func (t *Trampoline) Idle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idle
}

// run 提交调度项，返回调用者是否成为了排空者
func (t *Trampoline) run(item *scheduledItem) bool {
	t.mu.Lock()
	t.queue.enqueue(item)
	if !t.idle {
		t.mu.Unlock()
		t.notify()
		return false
	}
	t.idle = false
	t.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			t.mu.Lock()
			t.queue = nil
			t.idle = true
			t.mu.Unlock()
			panic(r)
		}
	}()

	t.drain()
	return true
}

// notify 唤醒正在睡眠的排空者
func (t *Trampoline) notify() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// drain 按时间顺序执行队列中的调度项，未到期时睡眠
func (t *Trampoline) drain() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		t.mu.Lock()
		if t.queue.Len() == 0 {
			t.idle = true
			t.mu.Unlock()
			return
		}

		item := t.queue.peek()
		if item.isCancelled() {
			t.queue.dequeue()
			t.mu.Unlock()
			continue
		}

		wait := item.duetime.Sub(item.scheduler.Now())
		if wait <= 0 {
			t.queue.dequeue()
			t.mu.Unlock()
			item.invoke()
			continue
		}
		t.mu.Unlock()

		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}
		select {
		case <-timer.C:
		case <-t.wake:
			timer.Stop()
		}
	}
}

// scheduleOnTrampoline 将动作提交到蹦床上，返回调度项的句柄以及调用者是否为排空者
func scheduleOnTrampoline(s Scheduler, t *Trampoline, duetime time.Time, action ScheduledAction, state any) (Disposable, bool) {
	if duetime.After(s.Now()) {
		Logger().Warn("do not schedule blocking work on a trampoline",
			zap.Duration("delay", time.Until(duetime)))
	}

	item := newScheduledItem(s, state, action, duetime)
	ran := t.run(item)
	return item.disposable, ran
}

// ============================================================================
// TrampolineScheduler
// ============================================================================

// TrampolineScheduler 拥有单个蹦床的调度器
type TrampolineScheduler struct {
	tramp *Trampoline
}

// NewTrampolineScheduler 创建蹦床调度器
func NewTrampolineScheduler() *TrampolineScheduler {
	return &TrampolineScheduler{tramp: NewTrampoline()}
}

// Now 系统时钟
func (s *TrampolineScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 入队执行
func (s *TrampolineScheduler) Schedule(action ScheduledAction, state any) Disposable {
	return s.ScheduleAbsolute(s.Now(), action, state)
}

// ScheduleRelative 延迟执行，会阻塞排空者
func (s *TrampolineScheduler) ScheduleRelative(duetime time.Duration, action ScheduledAction, state any) Disposable {
	if duetime < 0 {
		duetime = 0
	}
	return s.ScheduleAbsolute(s.Now().Add(duetime), action, state)
}

// ScheduleAbsolute 指定时刻执行
func (s *TrampolineScheduler) ScheduleAbsolute(duetime time.Time, action ScheduledAction, state any) Disposable {
	d, _ := scheduleOnTrampoline(s, s.tramp, duetime, action, state)
	return d
}

// SchedulePeriodic 周期执行
func (s *TrampolineScheduler) SchedulePeriodic(period time.Duration, action PeriodicAction, state any) Disposable {
	return schedulePeriodic(s, period, action, state)
}

// ScheduleRequired 当前没有排空者时返回true
func (s *TrampolineScheduler) ScheduleRequired() bool {
	return s.tramp.Idle()
}

// EnsureTrampoline 需要时通过蹦床执行，否则直接执行
func (s *TrampolineScheduler) EnsureTrampoline(action ScheduledAction, state any) Disposable {
	if s.ScheduleRequired() {
		return s.Schedule(action, state)
	}
	return invokeAction(s, action, state)
}

// ============================================================================
// CurrentThreadScheduler
// ============================================================================

// CurrentThreadScheduler 每个goroutine一个蹦床，空闲后释放
type CurrentThreadScheduler struct {
	mu          sync.Mutex
	trampolines map[int64]*Trampoline
}

func newCurrentThreadScheduler() *CurrentThreadScheduler {
	return &CurrentThreadScheduler{trampolines: make(map[int64]*Trampoline)}
}

// Now 系统时钟
func (s *CurrentThreadScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 在当前goroutine的蹦床上执行
func (s *CurrentThreadScheduler) Schedule(action ScheduledAction, state any) Disposable {
	return s.ScheduleAbsolute(s.Now(), action, state)
}

// ScheduleRelative 延迟执行，会阻塞当前goroutine
func (s *CurrentThreadScheduler) ScheduleRelative(duetime time.Duration, action ScheduledAction, state any) Disposable {
	if duetime < 0 {
		duetime = 0
	}
	return s.ScheduleAbsolute(s.Now().Add(duetime), action, state)
}

// ScheduleAbsolute 指定时刻执行
func (s *CurrentThreadScheduler) ScheduleAbsolute(duetime time.Time, action ScheduledAction, state any) Disposable {
	id := goroutineID()
	tramp := s.trampoline(id)

	var ran bool
	defer func() {
		if r := recover(); r != nil {
			s.release(id, tramp)
			panic(r)
		}
		if ran {
			s.release(id, tramp)
		}
	}()

	var d Disposable
	d, ran = scheduleOnTrampoline(s, tramp, duetime, action, state)
	return d
}

// SchedulePeriodic 周期执行
func (s *CurrentThreadScheduler) SchedulePeriodic(period time.Duration, action PeriodicAction, state any) Disposable {
	return schedulePeriodic(s, period, action, state)
}

// ScheduleRequired 当前goroutine没有正在排空的蹦床时返回true
func (s *CurrentThreadScheduler) ScheduleRequired() bool {
	id := goroutineID()

	s.mu.Lock()
	tramp, ok := s.trampolines[id]
	s.mu.Unlock()

	return !ok || tramp.Idle()
}

// EnsureTrampoline 需要时通过蹦床执行，否则直接执行
func (s *CurrentThreadScheduler) EnsureTrampoline(action ScheduledAction, state any) Disposable {
	if s.ScheduleRequired() {
		return s.Schedule(action, state)
	}
	return invokeAction(s, action, state)
}

// trampoline 获取或创建当前goroutine的蹦床
func (s *CurrentThreadScheduler) trampoline(id int64) *Trampoline {
	s.mu.Lock()
	defer s.mu.Unlock()

	tramp, ok := s.trampolines[id]
	if !ok {
		tramp = NewTrampoline()
		s.trampolines[id] = tramp
	}
	return tramp
}

// release 蹦床空闲后移除
func (s *CurrentThreadScheduler) release(id int64, tramp *Trampoline) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.trampolines[id] == tramp && tramp.Idle() {
		delete(s.trampolines, id)
	}
}

// goroutineID 当前goroutine的编号
func goroutineID() int64 {
	return goid.Get()
}

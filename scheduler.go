// Scheduler contract for reactivex
// 调度器接口、调度项、优先队列与默认调度器注册表
package reactivex

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// 调度器接口
// ============================================================================

// ScheduledAction 调度的工作单元，返回的Disposable会挂到该调度项上
type ScheduledAction func(scheduler Scheduler, state any) Disposable

// PeriodicAction 周期性工作单元，返回值作为下一次的state
type PeriodicAction func(state any) any

// Scheduler 调度器接口，控制任务执行时机和方式
type Scheduler interface {
	// Now 调度器的时钟
	Now() time.Time
	// Schedule 尽快执行
	Schedule(action ScheduledAction, state any) Disposable
	// ScheduleRelative 延迟duetime后执行
	ScheduleRelative(duetime time.Duration, action ScheduledAction, state any) Disposable
	// ScheduleAbsolute 在指定时刻执行
	ScheduleAbsolute(duetime time.Time, action ScheduledAction, state any) Disposable
	// SchedulePeriodic 周期执行
	SchedulePeriodic(period time.Duration, action PeriodicAction, state any) Disposable
}

// ============================================================================
// 默认周期调度
// ============================================================================

// schedulePeriodic 通过相对调度反复执行action，补偿action本身的耗时
func schedulePeriodic(scheduler Scheduler, period time.Duration, action PeriodicAction, state any) Disposable {
	disp := NewMultipleAssignmentDisposable()

	var periodic ScheduledAction
	periodic = func(s Scheduler, st any) Disposable {
		if disp.IsDisposed() {
			return nil
		}

		started := s.Now()
		func() {
			defer func() {
				if r := recover(); r != nil {
					disp.Dispose()
					panic(r)
				}
			}()
			st = action(st)
		}()

		next := period - s.Now().Sub(started)
		if next < 0 {
			next = 0
		}
		disp.SetDisposable(s.ScheduleRelative(next, periodic, st))
		return nil
	}

	disp.SetDisposable(scheduler.ScheduleRelative(period, periodic, state))
	return disp
}

// ============================================================================
// 调度项
// ============================================================================

var scheduledItemSeq atomic.Uint64

// scheduledItem 调度项，按duetime排序，相同duetime按插入顺序
type scheduledItem struct {
	scheduler  Scheduler
	state      any
	action     ScheduledAction
	duetime    time.Time
	id         uint64
	disposable *SingleAssignmentDisposable
	index      int
}

// newScheduledItem 创建调度项
func newScheduledItem(scheduler Scheduler, state any, action ScheduledAction, duetime time.Time) *scheduledItem {
	return &scheduledItem{
		scheduler:  scheduler,
		state:      state,
		action:     action,
		duetime:    duetime,
		id:         scheduledItemSeq.Add(1),
		disposable: NewSingleAssignmentDisposable(),
		index:      -1,
	}
}

// invoke 执行动作并挂载返回的Disposable
func (si *scheduledItem) invoke() {
	ret := si.action(si.scheduler, si.state)
	if ret != nil {
		si.disposable.SetDisposable(ret)
	}
}

// cancel 取消调度项
func (si *scheduledItem) cancel() {
	si.disposable.Dispose()
}

// isCancelled 是否已取消
func (si *scheduledItem) isCancelled() bool {
	return si.disposable.IsDisposed()
}

// less 排序规则
func (si *scheduledItem) less(other *scheduledItem) bool {
	if si.duetime.Equal(other.duetime) {
		return si.id < other.id
	}
	return si.duetime.Before(other.duetime)
}

// ============================================================================
// 优先队列
// ============================================================================

// priorityQueue 调度项的最小堆
type priorityQueue []*scheduledItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool { return pq[i].less(pq[j]) }

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*scheduledItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// enqueue 入队
func (pq *priorityQueue) enqueue(item *scheduledItem) {
	heap.Push(pq, item)
}

// dequeue 出队最早的调度项
func (pq *priorityQueue) dequeue() *scheduledItem {
	return heap.Pop(pq).(*scheduledItem)
}

// peek 查看最早的调度项
func (pq priorityQueue) peek() *scheduledItem {
	return pq[0]
}

// remove 移除指定调度项
func (pq *priorityQueue) remove(item *scheduledItem) bool {
	if item.index < 0 || item.index >= len(*pq) || (*pq)[item.index] != item {
		return false
	}
	heap.Remove(pq, item.index)
	return true
}

// ============================================================================
// 默认调度器注册表
// ============================================================================

var (
	immediateOnce     sync.Once
	immediateInstance Scheduler

	currentThreadOnce     sync.Once
	currentThreadInstance *CurrentThreadScheduler

	eventLoopOnce     sync.Once
	eventLoopInstance *EventLoopScheduler

	timeoutOnce     sync.Once
	timeoutInstance Scheduler

	newThreadOnce     sync.Once
	newThreadInstance *NewThreadScheduler
)

// ImmediateScheduler 立即调度器单例
func ImmediateScheduler() Scheduler {
	immediateOnce.Do(func() {
		immediateInstance = NewImmediateScheduler()
	})
	return immediateInstance
}

// CurrentThread 当前goroutine的trampoline调度器单例
func CurrentThread() *CurrentThreadScheduler {
	currentThreadOnce.Do(func() {
		currentThreadInstance = newCurrentThreadScheduler()
	})
	return currentThreadInstance
}

// EventLoop 共享的事件循环调度器单例
func EventLoop() *EventLoopScheduler {
	eventLoopOnce.Do(func() {
		eventLoopInstance = NewEventLoopScheduler()
	})
	return eventLoopInstance
}

// TimeoutScheduler 基于系统定时器的调度器单例，时间类操作符的默认调度器
func TimeoutScheduler() Scheduler {
	timeoutOnce.Do(func() {
		timeoutInstance = NewTimeoutScheduler()
	})
	return timeoutInstance
}

// NewThread 每个任务独立goroutine的调度器单例
func NewThread() *NewThreadScheduler {
	newThreadOnce.Do(func() {
		newThreadInstance = NewNewThreadScheduler()
	})
	return newThreadInstance
}

// ============================================================================
// 调度器辅助函数
// ============================================================================

// invokeAction 直接执行动作，nil返回值转换为空Disposable
func invokeAction(scheduler Scheduler, action ScheduledAction, state any) Disposable {
	if ret := action(scheduler, state); ret != nil {
		return ret
	}
	return EmptyDisposable()
}

// ScheduleFunc 调度一个无参函数
func ScheduleFunc(scheduler Scheduler, fn func()) Disposable {
	return scheduler.Schedule(func(Scheduler, any) Disposable {
		fn()
		return nil
	}, nil)
}

// ScheduleFuncRelative 延迟调度一个无参函数
func ScheduleFuncRelative(scheduler Scheduler, delay time.Duration, fn func()) Disposable {
	return scheduler.ScheduleRelative(delay, func(Scheduler, any) Disposable {
		fn()
		return nil
	}, nil)
}

// pickScheduler 调度器优先级：选项 > 订阅时传入 > 默认
func pickScheduler(config *Config, subscribeScheduler Scheduler, fallback func() Scheduler) Scheduler {
	if config != nil && config.Scheduler != nil {
		return config.Scheduler
	}
	if subscribeScheduler != nil {
		return subscribeScheduler
	}
	return fallback()
}

func currentThreadScheduler() Scheduler { return CurrentThread() }

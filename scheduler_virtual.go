// Virtual time scheduler for reactivex
// 虚拟时间调度器：时钟只在执行调度项时前进
package reactivex

import (
	"sync"
	"time"
)

// VirtualTimeScheduler 虚拟时间调度器
type VirtualTimeScheduler struct {
	mu      sync.Mutex
	clock   time.Time
	queue   priorityQueue
	enabled bool
}

// NewVirtualTimeScheduler 创建虚拟时间调度器
func NewVirtualTimeScheduler(initialClock time.Time) *VirtualTimeScheduler {
	return &VirtualTimeScheduler{clock: initialClock}
}

// Now 虚拟时钟
func (s *VirtualTimeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// IsEnabled 是否正在运行
func (s *VirtualTimeScheduler) IsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Schedule 在当前虚拟时刻执行
func (s *VirtualTimeScheduler) Schedule(action ScheduledAction, state any) Disposable {
	return s.ScheduleAbsolute(s.Now(), action, state)
}

// ScheduleRelative 相对当前虚拟时刻延迟执行
func (s *VirtualTimeScheduler) ScheduleRelative(duetime time.Duration, action ScheduledAction, state any) Disposable {
	if duetime < 0 {
		duetime = 0
	}
	return s.ScheduleAbsolute(s.Now().Add(duetime), action, state)
}

// ScheduleAbsolute 在指定虚拟时刻执行
func (s *VirtualTimeScheduler) ScheduleAbsolute(duetime time.Time, action ScheduledAction, state any) Disposable {
	item := newScheduledItem(s, state, action, duetime)

	s.mu.Lock()
	s.queue.enqueue(item)
	s.mu.Unlock()

	return item.disposable
}

// SchedulePeriodic 周期执行
func (s *VirtualTimeScheduler) SchedulePeriodic(period time.Duration, action PeriodicAction, state any) Disposable {
	return schedulePeriodic(s, period, action, state)
}

// Start 按时间顺序执行所有调度项直到队列为空或被Stop，已在运行时直接返回
func (s *VirtualTimeScheduler) Start() {
	s.mu.Lock()
	if s.enabled {
		s.mu.Unlock()
		return
	}
	s.enabled = true
	s.mu.Unlock()

	defer s.Stop()

	for {
		item := s.dequeue(time.Time{}, false)
		if item == nil {
			return
		}
		if !item.isCancelled() {
			item.invoke()
		}
	}
}

// Stop 停止执行
func (s *VirtualTimeScheduler) Stop() {
	s.mu.Lock()
	s.enabled = false
	s.mu.Unlock()
}

// AdvanceTo 执行到期时间不晚于t的调度项，并把时钟设为t
func (s *VirtualTimeScheduler) AdvanceTo(t time.Time) {
	s.mu.Lock()
	if s.clock.After(t) {
		s.mu.Unlock()
		panic(ErrArgumentOutOfRange)
	}
	if s.clock.Equal(t) || s.enabled {
		s.mu.Unlock()
		return
	}
	s.enabled = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.enabled = false
		if s.clock.Before(t) {
			s.clock = t
		}
		s.mu.Unlock()
	}()

	for {
		item := s.dequeue(t, true)
		if item == nil {
			return
		}
		if !item.isCancelled() {
			item.invoke()
		}
	}
}

// AdvanceBy 时钟前进d并执行期间到期的调度项
func (s *VirtualTimeScheduler) AdvanceBy(d time.Duration) {
	if d < 0 {
		panic(ErrArgumentOutOfRange)
	}
	s.AdvanceTo(s.Now().Add(d))
}

// Sleep 时钟前进d，不执行任何调度项
func (s *VirtualTimeScheduler) Sleep(d time.Duration) {
	if d < 0 {
		panic(ErrArgumentOutOfRange)
	}
	s.mu.Lock()
	s.clock = s.clock.Add(d)
	s.mu.Unlock()
}

// dequeue 取出下一个未取消的调度项并推进时钟；bounded时不取出晚于limit的项
func (s *VirtualTimeScheduler) dequeue(limit time.Time, bounded bool) *scheduledItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return nil
	}

	// 已取消的项直接丢弃，不推进时钟
	for s.queue.Len() > 0 && s.queue.peek().isCancelled() {
		s.queue.dequeue()
	}
	if s.queue.Len() == 0 {
		return nil
	}

	item := s.queue.peek()
	if bounded && item.duetime.After(limit) {
		return nil
	}
	if item.duetime.After(s.clock) {
		s.clock = item.duetime
	}
	return s.queue.dequeue()
}

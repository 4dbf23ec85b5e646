// Immediate scheduler for reactivex
// 立即调度器：在调用者goroutine上同步执行
package reactivex

import (
	"time"
)

// immediateScheduler 立即调度器
type immediateScheduler struct{}

// NewImmediateScheduler 创建立即调度器，带延迟的调度会panic(ErrWouldBlock)
func NewImmediateScheduler() Scheduler {
	return &immediateScheduler{}
}

// Now 系统时钟
func (s *immediateScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 立即执行
func (s *immediateScheduler) Schedule(action ScheduledAction, state any) Disposable {
	return invokeAction(s, action, state)
}

// ScheduleRelative 仅允许零延迟
func (s *immediateScheduler) ScheduleRelative(duetime time.Duration, action ScheduledAction, state any) Disposable {
	if duetime > 0 {
		panic(ErrWouldBlock)
	}
	return invokeAction(s, action, state)
}

// ScheduleAbsolute 仅允许已到期的时刻
func (s *immediateScheduler) ScheduleAbsolute(duetime time.Time, action ScheduledAction, state any) Disposable {
	return s.ScheduleRelative(time.Until(duetime), action, state)
}

// SchedulePeriodic 周期调度总是需要等待
func (s *immediateScheduler) SchedulePeriodic(period time.Duration, action PeriodicAction, state any) Disposable {
	return schedulePeriodic(s, period, action, state)
}

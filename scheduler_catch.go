// Catch scheduler for reactivex
// 捕获调度动作panic的调度器包装
package reactivex

import (
	"sync/atomic"
	"time"
)

// CatchScheduler 将动作的panic交给handler处理，handler返回false时继续panic
type CatchScheduler struct {
	scheduler Scheduler
	handler   func(err error) bool
}

// NewCatchScheduler 创建CatchScheduler
func NewCatchScheduler(scheduler Scheduler, handler func(err error) bool) *CatchScheduler {
	return &CatchScheduler{scheduler: scheduler, handler: handler}
}

// Now 底层调度器时钟
func (s *CatchScheduler) Now() time.Time {
	return s.scheduler.Now()
}

// Schedule 尽快执行
func (s *CatchScheduler) Schedule(action ScheduledAction, state any) Disposable {
	return s.scheduler.Schedule(s.wrap(action), state)
}

// ScheduleRelative 延迟执行
func (s *CatchScheduler) ScheduleRelative(duetime time.Duration, action ScheduledAction, state any) Disposable {
	return s.scheduler.ScheduleRelative(duetime, s.wrap(action), state)
}

// ScheduleAbsolute 指定时刻执行
func (s *CatchScheduler) ScheduleAbsolute(duetime time.Time, action ScheduledAction, state any) Disposable {
	return s.scheduler.ScheduleAbsolute(duetime, s.wrap(action), state)
}

// SchedulePeriodic 周期执行，首次未处理的panic之后停止
func (s *CatchScheduler) SchedulePeriodic(period time.Duration, action PeriodicAction, state any) Disposable {
	var failed atomic.Bool
	slot := NewSingleAssignmentDisposable()

	periodic := func(st any) (next any) {
		if failed.Load() {
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				failed.Store(true)
				if !s.handler(panicError(r)) {
					panic(r)
				}
				slot.Dispose()
				next = nil
			}
		}()
		return action(st)
	}

	slot.SetDisposable(s.scheduler.SchedulePeriodic(period, periodic, state))
	return slot
}

// wrap 包装动作，传入的调度器也被包装以便递归调度同样受保护
func (s *CatchScheduler) wrap(action ScheduledAction) ScheduledAction {
	return func(self Scheduler, state any) (ret Disposable) {
		defer func() {
			if r := recover(); r != nil {
				if !s.handler(panicError(r)) {
					panic(r)
				}
				ret = EmptyDisposable()
			}
		}()
		return action(s.recursive(self), state)
	}
}

func (s *CatchScheduler) recursive(self Scheduler) Scheduler {
	if self == s.scheduler {
		return s
	}
	return NewCatchScheduler(self, s.handler)
}

// Timeout scheduler for reactivex
// 基于系统定时器的调度器
package reactivex

import (
	"time"

	"go.uber.org/zap"
)

// timeoutScheduler 每个调度项一个time.AfterFunc
type timeoutScheduler struct {
	logger *zap.Logger
}

// NewTimeoutScheduler 创建定时器调度器
func NewTimeoutScheduler(options ...Option) Scheduler {
	return &timeoutScheduler{logger: newConfig(options...).loggerOr()}
}

// Now 系统时钟
func (s *timeoutScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 尽快执行
func (s *timeoutScheduler) Schedule(action ScheduledAction, state any) Disposable {
	return s.ScheduleRelative(0, action, state)
}

// ScheduleRelative 延迟执行，动作panic会被记录
func (s *timeoutScheduler) ScheduleRelative(duetime time.Duration, action ScheduledAction, state any) Disposable {
	if duetime < 0 {
		duetime = 0
	}

	slot := NewSingleAssignmentDisposable()
	timer := time.AfterFunc(duetime, func() {
		if slot.IsDisposed() {
			return
		}
		err := tryCall(func() {
			slot.SetDisposable(invokeAction(s, action, state))
		})
		if err != nil {
			s.logger.Error("scheduled action failed", zap.Error(err))
		}
	})

	return NewCompositeDisposable(slot, NewDisposable(func() {
		timer.Stop()
	}))
}

// ScheduleAbsolute 指定时刻执行
func (s *timeoutScheduler) ScheduleAbsolute(duetime time.Time, action ScheduledAction, state any) Disposable {
	return s.ScheduleRelative(time.Until(duetime), action, state)
}

// SchedulePeriodic 周期执行
func (s *timeoutScheduler) SchedulePeriodic(period time.Duration, action PeriodicAction, state any) Disposable {
	return schedulePeriodic(s, period, action, state)
}

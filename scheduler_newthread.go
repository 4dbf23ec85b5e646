// New thread scheduler for reactivex
// 每次调度都在新的goroutine上执行
package reactivex

import (
	"time"

	"go.uber.org/zap"
)

// NewThreadScheduler 每次调度创建一个空闲即退出的事件循环
type NewThreadScheduler struct {
	logger *zap.Logger
}

// NewNewThreadScheduler 创建新线程调度器
func NewNewThreadScheduler(options ...Option) *NewThreadScheduler {
	return &NewThreadScheduler{logger: newConfig(options...).loggerOr()}
}

// Now 系统时钟
func (s *NewThreadScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 在新的goroutine上执行
func (s *NewThreadScheduler) Schedule(action ScheduledAction, state any) Disposable {
	return newEventLoopScheduler(true, s.logger).Schedule(action, state)
}

// ScheduleRelative 在新的goroutine上延迟执行
func (s *NewThreadScheduler) ScheduleRelative(duetime time.Duration, action ScheduledAction, state any) Disposable {
	return newEventLoopScheduler(true, s.logger).ScheduleRelative(duetime, action, state)
}

// ScheduleAbsolute 在新的goroutine上于指定时刻执行
func (s *NewThreadScheduler) ScheduleAbsolute(duetime time.Time, action ScheduledAction, state any) Disposable {
	return newEventLoopScheduler(true, s.logger).ScheduleAbsolute(duetime, action, state)
}

// SchedulePeriodic 在专用goroutine上按Ticker周期执行
func (s *NewThreadScheduler) SchedulePeriodic(period time.Duration, action PeriodicAction, state any) Disposable {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		st := state
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := tryCall(func() { st = action(st) }); err != nil {
					s.logger.Error("periodic action failed", zap.Error(err), zap.Duration("period", period))
					return
				}
			}
		}
	}()

	return NewDisposable(func() {
		close(done)
	})
}

// Monitored scheduler for reactivex
// 带监控指标的调度器包装器
package reactivex

import (
	"sync"
	"sync/atomic"
	"time"
)

// SchedulerMetrics 调度器性能指标
type SchedulerMetrics struct {
	TasksScheduled int64
	TasksCompleted int64
	TasksFailed    int64
	// AverageLatency 动作实际开始时间相对到期时间的平均延迟
	AverageLatency time.Duration
}

// MonitoredScheduler 带监控的调度器包装器
type MonitoredScheduler struct {
	scheduler Scheduler

	scheduled atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	mu      sync.RWMutex
	latency time.Duration
}

// NewMonitoredScheduler 创建带监控的调度器
func NewMonitoredScheduler(scheduler Scheduler) *MonitoredScheduler {
	return &MonitoredScheduler{scheduler: scheduler}
}

// Now 底层调度器时钟
func (s *MonitoredScheduler) Now() time.Time {
	return s.scheduler.Now()
}

// Schedule 调度任务并记录指标
func (s *MonitoredScheduler) Schedule(action ScheduledAction, state any) Disposable {
	return s.scheduler.Schedule(s.wrap(action, s.Now()), state)
}

// ScheduleRelative 延迟调度任务并记录指标
func (s *MonitoredScheduler) ScheduleRelative(duetime time.Duration, action ScheduledAction, state any) Disposable {
	return s.scheduler.ScheduleRelative(duetime, s.wrap(action, s.Now().Add(duetime)), state)
}

// ScheduleAbsolute 指定时刻调度任务并记录指标
func (s *MonitoredScheduler) ScheduleAbsolute(duetime time.Time, action ScheduledAction, state any) Disposable {
	return s.scheduler.ScheduleAbsolute(duetime, s.wrap(action, duetime), state)
}

// SchedulePeriodic 周期任务每次执行都计入指标
func (s *MonitoredScheduler) SchedulePeriodic(period time.Duration, action PeriodicAction, state any) Disposable {
	return s.scheduler.SchedulePeriodic(period, func(st any) any {
		s.scheduled.Add(1)
		defer s.record(s.Now())()
		return action(st)
	}, state)
}

// GetMetrics 获取调度器指标
func (s *MonitoredScheduler) GetMetrics() SchedulerMetrics {
	s.mu.RLock()
	latency := s.latency
	s.mu.RUnlock()

	return SchedulerMetrics{
		TasksScheduled: s.scheduled.Load(),
		TasksCompleted: s.completed.Load(),
		TasksFailed:    s.failed.Load(),
		AverageLatency: latency,
	}
}

func (s *MonitoredScheduler) wrap(action ScheduledAction, due time.Time) ScheduledAction {
	s.scheduled.Add(1)
	return func(self Scheduler, state any) Disposable {
		defer s.record(due)()
		return action(self, state)
	}
}

// record 记录延迟，返回的函数在动作结束时统计成功或失败
func (s *MonitoredScheduler) record(due time.Time) func() {
	latency := s.Now().Sub(due)
	if latency < 0 {
		latency = 0
	}
	s.updateAverageLatency(latency)

	return func() {
		if r := recover(); r != nil {
			s.failed.Add(1)
			panic(r)
		}
		s.completed.Add(1)
	}
}

// updateAverageLatency 更新平均延迟
func (s *MonitoredScheduler) updateAverageLatency(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 简单的移动平均
	if s.latency == 0 {
		s.latency = latency
	} else {
		s.latency = (s.latency + latency) / 2
	}
}

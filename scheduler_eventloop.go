// Event loop scheduler for reactivex
// 事件循环调度器：单个工作goroutine顺序执行所有调度项
package reactivex

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/tomb.v2"
)

// EventLoopScheduler 事件循环调度器，工作goroutine由tomb管理
type EventLoopScheduler struct {
	mu          sync.Mutex
	queue       priorityQueue
	wake        chan struct{}
	disposed    bool
	running     bool
	exitIfEmpty bool
	tomb        *tomb.Tomb
	logger      *zap.Logger
}

// NewEventLoopScheduler 创建事件循环调度器，工作goroutine在首次调度时启动
func NewEventLoopScheduler(options ...Option) *EventLoopScheduler {
	return newEventLoopScheduler(false, newConfig(options...).loggerOr())
}

func newEventLoopScheduler(exitIfEmpty bool, logger *zap.Logger) *EventLoopScheduler {
	return &EventLoopScheduler{
		wake:        make(chan struct{}, 1),
		exitIfEmpty: exitIfEmpty,
		logger:      logger,
	}
}

// Now 系统时钟
func (s *EventLoopScheduler) Now() time.Time {
	return time.Now()
}

// Schedule 尽快在事件循环上执行
func (s *EventLoopScheduler) Schedule(action ScheduledAction, state any) Disposable {
	return s.ScheduleAbsolute(s.Now(), action, state)
}

// ScheduleRelative 延迟执行
func (s *EventLoopScheduler) ScheduleRelative(duetime time.Duration, action ScheduledAction, state any) Disposable {
	if duetime < 0 {
		duetime = 0
	}
	return s.ScheduleAbsolute(s.Now().Add(duetime), action, state)
}

// ScheduleAbsolute 指定时刻执行，已释放的调度器会panic(ErrDisposed)
func (s *EventLoopScheduler) ScheduleAbsolute(duetime time.Time, action ScheduledAction, state any) Disposable {
	item := newScheduledItem(s, state, action, duetime)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		panic(ErrDisposed)
	}
	s.queue.enqueue(item)
	s.ensureWorker()
	s.mu.Unlock()

	s.notify()

	return NewDisposable(func() {
		item.cancel()
		s.mu.Lock()
		s.queue.remove(item)
		s.mu.Unlock()
		s.notify()
	})
}

// SchedulePeriodic 周期执行，留在事件循环goroutine上
func (s *EventLoopScheduler) SchedulePeriodic(period time.Duration, action PeriodicAction, state any) Disposable {
	return schedulePeriodic(s, period, action, state)
}

// Dispose 停止工作goroutine，放弃未执行的调度项
func (s *EventLoopScheduler) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	s.queue = nil
	t := s.tomb
	s.mu.Unlock()

	if t != nil {
		t.Kill(nil)
	}
}

// IsDisposed 是否已释放
func (s *EventLoopScheduler) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Err 工作goroutine因动作panic退出时返回对应错误
func (s *EventLoopScheduler) Err() error {
	s.mu.Lock()
	t := s.tomb
	s.mu.Unlock()

	if t == nil {
		return nil
	}
	if err := t.Err(); err != tomb.ErrStillAlive {
		return err
	}
	return nil
}

// Wait 等待工作goroutine退出
func (s *EventLoopScheduler) Wait() error {
	s.mu.Lock()
	t := s.tomb
	s.mu.Unlock()

	if t == nil {
		return nil
	}
	return t.Wait()
}

// ensureWorker 启动工作goroutine，调用时需持有锁
func (s *EventLoopScheduler) ensureWorker() {
	if s.running {
		return
	}
	s.running = true
	t := new(tomb.Tomb)
	s.tomb = t
	t.Go(func() error {
		return s.run(t)
	})
}

// notify 唤醒工作goroutine
func (s *EventLoopScheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next 取出下一个到期的调度项；没有到期项时返回等待时长，-1表示无限等待
func (s *EventLoopScheduler) next() (item *scheduledItem, wait time.Duration, exit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		s.running = false
		return nil, 0, true
	}

	for s.queue.Len() > 0 {
		head := s.queue.peek()
		if head.isCancelled() {
			s.queue.dequeue()
			continue
		}

		wait = head.duetime.Sub(s.Now())
		if wait <= 0 {
			return s.queue.dequeue(), 0, false
		}
		return nil, wait, false
	}

	if s.exitIfEmpty {
		s.running = false
		return nil, 0, true
	}
	return nil, -1, false
}

// run 工作goroutine主循环
func (s *EventLoopScheduler) run(t *tomb.Tomb) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		item, wait, exit := s.next()
		if exit {
			return nil
		}

		if item != nil {
			if err := tryCall(item.invoke); err != nil {
				s.fault(err)
				return err
			}
			continue
		}

		if wait >= 0 {
			timer.Reset(wait)
		}
		select {
		case <-t.Dying():
			return nil
		case <-s.wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// fault 动作panic后停止接受新的调度
func (s *EventLoopScheduler) fault(err error) {
	s.logger.Error("event loop action failed, disposing scheduler", zap.Error(err))

	s.mu.Lock()
	s.disposed = true
	s.running = false
	s.queue = nil
	s.mu.Unlock()
}

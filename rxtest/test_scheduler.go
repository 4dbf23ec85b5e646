// Package rxtest provides a virtual-time harness for reactivex tests
// 虚拟时间测试工具：测试调度器、记录观察者、冷热可观察序列与弹珠图
package rxtest

import (
	"time"

	"github.com/xinjiayu/reactivex"
)

// 默认的创建、订阅和释放时刻
const (
	Created    int64 = 100
	Subscribed int64 = 200
	Disposed   int64 = 1000
)

// Epoch 第0个tick对应的时刻
var Epoch = time.Unix(0, 0).UTC()

// TimeOf tick转换为时刻
func TimeOf(ticks int64) time.Time {
	return Epoch.Add(time.Duration(ticks))
}

// TicksOf 时刻转换为tick
func TicksOf(t time.Time) int64 {
	return int64(t.Sub(Epoch))
}

// ============================================================================
// TestScheduler
// ============================================================================

// TestScheduler 以tick为单位的虚拟时间调度器，1个tick等于1个time.Duration单位
type TestScheduler struct {
	*reactivex.VirtualTimeScheduler
}

// NewTestScheduler 创建时钟位于第0个tick的测试调度器
func NewTestScheduler() *TestScheduler {
	return &TestScheduler{VirtualTimeScheduler: reactivex.NewVirtualTimeScheduler(Epoch)}
}

// Clock 当前tick
func (s *TestScheduler) Clock() int64 {
	return TicksOf(s.Now())
}

// ScheduleAt 在ticks时刻执行fn
func (s *TestScheduler) ScheduleAt(ticks int64, fn func()) reactivex.Disposable {
	return s.ScheduleAbsolute(TimeOf(ticks), func(reactivex.Scheduler, any) reactivex.Disposable {
		fn()
		return nil
	}, nil)
}

// AdvanceToTicks 执行到ticks时刻
func (s *TestScheduler) AdvanceToTicks(ticks int64) {
	s.AdvanceTo(TimeOf(ticks))
}

// ============================================================================
// 运行辅助
// ============================================================================

// Start 按默认时刻创建、订阅和释放create返回的序列，返回记录全部通知的观察者
func Start[T any](s *TestScheduler, create func() reactivex.Observable[T]) *MockObserver[T] {
	return StartWith(s, create, Created, Subscribed, Disposed)
}

// StartWith 在created时刻调用create，在subscribed时刻以s为调度器订阅，在disposed时刻释放，
// 然后运行调度器直到队列为空
func StartWith[T any](s *TestScheduler, create func() reactivex.Observable[T], created, subscribed, disposed int64) *MockObserver[T] {
	observer := CreateObserver[T](s)

	var source reactivex.Observable[T]
	var subscription reactivex.Disposable

	s.ScheduleAt(created, func() {
		source = create()
	})
	s.ScheduleAt(subscribed, func() {
		subscription = source.Subscribe(observer, s)
	})
	s.ScheduleAt(disposed, func() {
		if subscription != nil {
			subscription.Dispose()
		}
	})

	s.Start()
	return observer
}

// CreateObserver 创建按s的时钟记录通知的观察者
func CreateObserver[T any](s *TestScheduler) *MockObserver[T] {
	return &MockObserver[T]{scheduler: s}
}

// CreateHotObservable 创建热序列，messages按绝对时刻调度
func CreateHotObservable[T any](s *TestScheduler, messages ...Recorded[T]) *HotObservable[T] {
	return newHotObservable(s, messages)
}

// CreateColdObservable 创建冷序列，messages的时刻相对每次订阅
func CreateColdObservable[T any](s *TestScheduler, messages ...Recorded[T]) *ColdObservable[T] {
	return newColdObservable(s, messages)
}

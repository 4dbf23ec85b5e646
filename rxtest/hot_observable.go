// Hot and cold test observables
// 热序列在创建时按绝对时刻调度消息；冷序列在每次订阅时按相对时刻调度
package rxtest

import (
	"sync"

	"github.com/xinjiayu/reactivex"
)

// subscriptionLog 记录订阅区间
type subscriptionLog struct {
	mu            sync.Mutex
	subscriptions []Subscription
}

// open 记录订阅开始，返回索引
func (l *subscriptionLog) open(clock int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscriptions = append(l.subscriptions, Subscribe(clock))
	return len(l.subscriptions) - 1
}

// close 记录订阅结束
func (l *subscriptionLog) close(index int, clock int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscriptions[index].Unsubscribe = clock
}

// Subscriptions 订阅区间的副本
func (l *subscriptionLog) Subscriptions() []Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Subscription(nil), l.subscriptions...)
}

// ============================================================================
// HotObservable
// ============================================================================

// HotObservable 独立于订阅者运行的测试序列，订阅者只能收到订阅之后到期的消息
type HotObservable[T any] struct {
	reactivex.Observable[T]
	subscriptionLog

	Messages []Recorded[T]

	scheduler *TestScheduler
	mu        sync.Mutex
	observers []*hotEntry[T]
}

type hotEntry[T any] struct {
	observer reactivex.Observer[T]
}

func newHotObservable[T any](s *TestScheduler, messages []Recorded[T]) *HotObservable[T] {
	h := &HotObservable[T]{
		Messages:  messages,
		scheduler: s,
	}
	h.Observable = reactivex.Create(h.subscribe)

	for _, message := range messages {
		notification := message.Value
		s.ScheduleAt(message.Time, func() {
			for _, entry := range h.snapshot() {
				notification.Accept(entry.observer)
			}
		})
	}
	return h
}

func (h *HotObservable[T]) snapshot() []*hotEntry[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*hotEntry[T](nil), h.observers...)
}

func (h *HotObservable[T]) subscribe(observer reactivex.Observer[T], _ reactivex.Scheduler) reactivex.Disposable {
	entry := &hotEntry[T]{observer: observer}
	h.mu.Lock()
	h.observers = append(h.observers, entry)
	h.mu.Unlock()

	index := h.open(h.scheduler.Clock())

	return reactivex.NewDisposable(func() {
		h.mu.Lock()
		for i, e := range h.observers {
			if e == entry {
				h.observers = append(h.observers[:i:i], h.observers[i+1:]...)
				break
			}
		}
		h.mu.Unlock()
		h.close(index, h.scheduler.Clock())
	})
}

// ============================================================================
// ColdObservable
// ============================================================================

// ColdObservable 每次订阅都从头重放消息的测试序列，消息时刻相对订阅时刻
type ColdObservable[T any] struct {
	reactivex.Observable[T]
	subscriptionLog

	Messages []Recorded[T]

	scheduler *TestScheduler
}

func newColdObservable[T any](s *TestScheduler, messages []Recorded[T]) *ColdObservable[T] {
	c := &ColdObservable[T]{
		Messages:  messages,
		scheduler: s,
	}
	c.Observable = reactivex.Create(c.subscribe)
	return c
}

func (c *ColdObservable[T]) subscribe(observer reactivex.Observer[T], _ reactivex.Scheduler) reactivex.Disposable {
	index := c.open(c.scheduler.Clock())
	start := c.scheduler.Clock()

	disposables := reactivex.NewCompositeDisposable()
	for _, message := range c.Messages {
		notification := message.Value
		disposables.Add(c.scheduler.ScheduleAt(start+message.Time, func() {
			notification.Accept(observer)
		}))
	}

	return reactivex.NewDisposable(func() {
		c.close(index, c.scheduler.Clock())
		disposables.Dispose()
	})
}

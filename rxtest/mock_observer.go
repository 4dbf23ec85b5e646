// Mock observer for reactivex tests
package rxtest

import (
	"sync"

	"github.com/xinjiayu/reactivex"
)

// MockObserver 记录收到的每个通知及其虚拟时刻
type MockObserver[T any] struct {
	scheduler *TestScheduler

	mu       sync.Mutex
	messages []Recorded[T]
}

// OnNext 记录值
func (o *MockObserver[T]) OnNext(value T) {
	o.record(reactivex.NextNotification(value))
}

// OnError 记录错误
func (o *MockObserver[T]) OnError(err error) {
	o.record(reactivex.ErrorNotification[T](err))
}

// OnCompleted 记录完成
func (o *MockObserver[T]) OnCompleted() {
	o.record(reactivex.CompletedNotification[T]())
}

func (o *MockObserver[T]) record(n reactivex.Notification[T]) {
	clock := o.scheduler.Clock()
	o.mu.Lock()
	o.messages = append(o.messages, Recorded[T]{Time: clock, Value: n})
	o.mu.Unlock()
}

// Messages 已记录通知的副本
func (o *MockObserver[T]) Messages() []Recorded[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Recorded[T](nil), o.messages...)
}

// Values 已记录的OnNext值
func (o *MockObserver[T]) Values() []T {
	o.mu.Lock()
	defer o.mu.Unlock()
	values := make([]T, 0, len(o.messages))
	for _, m := range o.messages {
		if m.Value.Kind == reactivex.KindNext {
			values = append(values, m.Value.Value)
		}
	}
	return values
}

// Notifications for reactivex
// 通知：OnNext/OnError/OnCompleted 的值化表示
package reactivex

import (
	"fmt"
)

// NotificationKind 通知类型
type NotificationKind int

const (
	// KindNext 值通知
	KindNext NotificationKind = iota
	// KindError 错误通知
	KindError
	// KindCompleted 完成通知
	KindCompleted
)

// String 类型名称
func (k NotificationKind) String() string {
	switch k {
	case KindNext:
		return "N"
	case KindError:
		return "E"
	case KindCompleted:
		return "C"
	default:
		return "?"
	}
}

// Notification 值化的观察者回调
type Notification[T any] struct {
	Kind  NotificationKind
	Value T
	Err   error
}

// NextNotification 创建值通知
func NextNotification[T any](value T) Notification[T] {
	return Notification[T]{Kind: KindNext, Value: value}
}

// ErrorNotification 创建错误通知
func ErrorNotification[T any](err error) Notification[T] {
	return Notification[T]{Kind: KindError, Err: err}
}

// CompletedNotification 创建完成通知
func CompletedNotification[T any]() Notification[T] {
	return Notification[T]{Kind: KindCompleted}
}

// HasValue 是否为值通知
func (n Notification[T]) HasValue() bool {
	return n.Kind == KindNext
}

// Accept 把通知投递给观察者
func (n Notification[T]) Accept(observer Observer[T]) {
	switch n.Kind {
	case KindNext:
		observer.OnNext(n.Value)
	case KindError:
		observer.OnError(n.Err)
	case KindCompleted:
		observer.OnCompleted()
	}
}

// ToObservable 转换为只包含该通知的序列，scheduler为nil时使用立即调度器
func (n Notification[T]) ToObservable(scheduler Scheduler) Observable[T] {
	return Create(func(observer Observer[T], subscribeScheduler Scheduler) Disposable {
		s := scheduler
		if s == nil {
			s = ImmediateScheduler()
		}
		return s.Schedule(func(Scheduler, any) Disposable {
			n.Accept(observer)
			if n.Kind == KindNext {
				observer.OnCompleted()
			}
			return nil
		}, nil)
	})
}

// String 文本表示
func (n Notification[T]) String() string {
	switch n.Kind {
	case KindNext:
		return fmt.Sprintf("OnNext(%v)", n.Value)
	case KindError:
		return fmt.Sprintf("OnError(%v)", n.Err)
	default:
		return "OnCompleted()"
	}
}

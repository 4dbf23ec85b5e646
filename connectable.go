// ConnectableObservable implementation for reactivex
// 可连接的Observable：通过Subject共享对源的单个订阅
package reactivex

import (
	"sync"
)

// ============================================================================
// ConnectableObservable 实现
// ============================================================================

// ConnectableObservable 订阅转发到Subject，Connect时Subject才订阅源
type ConnectableObservable[T any] struct {
	Observable[T]

	source  Observable[T]
	subject SubjectLike[T]

	mu         sync.Mutex
	connection *CompositeDisposable
}

// NewConnectableObservable 创建ConnectableObservable
func NewConnectableObservable[T any](source Observable[T], subject SubjectLike[T]) *ConnectableObservable[T] {
	c := &ConnectableObservable[T]{source: source, subject: subject}
	c.Observable = Create(func(observer Observer[T], scheduler Scheduler) Disposable {
		return c.subject.Subscribe(observer, scheduler)
	})
	return c
}

// Connect 连接源，已连接时返回现有连接
func (c *ConnectableObservable[T]) Connect() Disposable {
	return c.ConnectWith(nil)
}

// ConnectWith 使用指定调度器连接源；释放返回的连接后可以重新连接
func (c *ConnectableObservable[T]) ConnectWith(scheduler Scheduler) Disposable {
	c.mu.Lock()
	if c.connection != nil {
		conn := c.connection
		c.mu.Unlock()
		return conn
	}
	conn := NewCompositeDisposable()
	c.connection = conn
	c.mu.Unlock()

	conn.Add(NewDisposable(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.connection == conn {
			c.connection = nil
		}
	}))
	conn.Add(c.source.Subscribe(c.subject, scheduler))
	return conn
}

// IsConnected 是否已连接
func (c *ConnectableObservable[T]) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connection != nil
}

// RefCount 第一个订阅者到来时连接，最后一个离开时断开
func (c *ConnectableObservable[T]) RefCount() Observable[T] {
	var (
		mu         sync.Mutex
		count      int
		connection Disposable
	)

	return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
		mu.Lock()
		count++
		shouldConnect := count == 1
		mu.Unlock()

		subscription := c.Subscribe(observer, scheduler)
		if shouldConnect {
			conn := c.ConnectWith(scheduler)
			mu.Lock()
			connection = conn
			mu.Unlock()
		}

		return NewDisposable(func() {
			subscription.Dispose()

			mu.Lock()
			count--
			var conn Disposable
			if count == 0 {
				conn = connection
				connection = nil
			}
			mu.Unlock()

			if conn != nil {
				conn.Dispose()
			}
		})
	})
}

// AutoConnect 订阅者数量达到n时自动连接，n为0时立即连接
func (c *ConnectableObservable[T]) AutoConnect(n int) Observable[T] {
	var (
		mu        sync.Mutex
		count     int
		connected bool
	)

	if n <= 0 {
		c.Connect()
		connected = true
	}

	return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
		mu.Lock()
		count++
		shouldConnect := count == n && !connected
		if shouldConnect {
			connected = true
		}
		mu.Unlock()

		subscription := c.Subscribe(observer, scheduler)
		if shouldConnect {
			c.ConnectWith(scheduler)
		}

		return NewDisposable(func() {
			subscription.Dispose()

			mu.Lock()
			count--
			connected = false
			mu.Unlock()
		})
	})
}

// ============================================================================
// 多播操作符
// ============================================================================

// Multicast 通过指定Subject多播
func Multicast[T any](subject SubjectLike[T]) func(Observable[T]) *ConnectableObservable[T] {
	return func(source Observable[T]) *ConnectableObservable[T] {
		return NewConnectableObservable(source, subject)
	}
}

// MulticastFactory 每次订阅都用工厂创建新的Subject，并在selector内共享
func MulticastFactory[T, R any](subjectFactory func(Scheduler) SubjectLike[T], selector func(Observable[T]) Observable[R]) Operator[T, R] {
	return func(source Observable[T]) Observable[R] {
		return Create(func(observer Observer[R], scheduler Scheduler) Disposable {
			connectable := NewConnectableObservable(source, subjectFactory(scheduler))
			subscription := selector(connectable).Subscribe(observer, scheduler)
			return NewCompositeDisposable(subscription, connectable.ConnectWith(scheduler))
		})
	}
}

// Publish 通过Subject多播
func Publish[T any](source Observable[T]) *ConnectableObservable[T] {
	return NewConnectableObservable[T](source, NewSubject[T]())
}

// PublishWith 在selector内共享单个订阅
func PublishWith[T, R any](selector func(Observable[T]) Observable[R]) Operator[T, R] {
	return MulticastFactory(func(Scheduler) SubjectLike[T] {
		return NewSubject[T]()
	}, selector)
}

// PublishValue 通过带初始值的BehaviorSubject多播
func PublishValue[T any](source Observable[T], initial T) *ConnectableObservable[T] {
	return NewConnectableObservable[T](source, NewBehaviorSubject(initial))
}

// Replay 通过ReplaySubject多播，选项同NewReplaySubject
func Replay[T any](source Observable[T], options ...Option) *ConnectableObservable[T] {
	return NewConnectableObservable[T](source, NewReplaySubject[T](options...))
}

// ReplayWith 在selector内共享带重放的单个订阅
func ReplayWith[T, R any](selector func(Observable[T]) Observable[R], options ...Option) Operator[T, R] {
	return MulticastFactory(func(scheduler Scheduler) SubjectLike[T] {
		opts := options
		if scheduler != nil {
			opts = append([]Option{WithScheduler(scheduler)}, options...)
		}
		return NewReplaySubject[T](opts...)
	}, selector)
}

// Share 共享单个订阅，等价于Publish后RefCount
func Share[T any]() Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Publish(source).RefCount()
	}
}

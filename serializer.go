// Serialized delivery for reactivex
// 多输入操作符的串行化闸门
package reactivex

import "sync"

// serializer 队列式串行执行：同一时刻只有一个排空者，重入或并发的提交排在队尾
type serializer struct {
	mu       sync.Mutex
	queue    []func()
	draining bool
}

// Do 提交并在可能时立即排空
func (s *serializer) Do(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	s.drain()
}

// Hold 占住闸门，之后的Do只入队，直到Resume
func (s *serializer) Hold() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
}

// Resume 先执行fn，再排空Hold期间积累的提交
func (s *serializer) Resume(fn func()) {
	s.mu.Lock()
	s.queue = append([]func(){fn}, s.queue...)
	s.mu.Unlock()

	s.drain()
}

// drain 由持有闸门的一方调用
func (s *serializer) drain() {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.queue = nil
			s.draining = false
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		next()
	}
}

// gatedObserver 经由闸门投递通知
type gatedObserver[T any] struct {
	observer Observer[T]
	gate     *serializer
}

func (o *gatedObserver[T]) OnNext(value T) {
	o.gate.Do(func() { o.observer.OnNext(value) })
}

func (o *gatedObserver[T]) OnError(err error) {
	o.gate.Do(func() { o.observer.OnError(err) })
}

func (o *gatedObserver[T]) OnCompleted() {
	o.gate.Do(func() { o.observer.OnCompleted() })
}

// Blocking operators for reactivex
// 阻塞桥接实现，把推送序列转换为通道、迭代器或同步结果
package reactivex

import (
	"context"
	"iter"
	"sync"

	"github.com/pkg/errors"
)

// ============================================================================
// 通道与迭代器
// ============================================================================

// ToChannel 订阅源并把通知转发到返回的通道，终止通知之后通道关闭。
// 源与读取方之间使用无界缓冲，同步发射的源不会阻塞订阅；ctx取消时释放订阅并关闭通道。
func ToChannel[T any](ctx context.Context, source Observable[T]) <-chan Notification[T] {
	out := make(chan Notification[T])

	var mu sync.Mutex
	cond := sync.NewCond(&mu)
	var queue []Notification[T]
	finished := false

	push := func(n Notification[T]) {
		mu.Lock()
		if !finished {
			queue = append(queue, n)
			finished = n.Kind != KindNext
		}
		mu.Unlock()
		cond.Signal()
	}

	subscription := source.Subscribe(NewObserver(func(value T) {
		push(NextNotification(value))
	}, func(err error) {
		push(ErrorNotification[T](err))
	}, func() {
		push(CompletedNotification[T]())
	}), nil)

	go func() {
		defer close(out)
		defer subscription.Dispose()

		stop := context.AfterFunc(ctx, func() {
			mu.Lock()
			defer mu.Unlock()
			cond.Broadcast()
		})
		defer stop()

		for {
			mu.Lock()
			for len(queue) == 0 && !finished && ctx.Err() == nil {
				cond.Wait()
			}
			if ctx.Err() != nil || len(queue) == 0 {
				mu.Unlock()
				return
			}
			n := queue[0]
			queue = queue[1:]
			mu.Unlock()

			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// ToIterable 把源转换为拉取式迭代器，每次产出一个值和nil；
// 源出错或ctx取消时最后产出零值和错误。提前停止迭代会释放订阅。
func ToIterable[T any](ctx context.Context, source Observable[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var zero T
		for n := range ToChannel(ctx, source) {
			switch n.Kind {
			case KindNext:
				if !yield(n.Value, nil) {
					return
				}
			case KindError:
				yield(zero, n.Err)
				return
			case KindCompleted:
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield(zero, err)
		}
	}
}

// ============================================================================
// 阻塞结果
// ============================================================================

// BlockingSubscribe 阻塞订阅直到序列终止或ctx取消，返回序列的错误或ctx的错误
func BlockingSubscribe[T any](ctx context.Context, source Observable[T], observer Observer[T]) error {
	for n := range ToChannel(ctx, source) {
		n.Accept(observer)
		if n.Kind == KindError {
			return n.Err
		}
	}
	return ctx.Err()
}

// BlockingForEach 阻塞遍历所有值
func BlockingForEach[T any](ctx context.Context, source Observable[T], action func(T)) error {
	for value, err := range ToIterable(ctx, source) {
		if err != nil {
			return err
		}
		action(value)
	}
	return nil
}

// BlockingFirst 阻塞获取第一个值，序列为空时返回ErrSequenceContainsNoElements
func BlockingFirst[T any](ctx context.Context, source Observable[T]) (T, error) {
	for value, err := range ToIterable(ctx, source) {
		return value, err
	}
	var zero T
	return zero, errors.WithStack(ErrSequenceContainsNoElements)
}

// BlockingLast 阻塞获取最后一个值，序列为空时返回ErrSequenceContainsNoElements
func BlockingLast[T any](ctx context.Context, source Observable[T]) (T, error) {
	var last T
	seen := false
	for value, err := range ToIterable(ctx, source) {
		if err != nil {
			var zero T
			return zero, err
		}
		last = value
		seen = true
	}
	if !seen {
		return last, errors.WithStack(ErrSequenceContainsNoElements)
	}
	return last, nil
}

// BlockingToSlice 阻塞收集所有值到切片
func BlockingToSlice[T any](ctx context.Context, source Observable[T]) ([]T, error) {
	values := make([]T, 0)
	for value, err := range ToIterable(ctx, source) {
		if err != nil {
			return values, err
		}
		values = append(values, value)
	}
	return values, nil
}

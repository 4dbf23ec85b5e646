// Recorded messages for reactivex tests
// 带虚拟时间戳的通知记录与订阅区间
package rxtest

import (
	"fmt"
	"math"

	"github.com/xinjiayu/reactivex"
)

// Infinite 尚未释放的订阅的结束时刻
const Infinite int64 = math.MaxInt64

// ============================================================================
// 记录的通知
// ============================================================================

// Recorded 某个虚拟时刻收到的通知
type Recorded[T any] struct {
	Time  int64
	Value reactivex.Notification[T]
}

// String 格式化输出
func (r Recorded[T]) String() string {
	return fmt.Sprintf("%s@%d", r.Value, r.Time)
}

// OnNext 在ticks时刻发射value
func OnNext[T any](ticks int64, value T) Recorded[T] {
	return Recorded[T]{Time: ticks, Value: reactivex.NextNotification(value)}
}

// OnError 在ticks时刻以err终止
func OnError[T any](ticks int64, err error) Recorded[T] {
	return Recorded[T]{Time: ticks, Value: reactivex.ErrorNotification[T](err)}
}

// OnCompleted 在ticks时刻完成
func OnCompleted[T any](ticks int64) Recorded[T] {
	return Recorded[T]{Time: ticks, Value: reactivex.CompletedNotification[T]()}
}

// ============================================================================
// 订阅区间
// ============================================================================

// Subscription 订阅发生和释放的虚拟时刻，Unsubscribe为Infinite表示仍然有效
type Subscription struct {
	Subscribe   int64
	Unsubscribe int64
}

// Subscribe 创建订阅区间，省略end表示尚未释放
func Subscribe(start int64, end ...int64) Subscription {
	s := Subscription{Subscribe: start, Unsubscribe: Infinite}
	if len(end) > 0 {
		s.Unsubscribe = end[0]
	}
	return s
}

// String 格式化输出
func (s Subscription) String() string {
	if s.Unsubscribe == Infinite {
		return fmt.Sprintf("(%d, Infinite)", s.Subscribe)
	}
	return fmt.Sprintf("(%d, %d)", s.Subscribe, s.Unsubscribe)
}

// Error definitions for reactivex
// 统一的错误定义与panic转换工具
package reactivex

import (
	"github.com/pkg/errors"
)

// ============================================================================
// 哨兵错误
// ============================================================================

var (
	// ErrDisposed 对已释放对象的操作
	ErrDisposed = errors.New("object has been disposed")

	// ErrWouldBlock 立即调度器拒绝阻塞等待
	ErrWouldBlock = errors.New("scheduling would block the current goroutine")

	// ErrSequenceContainsNoElements 序列为空
	ErrSequenceContainsNoElements = errors.New("sequence contains no elements")

	// ErrSequenceContainsMoreThanOneElement 序列包含多个元素
	ErrSequenceContainsMoreThanOneElement = errors.New("sequence contains more than one element")

	// ErrArgumentOutOfRange 参数越界
	ErrArgumentOutOfRange = errors.New("argument out of range")

	// ErrTimeout 超时
	ErrTimeout = errors.New("timeout")

	// ErrReentrancy 观察者被重入调用
	ErrReentrancy = errors.New("re-entrancy detected")

	// ErrCompleted 观察者已经终止后再次收到通知
	ErrCompleted = errors.New("observer has already terminated")

	// ErrAlreadyAssigned 单次赋值的disposable被重复赋值
	ErrAlreadyAssigned = errors.New("disposable has already been assigned")

	// ErrNoMoreItems 迭代器已耗尽
	ErrNoMoreItems = errors.New("no more items")
)

// ============================================================================
// panic 转换
// ============================================================================

// panicError 将recover得到的值转换为error，error值原样返回
func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return errors.Errorf("panic: %v", r)
}

// tryCall 执行函数并把panic转换为error
func tryCall(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	fn()
	return nil
}

// tryCall1 执行有返回值的函数并把panic转换为error
func tryCall1[R any](fn func() (R, error)) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return fn()
}

// Disposable implementations for reactivex
// 资源释放句柄及其组合
package reactivex

import (
	"sync"
	"sync/atomic"
)

// ============================================================================
// Disposable 接口
// ============================================================================

// Disposable 可释放资源的接口，Dispose是幂等的
type Disposable interface {
	// Dispose 释放资源
	Dispose()
	// IsDisposed 检查是否已释放
	IsDisposed() bool
}

// ============================================================================
// 基础实现
// ============================================================================

// baseDisposable 基础可释放资源实现
type baseDisposable struct {
	disposed int32
	action   func()
}

// NewDisposable 创建在首次释放时执行action的Disposable
func NewDisposable(action func()) Disposable {
	return &baseDisposable{action: action}
}

// Dispose 释放资源
func (d *baseDisposable) Dispose() {
	if atomic.CompareAndSwapInt32(&d.disposed, 0, 1) {
		if d.action != nil {
			d.action()
		}
	}
}

// IsDisposed 检查是否已释放
func (d *baseDisposable) IsDisposed() bool {
	return atomic.LoadInt32(&d.disposed) == 1
}

// emptyDisposable 空操作
type emptyDisposable struct{}

func (emptyDisposable) Dispose()         {}
func (emptyDisposable) IsDisposed() bool { return false }

// EmptyDisposable 返回空操作的Disposable
func EmptyDisposable() Disposable {
	return emptyDisposable{}
}

// BooleanDisposable 只记录释放状态
type BooleanDisposable struct {
	disposed atomic.Bool
}

// NewBooleanDisposable 创建BooleanDisposable
func NewBooleanDisposable() *BooleanDisposable {
	return &BooleanDisposable{}
}

// Dispose 标记为已释放
func (d *BooleanDisposable) Dispose() {
	d.disposed.Store(true)
}

// IsDisposed 检查是否已释放
func (d *BooleanDisposable) IsDisposed() bool {
	return d.disposed.Load()
}

// ============================================================================
// SingleAssignmentDisposable
// ============================================================================

// SingleAssignmentDisposable 只能赋值一次的Disposable槽位
type SingleAssignmentDisposable struct {
	mu         sync.Mutex
	disposed   bool
	assigned   bool
	disposable Disposable
}

// NewSingleAssignmentDisposable 创建单次赋值槽位
func NewSingleAssignmentDisposable() *SingleAssignmentDisposable {
	return &SingleAssignmentDisposable{}
}

// Disposable 获取当前持有的Disposable
func (d *SingleAssignmentDisposable) Disposable() Disposable {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposable
}

// SetDisposable 赋值，第二次赋值会panic；如果已释放则立即释放传入值
func (d *SingleAssignmentDisposable) SetDisposable(value Disposable) {
	d.mu.Lock()
	if d.assigned {
		d.mu.Unlock()
		panic(ErrAlreadyAssigned)
	}
	d.assigned = true
	disposed := d.disposed
	if !disposed {
		d.disposable = value
	}
	d.mu.Unlock()

	if disposed && value != nil {
		value.Dispose()
	}
}

// Dispose 释放持有的Disposable
func (d *SingleAssignmentDisposable) Dispose() {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	old := d.disposable
	d.disposable = nil
	d.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (d *SingleAssignmentDisposable) IsDisposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

// ============================================================================
// SerialDisposable
// ============================================================================

// SerialDisposable 可替换的槽位，替换时释放前一个
type SerialDisposable struct {
	mu         sync.Mutex
	disposed   bool
	current    Disposable
	disposeOld bool
}

// NewSerialDisposable 创建SerialDisposable
func NewSerialDisposable() *SerialDisposable {
	return &SerialDisposable{disposeOld: true}
}

// Disposable 获取当前持有的Disposable
func (d *SerialDisposable) Disposable() Disposable {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// SetDisposable 替换当前持有的Disposable
func (d *SerialDisposable) SetDisposable(value Disposable) {
	var old Disposable

	d.mu.Lock()
	disposed := d.disposed
	if !disposed {
		old = d.current
		d.current = value
	}
	d.mu.Unlock()

	if d.disposeOld && old != nil {
		old.Dispose()
	}
	if disposed && value != nil {
		value.Dispose()
	}
}

// Dispose 释放当前持有的Disposable
func (d *SerialDisposable) Dispose() {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	old := d.current
	d.current = nil
	d.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (d *SerialDisposable) IsDisposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

// ============================================================================
// MultipleAssignmentDisposable
// ============================================================================

// MultipleAssignmentDisposable 可替换的槽位，替换时不释放前一个
type MultipleAssignmentDisposable struct {
	SerialDisposable
}

// NewMultipleAssignmentDisposable 创建MultipleAssignmentDisposable
func NewMultipleAssignmentDisposable() *MultipleAssignmentDisposable {
	return &MultipleAssignmentDisposable{}
}

// ============================================================================
// CompositeDisposable
// ============================================================================

// CompositeDisposable 组合式资源管理器
type CompositeDisposable struct {
	mu        sync.Mutex
	disposed  bool
	resources []Disposable
}

// NewCompositeDisposable 创建组合式资源管理器
func NewCompositeDisposable(disposables ...Disposable) *CompositeDisposable {
	resources := make([]Disposable, 0, len(disposables))
	for _, d := range disposables {
		if d != nil {
			resources = append(resources, d)
		}
	}
	return &CompositeDisposable{resources: resources}
}

// Add 添加可释放资源，已释放时立即释放传入值
func (cd *CompositeDisposable) Add(disposable Disposable) {
	if disposable == nil {
		return
	}

	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		disposable.Dispose()
		return
	}
	cd.resources = append(cd.resources, disposable)
	cd.mu.Unlock()
}

// Remove 移除并释放资源，返回是否找到
func (cd *CompositeDisposable) Remove(disposable Disposable) bool {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return false
	}

	found := false
	for i, resource := range cd.resources {
		if resource == disposable {
			cd.resources = append(cd.resources[:i], cd.resources[i+1:]...)
			found = true
			break
		}
	}
	cd.mu.Unlock()

	if found {
		disposable.Dispose()
	}
	return found
}

// Contains 检查是否包含资源
func (cd *CompositeDisposable) Contains(disposable Disposable) bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	for _, resource := range cd.resources {
		if resource == disposable {
			return true
		}
	}
	return false
}

// Len 资源数量
func (cd *CompositeDisposable) Len() int {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return len(cd.resources)
}

// Clear 释放并移除所有资源，但不把自身标记为已释放
func (cd *CompositeDisposable) Clear() {
	cd.mu.Lock()
	resources := cd.resources
	cd.resources = nil
	cd.mu.Unlock()

	for _, resource := range resources {
		resource.Dispose()
	}
}

// Dispose 释放所有资源
func (cd *CompositeDisposable) Dispose() {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return
	}
	cd.disposed = true
	resources := cd.resources
	cd.resources = nil
	cd.mu.Unlock()

	for _, resource := range resources {
		resource.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (cd *CompositeDisposable) IsDisposed() bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.disposed
}

// ============================================================================
// RefCountDisposable
// ============================================================================

// RefCountDisposable 主句柄和所有内部句柄都释放后才释放底层资源
type RefCountDisposable struct {
	mu            sync.Mutex
	underlying    Disposable
	isPrimaryGone bool
	isDisposed    bool
	count         int
}

// NewRefCountDisposable 创建RefCountDisposable
func NewRefCountDisposable(underlying Disposable) *RefCountDisposable {
	return &RefCountDisposable{underlying: underlying}
}

// Dispose 释放主句柄
func (d *RefCountDisposable) Dispose() {
	d.mu.Lock()
	if d.isDisposed || d.isPrimaryGone {
		d.mu.Unlock()
		return
	}
	d.isPrimaryGone = true
	fire := d.count == 0
	if fire {
		d.isDisposed = true
	}
	d.mu.Unlock()

	if fire {
		d.underlying.Dispose()
	}
}

// release 释放一个内部句柄
func (d *RefCountDisposable) release() {
	d.mu.Lock()
	if d.isDisposed {
		d.mu.Unlock()
		return
	}
	d.count--
	fire := d.isPrimaryGone && d.count == 0
	if fire {
		d.isDisposed = true
	}
	d.mu.Unlock()

	if fire {
		d.underlying.Dispose()
	}
}

// Disposable 获取一个内部句柄，已释放时返回空操作
func (d *RefCountDisposable) Disposable() Disposable {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isDisposed {
		return EmptyDisposable()
	}
	d.count++
	return NewDisposable(d.release)
}

// IsDisposed 检查底层资源是否已释放
func (d *RefCountDisposable) IsDisposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isDisposed
}

// ============================================================================
// ScheduledDisposable
// ============================================================================

// ScheduledDisposable 在指定调度器上执行释放
type ScheduledDisposable struct {
	scheduler  Scheduler
	disposable *SingleAssignmentDisposable
	disposed   atomic.Bool
}

// NewScheduledDisposable 创建ScheduledDisposable
func NewScheduledDisposable(scheduler Scheduler, disposable Disposable) *ScheduledDisposable {
	slot := NewSingleAssignmentDisposable()
	slot.SetDisposable(disposable)
	return &ScheduledDisposable{scheduler: scheduler, disposable: slot}
}

// Dispose 调度释放动作
func (d *ScheduledDisposable) Dispose() {
	if !d.disposed.CompareAndSwap(false, true) {
		return
	}
	d.scheduler.Schedule(func(Scheduler, any) Disposable {
		d.disposable.Dispose()
		return nil
	}, nil)
}

// IsDisposed 检查是否已请求释放
func (d *ScheduledDisposable) IsDisposed() bool {
	return d.disposed.Load()
}

// Observable implementation for reactivex
// Observable核心实现：以订阅函数表示的可观察序列
package reactivex

// ============================================================================
// Observable 核心实现
// ============================================================================

// observableImpl Observable的核心实现
type observableImpl[T any] struct {
	subscribeCore SubscribeFunc[T]
}

// Create 从订阅函数创建Observable
func Create[T any](subscribe SubscribeFunc[T]) Observable[T] {
	return &observableImpl[T]{subscribeCore: subscribe}
}

// Subscribe 订阅
//
// 观察者被包装为自动解绑观察者；订阅函数的panic以OnError投递，
// 观察者已停止时继续panic。当前goroutine的蹦床空闲时，整个订阅过程
// 作为蹦床上的一个调度项执行，保证订阅句柄先于同步发射的后续工作挂载。
func (o *observableImpl[T]) Subscribe(observer Observer[T], scheduler Scheduler) Disposable {
	if observer == nil {
		observer = NewObserver[T](nil, nil, nil)
	}
	ado := newAutoDetachObserver(observer)

	setDisposable := func(Scheduler, any) Disposable {
		ado.SetSubscription(o.subscribe(ado, scheduler))
		return nil
	}

	current := CurrentThread()
	if current.ScheduleRequired() {
		current.Schedule(setDisposable, nil)
	} else {
		setDisposable(current, nil)
	}

	return NewDisposable(ado.Dispose)
}

// subscribe 执行订阅函数并把panic转为OnError
func (o *observableImpl[T]) subscribe(ado *autoDetachObserver[T], scheduler Scheduler) (d Disposable) {
	defer func() {
		if r := recover(); r != nil {
			if !ado.Fail(panicError(r)) {
				panic(r)
			}
			d = nil
		}
	}()
	return o.subscribeCore(ado, scheduler)
}

// SubscribeWithCallbacks 使用回调函数订阅
func (o *observableImpl[T]) SubscribeWithCallbacks(onNext func(T), onError func(error), onCompleted func()) Disposable {
	return o.Subscribe(NewObserver(onNext, onError, onCompleted), nil)
}

// AsObservable 隐藏源的具体类型
func AsObservable[T any]() Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Create(func(observer Observer[T], scheduler Scheduler) Disposable {
			return source.Subscribe(observer, scheduler)
		})
	}
}

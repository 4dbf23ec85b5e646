package reactivex

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// counter 记录释放次数
type counter struct {
	n atomic.Int32
}

func (c *counter) disposable() Disposable {
	return NewDisposable(func() { c.n.Add(1) })
}

func (c *counter) count() int {
	return int(c.n.Load())
}

func TestDisposableIdempotent(t *testing.T) {
	var c counter
	d := c.disposable()
	require.False(t, d.IsDisposed())

	d.Dispose()
	d.Dispose()
	require.True(t, d.IsDisposed())
	require.Equal(t, 1, c.count())

	t.Run("并发释放只执行一次", func(t *testing.T) {
		var c counter
		d := c.disposable()
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.Dispose()
			}()
		}
		wg.Wait()
		require.Equal(t, 1, c.count())
	})
}

func TestBooleanDisposable(t *testing.T) {
	d := NewBooleanDisposable()
	require.False(t, d.IsDisposed())
	d.Dispose()
	require.True(t, d.IsDisposed())
}

func TestSingleAssignmentDisposable(t *testing.T) {
	t.Run("释放持有的值", func(t *testing.T) {
		var c counter
		d := NewSingleAssignmentDisposable()
		d.SetDisposable(c.disposable())
		d.Dispose()
		require.Equal(t, 1, c.count())
		require.True(t, d.IsDisposed())
	})

	t.Run("已释放时立即释放新值", func(t *testing.T) {
		var c counter
		d := NewSingleAssignmentDisposable()
		d.Dispose()
		d.SetDisposable(c.disposable())
		require.Equal(t, 1, c.count())
	})

	t.Run("第二次赋值panic", func(t *testing.T) {
		d := NewSingleAssignmentDisposable()
		d.SetDisposable(EmptyDisposable())
		require.PanicsWithValue(t, ErrAlreadyAssigned, func() {
			d.SetDisposable(EmptyDisposable())
		})
	})
}

func TestSerialDisposable(t *testing.T) {
	var first, second, third counter
	d := NewSerialDisposable()

	d.SetDisposable(first.disposable())
	d.SetDisposable(second.disposable())
	require.Equal(t, 1, first.count())
	require.Equal(t, 0, second.count())

	d.Dispose()
	require.Equal(t, 1, second.count())

	d.SetDisposable(third.disposable())
	require.Equal(t, 1, third.count())
	require.True(t, d.IsDisposed())
}

func TestMultipleAssignmentDisposable(t *testing.T) {
	var first, second counter
	d := NewMultipleAssignmentDisposable()

	d.SetDisposable(first.disposable())
	d.SetDisposable(second.disposable())
	require.Equal(t, 0, first.count())

	d.Dispose()
	require.Equal(t, 0, first.count())
	require.Equal(t, 1, second.count())
}

func TestCompositeDisposable(t *testing.T) {
	var a, b, c counter
	da, db := a.disposable(), b.disposable()
	cd := NewCompositeDisposable(da, db)
	require.Equal(t, 2, cd.Len())
	require.True(t, cd.Contains(da))

	require.True(t, cd.Remove(da))
	require.Equal(t, 1, a.count())
	require.False(t, cd.Remove(da))
	require.Equal(t, 1, cd.Len())

	cd.Dispose()
	require.Equal(t, 1, b.count())
	require.Equal(t, 0, cd.Len())

	cd.Add(c.disposable())
	require.Equal(t, 1, c.count())
	require.True(t, cd.IsDisposed())

	t.Run("Clear释放但不终止", func(t *testing.T) {
		var x counter
		cd := NewCompositeDisposable(x.disposable())
		cd.Clear()
		require.Equal(t, 1, x.count())
		require.False(t, cd.IsDisposed())
		require.Equal(t, 0, cd.Len())
	})
}

func TestRefCountDisposable(t *testing.T) {
	var c counter
	rc := NewRefCountDisposable(c.disposable())

	inner1 := rc.Disposable()
	inner2 := rc.Disposable()

	rc.Dispose()
	require.Equal(t, 0, c.count())
	require.False(t, rc.IsDisposed())

	inner1.Dispose()
	inner1.Dispose()
	require.Equal(t, 0, c.count())

	inner2.Dispose()
	require.Equal(t, 1, c.count())
	require.True(t, rc.IsDisposed())

	require.NotPanics(t, func() { rc.Disposable().Dispose() })
	require.Equal(t, 1, c.count())
}

func TestScheduledDisposable(t *testing.T) {
	var c counter
	s := NewVirtualTimeScheduler(time.Unix(0, 0))
	d := NewScheduledDisposable(s, c.disposable())

	d.Dispose()
	require.True(t, d.IsDisposed())
	require.Equal(t, 0, c.count())

	s.Start()
	require.Equal(t, 1, c.count())
}

// mockDisposable 记录Dispose调用的模拟资源
type mockDisposable struct {
	mock.Mock
}

func (m *mockDisposable) Dispose() {
	m.Called()
}

func (m *mockDisposable) IsDisposed() bool {
	return m.Called().Bool(0)
}

func TestCompositeDisposableWithMock(t *testing.T) {
	removed := new(mockDisposable)
	removed.On("Dispose").Once()
	kept := new(mockDisposable)
	kept.On("Dispose").Once()

	cd := NewCompositeDisposable(removed, kept)
	require.True(t, cd.Remove(removed))
	require.False(t, cd.Remove(removed))
	removed.AssertExpectations(t)

	cd.Dispose()
	cd.Dispose()
	kept.AssertExpectations(t)

	late := new(mockDisposable)
	late.On("Dispose").Once()
	cd.Add(late)
	late.AssertExpectations(t)
	require.Equal(t, 0, cd.Len())
}

package reactivex_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	rx "github.com/xinjiayu/reactivex"
)

var errBoom = errors.New("boom")

// values 阻塞收集序列的值，要求序列正常完成
func values[T any](t *testing.T, source rx.Observable[T]) []T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := rx.BlockingToSlice(ctx, source)
	require.NoError(t, err)
	return out
}

// valuesErr 阻塞收集序列的值和终止错误
func valuesErr[T any](t *testing.T, source rx.Observable[T]) ([]T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return rx.BlockingToSlice(ctx, source)
}

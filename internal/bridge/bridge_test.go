package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SameResultInBothModes(t *testing.T) {
	for _, outcome := range []bool{true, false} {
		fn := func(ctx context.Context) bool { return outcome }

		inline, err := Run(context.Background(), Inline, fn)
		require.NoError(t, err)
		detached, err := Run(context.Background(), Detached, fn)
		require.NoError(t, err)

		assert.Equal(t, outcome, inline)
		assert.Equal(t, inline, detached)
	}
}

func TestRun_DetachedFromInsideActiveWorker(t *testing.T) {
	// 模拟已处于受管执行上下文（如 HTTP 处理函数）中再调用
	outer, err := Run(context.Background(), Inline, func(ctx context.Context) bool {
		inner, err := Run(ctx, Detached, func(ctx context.Context) bool { return true })
		return err == nil && inner
	})
	require.NoError(t, err)
	assert.True(t, outer)
}

func TestRun_DetachedIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := Run(ctx, Detached, func(ctx context.Context) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(10 * time.Millisecond):
			return true
		}
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_InlineSeesCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := Run(ctx, Inline, func(ctx context.Context) bool { return ctx.Err() == nil })
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRun_PanicBecomesFalse(t *testing.T) {
	for _, mode := range []Mode{Inline, Detached} {
		ok, err := Run(context.Background(), mode, func(ctx context.Context) bool { panic("boom") })
		require.NoError(t, err, mode.String())
		assert.False(t, ok, mode.String())
	}
}

func TestRun_UnknownMode(t *testing.T) {
	called := false
	_, err := Run(context.Background(), Mode(42), func(ctx context.Context) bool {
		called = true
		return true
	})
	assert.True(t, errors.Is(err, ErrUnknownMode))
	assert.False(t, called)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Inline")
	require.NoError(t, err)
	assert.Equal(t, Inline, m)

	m, err = ParseMode(" detached ")
	require.NoError(t, err)
	assert.Equal(t, Detached, m)

	_, err = ParseMode("threaded")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

package tts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackEngine_UsesSecondOnFailure(t *testing.T) {
	calls := 0
	failing := EngineFunc(func(ctx context.Context, text string, voice Voice) ([]byte, error) {
		calls++
		return nil, errors.New("network down")
	})
	f := NewFallbackEngine([]Engine{failing, echoEngine()}, []string{"tencent", "edge"})

	data, err := f.Synthesize(context.Background(), "hi", DefaultVoice())
	require.NoError(t, err)
	assert.Contains(t, string(data), "hi")
	assert.Equal(t, 1, calls)
}

func TestFallbackEngine_AllFail(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	f := NewFallbackEngine([]Engine{
		EngineFunc(func(ctx context.Context, text string, voice Voice) ([]byte, error) { return nil, errA }),
		EngineFunc(func(ctx context.Context, text string, voice Voice) ([]byte, error) { return nil, errB }),
	}, []string{"a", "b"})

	_, err := f.Synthesize(context.Background(), "hi", DefaultVoice())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestFallbackEngine_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	second := false
	f := NewFallbackEngine([]Engine{
		EngineFunc(func(ctx context.Context, text string, voice Voice) ([]byte, error) { return nil, ctx.Err() }),
		EngineFunc(func(ctx context.Context, text string, voice Voice) ([]byte, error) {
			second = true
			return []byte("x"), nil
		}),
	}, []string{"a", "b"})

	_, err := f.Synthesize(ctx, "hi", DefaultVoice())
	assert.Error(t, err)
	assert.False(t, second)
}

func TestNewFallbackEngine_PanicsOnMismatch(t *testing.T) {
	assert.Panics(t, func() { NewFallbackEngine([]Engine{echoEngine()}, nil) })
	assert.Panics(t, func() { NewFallbackEngine(nil, nil) })
}

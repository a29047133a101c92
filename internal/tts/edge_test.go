package tts

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEdge 按库的方式投递消息：channel 不关闭，每段结束发一条 "end"。
type fakeEdge struct {
	messages []map[string]interface{}
	chunks   int
	closed   atomic.Int32
	openErr  error
}

func (f *fakeEdge) engine() *EdgeEngine {
	return &EdgeEngine{open: func(text string, voice Voice) (*edgeStream, error) {
		if f.openErr != nil {
			return nil, f.openErr
		}
		ch := make(chan map[string]interface{}, len(f.messages))
		for _, m := range f.messages {
			ch <- m
		}
		return &edgeStream{messages: ch, chunks: f.chunks, close: func() { f.closed.Add(1) }}, nil
	}}
}

func audioMsg(index int, data string) map[string]interface{} {
	return map[string]interface{}{
		"type": "audio",
		"data": edge.AudioData{Data: []byte(data), Index: index},
	}
}

func endMsg() map[string]interface{} { return map[string]interface{}{"end": ""} }

func TestEdgeEngine_CollectsChunksInOrder(t *testing.T) {
	f := &fakeEdge{
		chunks: 2,
		messages: []map[string]interface{}{
			audioMsg(1, "C"),
			audioMsg(0, "A"),
			{"type": "WordBoundary", "offset": 100},
			audioMsg(0, "B"),
			endMsg(),
			audioMsg(1, "D"),
			endMsg(),
		},
	}

	done := make(chan struct{})
	var data []byte
	var err error
	go func() {
		data, err = f.engine().Synthesize(context.Background(), "hello", DefaultVoice())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("收齐 end 后仍未返回")
	}
	require.NoError(t, err)
	assert.Equal(t, "ABCD", string(data))
	assert.Equal(t, int32(1), f.closed.Load())
}

func TestEdgeEngine_ErrorMessage(t *testing.T) {
	f := &fakeEdge{
		chunks: 1,
		messages: []map[string]interface{}{
			audioMsg(0, "A"),
			{"error": edge.WebSocketError{Message: "connection reset"}},
		},
	}

	_, err := f.engine().Synthesize(context.Background(), "hello", DefaultVoice())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, int32(1), f.closed.Load())
}

func TestEdgeEngine_NoAudio(t *testing.T) {
	f := &fakeEdge{chunks: 1, messages: []map[string]interface{}{endMsg()}}

	_, err := f.engine().Synthesize(context.Background(), "hello", DefaultVoice())
	assert.Error(t, err)
}

func TestEdgeEngine_TimeoutWhileWaiting(t *testing.T) {
	// 只有音频没有 end，模拟服务端挂起
	f := &fakeEdge{chunks: 1, messages: []map[string]interface{}{audioMsg(0, "A")}}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.engine().Synthesize(ctx, "hello", DefaultVoice())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), f.closed.Load())
}

func TestEdgeEngine_TimeoutWhileOpening(t *testing.T) {
	release := make(chan struct{})
	var closed atomic.Int32
	e := &EdgeEngine{open: func(text string, voice Voice) (*edgeStream, error) {
		<-release
		return &edgeStream{
			messages: make(chan map[string]interface{}),
			chunks:   1,
			close:    func() { closed.Add(1) },
		}, nil
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.Synthesize(ctx, "hello", DefaultVoice())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 迟到的流也会被关闭
	close(release)
	assert.Eventually(t, func() bool { return closed.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestEdgeEngine_OpenError(t *testing.T) {
	f := &fakeEdge{openErr: errors.New("invalid voice")}

	_, err := f.engine().Synthesize(context.Background(), "hello", Voice{Name: "bad"})
	assert.EqualError(t, err, "invalid voice")
}

func TestEdgeErrorMessage(t *testing.T) {
	assert.Equal(t, "no audio", edgeErrorMessage(edge.NoAudioReceived{Message: "no audio"}))
	assert.Equal(t, "websocket: eof", edgeErrorMessage(edge.WebSocketError{Message: "eof"}))
	assert.Equal(t, "boom", edgeErrorMessage(errors.New("boom")))
	assert.Equal(t, "42", edgeErrorMessage(42))
}

package tts

import (
	"bytes"
	"context"
	"fmt"

	"github.com/iabetor/voxbatch/internal/logger"
	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"
)

// edgeStream 是一次 Edge 合成的消息流。
// 文本会被拆成 chunks 段，每段结束时收到一条 "end" 消息；
// 库不会主动关闭 messages，读完后必须调用 close。
type edgeStream struct {
	messages <-chan map[string]interface{}
	chunks   int
	close    func()
}

type edgeOpener func(text string, voice Voice) (*edgeStream, error)

// EdgeEngine 使用微软 Edge TTS 实现语音合成，
// 通过 edge-tts-go 流式获取 MP3 音频块并按分段顺序拼接。
// 语速和音量字符串原样透传给服务端。
type EdgeEngine struct {
	open edgeOpener
}

// NewEdgeEngine 创建 Edge TTS 引擎。
func NewEdgeEngine() *EdgeEngine {
	return &EdgeEngine{open: openEdgeStream}
}

func openEdgeStream(text string, voice Voice) (*edgeStream, error) {
	comm, err := edge.NewCommunicate(text,
		edge.WithVoice(voice.Name),
		edge.WithRate(voice.Rate),
		edge.WithVolume(voice.Volume),
	)
	if err != nil {
		return nil, fmt.Errorf("[tts] edge-tts 创建实例失败: %w", err)
	}

	ch, err := comm.Stream()
	if err != nil {
		return nil, fmt.Errorf("[tts] edge-tts 开始流式合成失败: %w", err)
	}
	return &edgeStream{messages: ch, chunks: comm.AudioDataIndex, close: comm.CloseOutput}, nil
}

// Synthesize 将文本合成为 MP3 数据。
// 收齐每段的 "end" 后返回；收到 "error" 消息或 ctx 结束时立即返回错误。
func (e *EdgeEngine) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	logger.Debugf("[tts] edge-tts: 正在合成 %d 个字符，语音=%s", len([]rune(text)), voice)

	st, err := e.openWithContext(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	// 关闭后仍在发送的生产方会 panic，由库内的 recover 兜住
	defer st.close()

	parts := make([][][]byte, st.chunks)
	for ends := 0; ends < st.chunks; {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok := <-st.messages:
			if !ok {
				return nil, fmt.Errorf("[tts] edge-tts: 消息流提前结束 (%d/%d 段)", ends, st.chunks)
			}
			if _, end := msg["end"]; end {
				ends++
				continue
			}
			if reason, bad := msg["error"]; bad {
				return nil, fmt.Errorf("[tts] edge-tts: %s", edgeErrorMessage(reason))
			}
			if t, _ := msg["type"].(string); t != "audio" {
				continue
			}
			data, ok := msg["data"].(edge.AudioData)
			if !ok || data.Index < 0 || data.Index >= len(parts) {
				logger.Warnf("[tts] edge-tts: 忽略无法识别的音频块")
				continue
			}
			parts[data.Index] = append(parts[data.Index], data.Data)
		}
	}

	var mp3Buf bytes.Buffer
	for _, chunk := range parts {
		for _, data := range chunk {
			mp3Buf.Write(data)
		}
	}
	if mp3Buf.Len() == 0 {
		return nil, fmt.Errorf("[tts] edge-tts: 未收到音频数据")
	}

	logger.Debugf("[tts] edge-tts: 收到 %d 字节 MP3 数据 (%d 段)", mp3Buf.Len(), st.chunks)
	return mp3Buf.Bytes(), nil
}

// openWithContext 建立连接。Stream 本身不接受 ctx，
// 所以放到 goroutine 里执行，ctx 先结束时由该 goroutine 负责关闭迟到的流。
func (e *EdgeEngine) openWithContext(ctx context.Context, text string, voice Voice) (*edgeStream, error) {
	type opened struct {
		st  *edgeStream
		err error
	}
	done := make(chan opened, 1)
	go func() {
		st, err := e.open(text, voice)
		done <- opened{st, err}
	}()

	select {
	case r := <-done:
		return r.st, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil {
				r.st.close()
			}
		}()
		return nil, ctx.Err()
	}
}

func edgeErrorMessage(v interface{}) string {
	switch e := v.(type) {
	case edge.WebSocketError:
		return "websocket: " + e.Message
	case edge.UnknownResponse:
		return e.Message
	case edge.UnexpectedResponse:
		return e.Message
	case edge.NoAudioReceived:
		return e.Message
	case error:
		return e.Error()
	default:
		return fmt.Sprint(v)
	}
}

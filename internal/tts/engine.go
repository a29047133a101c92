package tts

import "context"

// Engine 定义语音合成后端接口。
type Engine interface {
	// Synthesize 将文本转换为 MP3 编码的音频数据。
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
}

// EngineFunc 让普通函数满足 Engine 接口，测试里常用。
type EngineFunc func(ctx context.Context, text string, voice Voice) ([]byte, error)

// Synthesize 实现 Engine。
func (f EngineFunc) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	return f(ctx, text, voice)
}

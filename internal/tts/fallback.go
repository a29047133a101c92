package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/iabetor/voxbatch/internal/logger"
)

// FallbackEngine 按优先级依次尝试多个引擎，第一个成功的结果即返回。
// 例如主引擎为腾讯云、网络异常时回退到 Edge TTS。
type FallbackEngine struct {
	engines []Engine
	names   []string
}

// NewFallbackEngine 创建回退引擎。engines 与 names 一一对应，names 仅用于日志。
func NewFallbackEngine(engines []Engine, names []string) *FallbackEngine {
	if len(engines) == 0 {
		panic("FallbackEngine: 至少需要一个引擎")
	}
	if len(engines) != len(names) {
		panic("FallbackEngine: engines 和 names 长度必须一致")
	}
	return &FallbackEngine{engines: engines, names: names}
}

// Synthesize 实现 Engine。所有引擎都失败时返回合并后的错误。
func (f *FallbackEngine) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	var errs []error
	for i, engine := range f.engines {
		data, err := engine.Synthesize(ctx, text, voice)
		if err == nil {
			if i > 0 {
				logger.Infof("[tts] 已回退到 %s 引擎完成合成", f.names[i])
			}
			return data, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", f.names[i], err))

		// 调用方已取消，不再尝试后续引擎
		if ctx.Err() != nil {
			break
		}
		if i+1 < len(f.engines) {
			logger.Warnf("[tts] %s 引擎合成失败，尝试 %s: %v", f.names[i], f.names[i+1], err)
		}
	}
	return nil, errors.Join(errs...)
}

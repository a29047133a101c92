package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iabetor/voxbatch/internal/logger"
)

// ErrEmptyText 表示待合成文本为空。
var ErrEmptyText = errors.New("待合成文本为空")

// Speaker 把引擎输出写成音频文件。
// 每次调用只尝试一次，不做重试；超时由 timeout 控制。
type Speaker struct {
	engine  Engine
	timeout time.Duration
}

// NewSpeaker 创建 Speaker。timeout <= 0 表示只受调用方 ctx 约束。
func NewSpeaker(engine Engine, timeout time.Duration) *Speaker {
	return &Speaker{engine: engine, timeout: timeout}
}

// Speak 合成 text 并写入 path，返回写入的音频数据。
// 失败时返回错误且不会留下半截文件。
func (s *Speaker) Speak(ctx context.Context, text string, voice Voice, path string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	data, err := s.engine.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("[tts] 引擎返回了空音频")
	}

	if err := writeFileAtomic(path, data); err != nil {
		return nil, err
	}
	return data, nil
}

// writeFileAtomic 先写临时文件再重命名，保证 path 要么不存在要么是完整文件。
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("写入音频失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("写入音频失败: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		logger.Warnf("[tts] 设置文件权限失败: %v", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("重命名音频文件失败: %w", err)
	}
	return nil
}

package tts

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/iabetor/voxbatch/internal/logger"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEngine 使用 OpenAI 兼容的 /audio/speech 接口实现语音合成。
type OpenAIEngine struct {
	client       *openai.Client
	model        string
	defaultVoice string
}

// OpenAIConfig OpenAI TTS 配置。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // 为空时使用官方地址
	Model   string
	Voice   string // Voice.Name 不是 OpenAI 音色时使用的默认音色
}

// NewOpenAIEngine 创建 OpenAI TTS 引擎。
func NewOpenAIEngine(cfg OpenAIConfig) (*OpenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("[tts] OpenAI TTS 需要 api_key")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceAlloy)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	logger.Infof("[tts] OpenAI TTS 引擎已初始化 (model=%s, voice=%s)", cfg.Model, cfg.Voice)

	return &OpenAIEngine{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		defaultVoice: cfg.Voice,
	}, nil
}

// Synthesize 将文本合成为 MP3 数据。
// 语速百分比换算为倍速（+50% → 1.5），范围 [0.25, 4.0]；接口不支持音量调节。
func (e *OpenAIEngine) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	rate, err := ParsePercent(voice.Rate)
	if err != nil {
		logger.Warnf("[tts] OpenAI TTS: %v，使用正常语速", err)
	}

	name := e.defaultVoice
	if isOpenAIVoice(voice.Name) {
		name = voice.Name
	}

	logger.Debugf("[tts] OpenAI TTS: 正在合成 %d 个字符，音色=%s", len([]rune(text)), name)

	resp, err := e.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(e.model),
		Input:          text,
		Voice:          openai.SpeechVoice(name),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          clamp(1+rate/100, 0.25, 4.0),
	})
	if err != nil {
		return nil, fmt.Errorf("[tts] OpenAI TTS 合成失败: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("[tts] 读取 OpenAI TTS 响应失败: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("[tts] OpenAI TTS: 未收到音频数据")
	}

	logger.Debugf("[tts] OpenAI TTS: 收到 %d 字节 MP3 数据", len(data))
	return data, nil
}

// isOpenAIVoice 判断名称是否像 OpenAI 音色（alloy、nova 等）。
// Edge 风格的 "hi-IN-MadhurNeural" 含连字符，会回落到默认音色。
func isOpenAIVoice(name string) bool {
	if name == "" || strings.Contains(name, "-") {
		return false
	}
	return name == strings.ToLower(name)
}

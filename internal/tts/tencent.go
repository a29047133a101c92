package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/iabetor/voxbatch/internal/logger"
	tts "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
)

// TencentEngine 使用腾讯云 TTS 实现语音合成。
// Voice.Name 为纯数字时作为音色 ID，否则使用配置中的默认音色。
type TencentEngine struct {
	client    *tts.Client
	voiceType int64
}

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID  string
	SecretKey string
	VoiceType int64
	Region    string
	// Timeout 单次请求的 HTTP 超时（秒），0 使用 SDK 默认值。
	Timeout int
}

// NewTencentEngine 创建腾讯云 TTS 引擎。
func NewTencentEngine(cfg TencentConfig) (*TencentEngine, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 需要 SecretID 和 SecretKey")
	}

	if cfg.VoiceType == 0 {
		cfg.VoiceType = 1001 // 默认音色：智瑜（女声）
	}
	if cfg.Region == "" {
		cfg.Region = "ap-guangzhou"
	}

	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tts.tencentcloudapi.com"
	if cfg.Timeout > 0 {
		cpf.HttpProfile.ReqTimeout = cfg.Timeout
	}

	client, err := tts.NewClient(credential, cfg.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建腾讯云 TTS 客户端失败: %w", err)
	}

	logger.Infof("[tts] 腾讯云 TTS 引擎已初始化 (voice=%d, region=%s)", cfg.VoiceType, cfg.Region)

	return &TencentEngine{
		client:    client,
		voiceType: cfg.VoiceType,
	}, nil
}

// Synthesize 将文本合成为 MP3 数据。
func (e *TencentEngine) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	request := e.buildRequest(text, voice)
	logger.Debugf("[tts] 腾讯云 TTS: 正在合成 %d 个字符，音色=%d", len([]rune(text)), *request.VoiceType)

	response, err := e.client.TextToVoiceWithContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 合成失败: %w", err)
	}

	if response.Response == nil || response.Response.Audio == nil {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS: 未返回音频数据")
	}

	// Base64 解码
	mp3Data, err := base64.StdEncoding.DecodeString(*response.Response.Audio)
	if err != nil {
		return nil, fmt.Errorf("[tts] Base64 解码失败: %w", err)
	}

	logger.Debugf("[tts] 腾讯云 TTS: 收到 %d 字节 MP3 数据", len(mp3Data))
	return mp3Data, nil
}

// buildRequest 把语音参数换算成腾讯云请求。
// 语速百分比换算到 [-2, 6]（0 为正常语速，+20% 约为 1 档），
// 音量百分比换算到 [-10, 10]。
func (e *TencentEngine) buildRequest(text string, voice Voice) *tts.TextToVoiceRequest {
	voiceType := e.voiceType
	if id, err := strconv.ParseInt(voice.Name, 10, 64); err == nil {
		voiceType = id
	}

	speed, err := ParsePercent(voice.Rate)
	if err != nil {
		logger.Warnf("[tts] 腾讯云 TTS: %v，使用正常语速", err)
	}
	volume, err := ParsePercent(voice.Volume)
	if err != nil {
		logger.Warnf("[tts] 腾讯云 TTS: %v，使用正常音量", err)
	}

	request := tts.NewTextToVoiceRequest()
	request.Text = common.StringPtr(text)
	request.SessionId = common.StringPtr(uuid.NewString())
	request.VoiceType = common.Int64Ptr(voiceType)
	request.Codec = common.StringPtr("mp3")
	request.Speed = common.Float64Ptr(clamp(speed/20, -2, 6))
	request.Volume = common.Float64Ptr(clamp(volume/10, -10, 10))
	return request
}

// Package pipeline 根据配置组装语音合成、翻译、存储、镜像和播放组件。
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/iabetor/voxbatch/internal/audio"
	"github.com/iabetor/voxbatch/internal/batch"
	"github.com/iabetor/voxbatch/internal/bridge"
	"github.com/iabetor/voxbatch/internal/config"
	"github.com/iabetor/voxbatch/internal/logger"
	"github.com/iabetor/voxbatch/internal/publish"
	"github.com/iabetor/voxbatch/internal/store"
	"github.com/iabetor/voxbatch/internal/translate"
	"github.com/iabetor/voxbatch/internal/tts"
)

// Pipeline 持有一次运行所需的全部组件。
type Pipeline struct {
	cfg *config.Config

	engine     tts.Engine
	translator translate.Translator
	speaker    *tts.Speaker

	db        *store.DB
	store     *store.Store
	publisher *publish.S3Publisher

	player *audio.Player
	device *audio.DevicePlayer

	processor *batch.Processor
	mode      bridge.Mode
	voices    tts.VoiceLister
}

type options struct {
	engine     tts.Engine
	translator translate.Translator
	voices     tts.VoiceLister
	playback   bool
	observers  []batch.Observer
}

// Option 调整 New 的组装方式。
type Option func(*options)

// WithEngine 使用给定的合成引擎，忽略 tts 配置。
func WithEngine(e tts.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithTranslator 使用给定的翻译器，忽略 translate 配置。
func WithTranslator(tr translate.Translator) Option {
	return func(o *options) { o.translator = tr }
}

// WithVoiceLister 使用给定的音色列表来源，默认查询 Edge 的音色列表。
func WithVoiceLister(l tts.VoiceLister) Option {
	return func(o *options) { o.voices = l }
}

// WithPlayback 每生成一个文件就在本机播放（CLI 使用）。
func WithPlayback() Option {
	return func(o *options) { o.playback = true }
}

// WithObservers 追加文件生成后的通知对象。
func WithObservers(obs ...batch.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs...) }
}

// New 按配置创建 Pipeline。失败时已创建的资源会被释放。
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pipeline{cfg: cfg}

	var err error
	p.mode, err = bridge.ParseMode(cfg.Server.BridgeMode)
	if err != nil {
		return nil, err
	}

	// TTS 引擎
	p.engine = o.engine
	if p.engine == nil {
		p.engine, err = buildEngines(cfg)
		if err != nil {
			return nil, err
		}
	}
	p.speaker = tts.NewSpeaker(p.engine, seconds(cfg.TTS.TimeoutSeconds))

	// 音色列表只有 Edge 提供
	p.voices = o.voices
	if p.voices == nil {
		p.voices = tts.NewEdgeVoiceLister("", seconds(cfg.TTS.TimeoutSeconds))
	}

	// 翻译
	p.translator = o.translator
	if p.translator == nil {
		p.translator, err = buildTranslator(cfg)
		if err != nil {
			return nil, err
		}
	}

	// 输出目录索引
	p.db, err = store.Open(cfg.Storage.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("打开索引数据库失败: %w", err)
	}
	if err := p.db.Migrate(); err != nil {
		p.Close()
		return nil, err
	}
	p.store = store.New(p.db, cfg.Storage.OutputDir, store.Policy{
		MaxSize: cfg.Storage.MaxSizeMB * 1024 * 1024,
		MaxAge:  time.Duration(cfg.Storage.MaxAgeHours) * time.Hour,
	})
	observers := []batch.Observer{p.store}

	// 对象存储镜像（可选）
	if s3 := cfg.Storage.S3; s3.Enabled {
		p.publisher, err = publish.NewS3Publisher(publish.Config{
			Endpoint:  s3.Endpoint,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Bucket:    s3.Bucket,
			Region:    s3.Region,
			Prefix:    s3.Prefix,
			UseSSL:    s3.UseSSL,
		})
		if err != nil {
			p.Close()
			return nil, err
		}
		observers = append(observers, p.publisher)
		logger.Infof("[pipeline] 已启用 S3 镜像: %s/%s", s3.Endpoint, s3.Bucket)
	}

	// 本地播放（可选）
	if o.playback {
		p.player = p.buildPlayer()
		observers = append(observers, p.player)
	}

	observers = append(observers, o.observers...)

	p.processor = batch.NewProcessor(
		p.speaker,
		translate.NewAdapter(p.translator, seconds(cfg.Translate.TimeoutSeconds)),
		batch.Config{
			OutputDir: cfg.Storage.OutputDir,
			Delay:     time.Duration(cfg.Batch.DelayMs) * time.Millisecond,
			Defaults: tts.Voice{
				Name:   cfg.Batch.Voice,
				Rate:   cfg.Batch.Rate,
				Volume: cfg.Batch.Volume,
			}.WithDefaults(tts.DefaultVoice()),
			Target: translate.NormalizeLang(cfg.Translate.Target),
		},
		observers...,
	)

	logger.Infof("[pipeline] 所有组件初始化完成 (tts=%s, translate=%s, 输出目录=%s)",
		cfg.TTS.Engine, cfg.Translate.Engine, cfg.Storage.OutputDir)
	return p, nil
}

// Processor 返回批量处理器。
func (p *Pipeline) Processor() *batch.Processor { return p.processor }

// Store 返回输出目录索引。
func (p *Pipeline) Store() *store.Store { return p.store }

// Mode 返回 HTTP 请求使用的执行方式。
func (p *Pipeline) Mode() bridge.Mode { return p.mode }

// Voices 返回音色列表来源。
func (p *Pipeline) Voices() tts.VoiceLister { return p.voices }

// Player 返回本地播放器，未启用播放时为 nil。
func (p *Pipeline) Player() *audio.Player { return p.player }

// CleanupInterval 返回定期清理的间隔。
func (p *Pipeline) CleanupInterval() time.Duration {
	return time.Duration(p.cfg.Storage.CleanupIntervalMinutes) * time.Minute
}

// CheckPublisher 确认镜像 bucket 可用，未启用镜像时直接返回 nil。
func (p *Pipeline) CheckPublisher(ctx context.Context) error {
	if p.publisher == nil {
		return nil
	}
	return p.publisher.CheckBucket(ctx)
}

// Close 释放所有资源。
func (p *Pipeline) Close() {
	if p.device != nil {
		p.device.Close()
	}
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			logger.Warnf("[pipeline] 关闭索引数据库失败: %v", err)
		}
	}
	logger.Debug("[pipeline] 已关闭")
}

// buildEngines 创建主引擎，配置了回退引擎时包装成 FallbackEngine。
func buildEngines(cfg *config.Config) (tts.Engine, error) {
	primary, err := buildEngine(cfg.TTS.Engine, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.TTS.Fallback == "" || cfg.TTS.Fallback == cfg.TTS.Engine {
		return primary, nil
	}
	fallback, err := buildEngine(cfg.TTS.Fallback, cfg)
	if err != nil {
		logger.Warnf("[pipeline] TTS 回退引擎 %s 不可用: %v", cfg.TTS.Fallback, err)
		return primary, nil
	}
	logger.Infof("[pipeline] 已启用 TTS 回退引擎: %s", cfg.TTS.Fallback)
	return tts.NewFallbackEngine(
		[]tts.Engine{primary, fallback},
		[]string{cfg.TTS.Engine, cfg.TTS.Fallback},
	), nil
}

func buildEngine(name string, cfg *config.Config) (tts.Engine, error) {
	switch name {
	case "edge":
		return tts.NewEdgeEngine(), nil
	case "tencent":
		e, err := tts.NewTencentEngine(tts.TencentConfig{
			SecretID:  cfg.TTS.Tencent.SecretID,
			SecretKey: cfg.TTS.Tencent.SecretKey,
			VoiceType: cfg.TTS.Tencent.VoiceType,
			Region:    cfg.TTS.Tencent.Region,
			Timeout:   cfg.TTS.TimeoutSeconds,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化腾讯云 TTS 失败: %w", err)
		}
		return e, nil
	case "openai":
		e, err := tts.NewOpenAIEngine(tts.OpenAIConfig{
			APIKey:  cfg.TTS.OpenAI.APIKey,
			BaseURL: cfg.TTS.OpenAI.BaseURL,
			Model:   cfg.TTS.OpenAI.Model,
			Voice:   cfg.TTS.OpenAI.Voice,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化 OpenAI TTS 失败: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("未知的 TTS 引擎: %s", name)
	}
}

// buildTranslator 创建翻译器。凭证缺失时禁用翻译而不是报错，
// 与翻译失败时使用原文的处理保持一致。
func buildTranslator(cfg *config.Config) (translate.Translator, error) {
	tc := cfg.Translate
	switch tc.Engine {
	case "none":
		return translate.Disabled{}, nil
	case "tencent":
		creds := tc.Tencent
		if creds.SecretID == "" && creds.SecretKey == "" {
			// 未单独配置时复用 TTS 的腾讯云凭证
			creds.SecretID, creds.SecretKey = cfg.TTS.Tencent.SecretID, cfg.TTS.Tencent.SecretKey
		}
		tr, err := translate.NewTencentTranslator(creds.SecretID, creds.SecretKey, creds.Region)
		if err != nil {
			logger.Warnf("[pipeline] 腾讯云翻译不可用，翻译已禁用: %v", err)
			return translate.Disabled{}, nil
		}
		return tr, nil
	case "openai":
		oc := tc.OpenAI
		if oc.APIKey == "" {
			oc.APIKey, oc.BaseURL = cfg.TTS.OpenAI.APIKey, cfg.TTS.OpenAI.BaseURL
		}
		tr, err := translate.NewOpenAITranslator(oc.APIKey, oc.BaseURL, oc.Model)
		if err != nil {
			logger.Warnf("[pipeline] OpenAI 翻译不可用，翻译已禁用: %v", err)
			return translate.Disabled{}, nil
		}
		return tr, nil
	default:
		return nil, fmt.Errorf("未知的翻译引擎: %s", tc.Engine)
	}
}

// buildPlayer 按 audio 配置创建播放器；device 后端初始化失败时退回系统播放命令。
func (p *Pipeline) buildPlayer() *audio.Player {
	ac := p.cfg.Audio

	var primary audio.Backend
	switch ac.Backend {
	case "device":
		device, err := audio.NewDevicePlayer()
		if err != nil {
			logger.Warnf("[pipeline] 声卡播放不可用，改用播放命令: %v", err)
			break
		}
		p.device = device
		primary = device
	case "command":
	default:
		logger.Warnf("[pipeline] 未知的播放方式 %s，使用播放命令", ac.Backend)
	}

	if primary == nil {
		argv := ac.Command
		if len(argv) == 0 {
			argv = audio.PlayCommand(runtime.GOOS)
		}
		primary = audio.NewCommandPlayer(argv, nil)
	}

	opener := ac.Opener
	if len(opener) == 0 {
		opener = audio.OpenCommand(runtime.GOOS)
	}
	return audio.NewPlayer(primary, audio.NewCommandPlayer(opener, nil))
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config 是 voxbatch 的顶层配置结构。
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Batch     BatchConfig     `yaml:"batch" toml:"batch"`
	TTS       TTSConfig       `yaml:"tts" toml:"tts"`
	Translate TranslateConfig `yaml:"translate" toml:"translate"`
	Audio     AudioConfig     `yaml:"audio" toml:"audio"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Log       LogConfig       `yaml:"log" toml:"log"`
}

// ServerConfig HTTP 服务配置。
type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
	// MaxUploadMB 上传的批量 JSON 文件大小上限。
	MaxUploadMB int64 `yaml:"max_upload_mb" toml:"max_upload_mb"`
	// MaxConnections 同时处理的连接数上限，0 表示不限制。
	MaxConnections int `yaml:"max_connections" toml:"max_connections"`
	// RateLimitPerMinute 每个 IP 每分钟允许的 POST /tts 次数，0 表示不限制。
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute" toml:"rate_limit_per_minute"`
	CORSOrigins        []string `yaml:"cors_origins" toml:"cors_origins"`
	// BridgeMode 处理请求时的执行方式：inline 或 detached。
	BridgeMode string `yaml:"bridge_mode" toml:"bridge_mode"`
}

// BatchConfig 批量处理配置。
type BatchConfig struct {
	// DelayMs 相邻两个请求之间的间隔（毫秒），对外部服务的礼貌限速。
	DelayMs int    `yaml:"delay_ms" toml:"delay_ms"`
	Voice   string `yaml:"voice" toml:"voice"`
	Rate    string `yaml:"rate" toml:"rate"`
	Volume  string `yaml:"volume" toml:"volume"`
}

// TTSConfig 语音合成配置。
type TTSConfig struct {
	Engine         string        `yaml:"engine" toml:"engine"`
	Fallback       string        `yaml:"fallback" toml:"fallback"`
	TimeoutSeconds int           `yaml:"timeout_seconds" toml:"timeout_seconds"`
	Tencent        TencentConfig `yaml:"tencent" toml:"tencent"`
	OpenAI         OpenAIConfig  `yaml:"openai" toml:"openai"`
}

// TencentConfig 腾讯云配置，TTS 与机器翻译共用同一结构。
type TencentConfig struct {
	SecretID  string `yaml:"secret_id" toml:"secret_id"`
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	Region    string `yaml:"region" toml:"region"`
	VoiceType int64  `yaml:"voice_type" toml:"voice_type"`
}

// OpenAIConfig OpenAI 兼容接口配置。
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" toml:"api_key"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
	Model   string `yaml:"model" toml:"model"`
	Voice   string `yaml:"voice" toml:"voice"`
}

// TranslateConfig 翻译配置。
type TranslateConfig struct {
	// Engine 可选 tencent、openai、none。
	Engine         string        `yaml:"engine" toml:"engine"`
	Target         string        `yaml:"target" toml:"target"`
	TimeoutSeconds int           `yaml:"timeout_seconds" toml:"timeout_seconds"`
	Tencent        TencentConfig `yaml:"tencent" toml:"tencent"`
	OpenAI         OpenAIConfig  `yaml:"openai" toml:"openai"`
}

// AudioConfig 本地播放配置。
type AudioConfig struct {
	// Backend 可选 command（系统播放命令）或 device（malgo 直接输出到声卡）。
	Backend string `yaml:"backend" toml:"backend"`
	// Command 覆盖默认播放命令，如 ["ffplay", "-nodisp", "-autoexit"]，文件路径追加在末尾。
	Command []string `yaml:"command" toml:"command"`
	// Opener 覆盖默认的系统通用打开方式。
	Opener []string `yaml:"opener" toml:"opener"`
}

// StorageConfig 输出目录及清理策略。
type StorageConfig struct {
	OutputDir              string   `yaml:"output_dir" toml:"output_dir"`
	IndexPath              string   `yaml:"index_path" toml:"index_path"`
	MaxSizeMB              int64    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxAgeHours            int      `yaml:"max_age_hours" toml:"max_age_hours"`
	CleanupIntervalMinutes int      `yaml:"cleanup_interval_minutes" toml:"cleanup_interval_minutes"`
	S3                     S3Config `yaml:"s3" toml:"s3"`
}

// S3Config 生成文件的对象存储镜像。
type S3Config struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Endpoint  string `yaml:"endpoint" toml:"endpoint"`
	AccessKey string `yaml:"access_key" toml:"access_key"`
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	Bucket    string `yaml:"bucket" toml:"bucket"`
	Region    string `yaml:"region" toml:"region"`
	Prefix    string `yaml:"prefix" toml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl" toml:"use_ssl"`
}

// LogConfig 日志配置。轮转参数只在设置了 file 时生效，0 表示使用默认值。
type LogConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSize    int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAge     int    `yaml:"max_age_days" toml:"max_age_days"`
}

// Default 返回只包含默认值的配置，未指定配置文件时使用。
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load 读取配置文件并返回 Config。
// 扩展名为 .toml 时按 TOML 解析，其余按 YAML 解析。
// 读取前会加载当前目录下的 .env（不存在则忽略），
// 并支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	// 展开环境变量，如 ${VOXBATCH_TENCENT_SECRET_ID}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal([]byte(expanded), cfg)
	default:
		err = yaml.Unmarshal([]byte(expanded), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 10
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.BridgeMode == "" {
		cfg.Server.BridgeMode = "detached"
	}

	if cfg.Batch.DelayMs == 0 {
		cfg.Batch.DelayMs = 1000
	} else if cfg.Batch.DelayMs < 0 {
		// 负数表示显式关闭间隔
		cfg.Batch.DelayMs = 0
	}
	if cfg.Batch.Voice == "" {
		cfg.Batch.Voice = "hi-IN-MadhurNeural"
	}
	if cfg.Batch.Rate == "" {
		cfg.Batch.Rate = "+0%"
	}
	if cfg.Batch.Volume == "" {
		cfg.Batch.Volume = "+0%"
	}

	if cfg.TTS.Engine == "" {
		cfg.TTS.Engine = "edge"
	}
	if cfg.TTS.TimeoutSeconds == 0 {
		cfg.TTS.TimeoutSeconds = 60
	}
	if cfg.TTS.Tencent.Region == "" {
		cfg.TTS.Tencent.Region = "ap-guangzhou"
	}
	if cfg.TTS.OpenAI.Model == "" {
		cfg.TTS.OpenAI.Model = "tts-1"
	}
	if cfg.TTS.OpenAI.Voice == "" {
		cfg.TTS.OpenAI.Voice = "alloy"
	}

	if cfg.Translate.Engine == "" {
		cfg.Translate.Engine = "tencent"
	}
	if cfg.Translate.Target == "" {
		cfg.Translate.Target = "hi"
	}
	if cfg.Translate.TimeoutSeconds == 0 {
		cfg.Translate.TimeoutSeconds = 15
	}
	if cfg.Translate.Tencent.Region == "" {
		cfg.Translate.Tencent.Region = "ap-guangzhou"
	}
	if cfg.Translate.OpenAI.Model == "" {
		cfg.Translate.OpenAI.Model = "gpt-4o-mini"
	}

	if cfg.Audio.Backend == "" {
		cfg.Audio.Backend = "command"
	}

	if cfg.Storage.OutputDir == "" {
		cfg.Storage.OutputDir = "./tts_output"
	} else if strings.HasPrefix(cfg.Storage.OutputDir, "~/") {
		// Go 不会自动展开 ~，需要手动替换为用户主目录
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Storage.OutputDir = home + cfg.Storage.OutputDir[1:]
		}
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = filepath.Join(cfg.Storage.OutputDir, ".voxbatch-index.db")
	}
	if cfg.Storage.MaxSizeMB == 0 {
		cfg.Storage.MaxSizeMB = 512
	}
	if cfg.Storage.MaxAgeHours == 0 {
		cfg.Storage.MaxAgeHours = 72
	}
	if cfg.Storage.CleanupIntervalMinutes == 0 {
		cfg.Storage.CleanupIntervalMinutes = 10
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// 去除密钥两端可能的空白（环境变量展开后常见）
	cfg.TTS.OpenAI.APIKey = strings.TrimSpace(cfg.TTS.OpenAI.APIKey)
	cfg.Translate.OpenAI.APIKey = strings.TrimSpace(cfg.Translate.OpenAI.APIKey)
	cfg.TTS.Tencent.SecretKey = strings.TrimSpace(cfg.TTS.Tencent.SecretKey)
	cfg.Translate.Tencent.SecretKey = strings.TrimSpace(cfg.Translate.Tencent.SecretKey)
}

// Package logger 提供全局 zap logger，控制台输出可叠加按大小轮转的日志文件。
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// L 是全局 logger 实例。
	L *zap.SugaredLogger
	// Z 是全局 zap.Logger 实例，用于结构化字段（如 HTTP 访问日志）。
	Z *zap.Logger

	file *lumberjack.Logger
)

func init() {
	z, _ := zap.NewProduction()
	Z = z
	L = z.Sugar()
}

// Config 日志配置。
type Config struct {
	Level      string // debug, info, warn, error；为空时为 info
	File       string // 日志文件路径，为空则只输出到控制台
	MaxSize    int    // 单个日志文件最大大小（MB），默认 64
	MaxBackups int    // 保留的旧日志文件数量，默认 3
	MaxAge     int    // 旧日志文件保留天数，默认 7
	Quiet      bool   // 不输出到控制台
}

// Init 根据配置替换全局 logger，重复调用会关闭之前打开的日志文件。
func Init(cfg Config) error {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = zapcore.ParseLevel(cfg.Level); err != nil {
			return fmt.Errorf("不支持的日志级别: %s", cfg.Level)
		}
	}

	closeFile()

	var out io.Writer = os.Stderr
	if cfg.Quiet {
		out = io.Discard
	}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("创建日志目录失败: %w", err)
		}
		file = rotation(cfg)
		out = io.MultiWriter(out, file)
	}

	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		CallerKey:      "C",
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	})

	Z = zap.New(zapcore.NewCore(encoder, zapcore.AddSync(out), level), zap.AddCaller(), zap.AddCallerSkip(1))
	L = Z.Sugar()
	return nil
}

// rotation 按配置创建轮转文件，未设置的项使用默认值。
func rotation(cfg Config) *lumberjack.Logger {
	orDefault := func(v, def int) int {
		if v <= 0 {
			return def
		}
		return v
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    orDefault(cfg.MaxSize, 64),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		MaxAge:     orDefault(cfg.MaxAge, 7),
		Compress:   true,
	}
}

func closeFile() {
	if file != nil {
		_ = file.Close()
		file = nil
	}
}

// Close 刷新缓冲区并关闭日志文件，应在程序退出前调用。
func Close() {
	_ = Z.Sync()
	closeFile()
}

func Debug(msg string)                            { L.Debug(msg) }
func Debugf(template string, args ...interface{}) { L.Debugf(template, args...) }
func Info(msg string)                             { L.Info(msg) }
func Infof(template string, args ...interface{})  { L.Infof(template, args...) }
func Warnf(template string, args ...interface{})  { L.Warnf(template, args...) }
func Error(msg string)                            { L.Error(msg) }
func Errorf(template string, args ...interface{}) { L.Errorf(template, args...) }

// ErrorStack 记录错误并附带调用栈，用于 panic 兜底等位置。
func ErrorStack(msg string, err error) {
	Z.Error(msg, zap.Error(err), zap.Stack("stack"))
}

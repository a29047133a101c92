// Package translate 在合成前把文本翻译到目标语言。
// 翻译失败时一律返回原文（fail-open），不会中断批量处理。
package translate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iabetor/voxbatch/internal/logger"
)

// ErrDisabled 表示未配置翻译后端。
var ErrDisabled = errors.New("翻译功能未启用")

// Translator 定义翻译后端接口。
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Disabled 是未配置翻译后端时使用的占位实现。
type Disabled struct{}

// Translate 总是返回 ErrDisabled。
func (Disabled) Translate(ctx context.Context, text, target string) (string, error) {
	return "", ErrDisabled
}

// 语言代码映射（用户友好 -> ISO 代码）
var langCodeMap = map[string]string{
	"hindi":      "hi",
	"english":    "en",
	"chinese":    "zh",
	"japanese":   "ja",
	"korean":     "ko",
	"french":     "fr",
	"german":     "de",
	"spanish":    "es",
	"russian":    "ru",
	"portuguese": "pt",
	"italian":    "it",
	"arabic":     "ar",
	"印地语":        "hi",
	"中文":         "zh",
	"英语":         "en",
	"日语":         "ja",
	"韩语":         "ko",
	"法语":         "fr",
	"德语":         "de",
	"西班牙语":       "es",
	"俄语":         "ru",
}

// NormalizeLang 把语言名称转换为语言代码，未知名称原样返回。
func NormalizeLang(lang string) string {
	if code, ok := langCodeMap[strings.ToLower(strings.TrimSpace(lang))]; ok {
		return code
	}
	return strings.TrimSpace(lang)
}

// Adapter 包装 Translator，提供超时和失败回退原文的语义。
type Adapter struct {
	translator Translator
	timeout    time.Duration
}

// NewAdapter 创建翻译适配器。translator 为 nil 时等同于 Disabled。
func NewAdapter(translator Translator, timeout time.Duration) *Adapter {
	if translator == nil {
		translator = Disabled{}
	}
	return &Adapter{translator: translator, timeout: timeout}
}

// Translate 把 text 翻译为 target 语言。
// 任何错误（网络、服务端、空结果）都会被记录，并返回原文。
func (a *Adapter) Translate(ctx context.Context, text, target string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	target = NormalizeLang(target)
	result, err := a.translate(ctx, text, target)
	if err != nil {
		if errors.Is(err, ErrDisabled) {
			// 每条需要翻译的请求都会提示
			logger.Warnf("[translate] 翻译未启用（检查 translate.engine 和凭证），目标 %s 使用原文", target)
		} else {
			logger.Errorf("[translate] 翻译失败，使用原文: %v", err)
		}
		return text
	}
	if strings.TrimSpace(result) == "" {
		logger.Warnf("[translate] 翻译结果为空，使用原文")
		return text
	}
	return result
}

func (a *Adapter) translate(ctx context.Context, text, target string) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("翻译后端发生 panic")
			logger.ErrorStack("[translate] 翻译后端发生 panic", err)
		}
	}()
	return a.translator.Translate(ctx, text, target)
}

package tts

import (
	"fmt"
	"strconv"
	"strings"
)

// 默认语音参数，与批量 JSON 的缺省值一致。
const (
	DefaultVoiceName = "hi-IN-MadhurNeural"
	DefaultRate      = "+0%"
	DefaultVolume    = "+0%"
)

// Voice 是一次合成使用的语音参数。
// 按值传递，每个请求各自持有一份，不存在跨请求共享的可变状态。
// Rate 和 Volume 是带符号的百分比字符串（如 "+10%"、"-20%"），不做格式校验。
type Voice struct {
	Name   string
	Rate   string
	Volume string
}

// DefaultVoice 返回默认语音参数。
func DefaultVoice() Voice {
	return Voice{Name: DefaultVoiceName, Rate: DefaultRate, Volume: DefaultVolume}
}

// WithDefaults 用 def 填充 v 中为空的字段。
func (v Voice) WithDefaults(def Voice) Voice {
	if v.Name == "" {
		v.Name = def.Name
	}
	if v.Rate == "" {
		v.Rate = def.Rate
	}
	if v.Volume == "" {
		v.Volume = def.Volume
	}
	return v
}

func (v Voice) String() string {
	return fmt.Sprintf("%s(rate=%s, volume=%s)", v.Name, v.Rate, v.Volume)
}

// ParsePercent 解析 "+10%"、"-20%"、"15" 这类百分比字符串，返回数值部分。
// Edge TTS 直接透传原始字符串；需要数值的引擎（腾讯云、OpenAI）用它做换算。
func ParsePercent(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("无效的百分比 %q: %w", s, err)
	}
	return v, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

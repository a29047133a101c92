package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/iabetor/voxbatch/internal/logger"
	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"
)

// EdgeVoicesURL 是 Edge TTS 的音色列表接口。
const EdgeVoicesURL = "https://speech.platform.bing.com/consumer/speech/synthesize/readaloud/voices/list?trustedclienttoken=" + edge.TrustedClientToken

// VoiceInfo 描述一个可用音色。
type VoiceInfo struct {
	ShortName    string `json:"short_name"`
	FriendlyName string `json:"friendly_name"`
	Gender       string `json:"gender"`
	Locale       string `json:"locale"`
}

// VoiceLister 列出引擎支持的音色。
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]VoiceInfo, error)
}

// EdgeVoiceLister 通过 Edge 的 voices/list 接口获取音色。
type EdgeVoiceLister struct {
	url    string
	client *http.Client
}

// NewEdgeVoiceLister 创建音色列表客户端，url 为空时使用 EdgeVoicesURL。
func NewEdgeVoiceLister(url string, timeout time.Duration) *EdgeVoiceLister {
	if url == "" {
		url = EdgeVoicesURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EdgeVoiceLister{url: url, client: &http.Client{Timeout: timeout}}
}

type edgeVoice struct {
	Name         string `json:"Name"`
	ShortName    string `json:"ShortName"`
	FriendlyName string `json:"FriendlyName"`
	Gender       string `json:"Gender"`
	Locale       string `json:"Locale"`
}

// ListVoices 返回按 ShortName 排序的音色列表。
func (l *EdgeVoiceLister) ListVoices(ctx context.Context) ([]VoiceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建音色列表请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[tts] 获取音色列表失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("[tts] 获取音色列表失败: HTTP %d", resp.StatusCode)
	}

	var raw []edgeVoice
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("[tts] 解析音色列表失败: %w", err)
	}

	voices := make([]VoiceInfo, 0, len(raw))
	for _, v := range raw {
		if v.ShortName == "" {
			continue
		}
		// 旧版接口没有 FriendlyName
		friendly := v.FriendlyName
		if friendly == "" {
			friendly = v.Name
		}
		if friendly == "" {
			friendly = "Unknown"
		}
		gender := v.Gender
		if gender == "" {
			gender = "Unknown"
		}
		voices = append(voices, VoiceInfo{
			ShortName:    v.ShortName,
			FriendlyName: friendly,
			Gender:       gender,
			Locale:       v.Locale,
		})
	}
	sort.Slice(voices, func(i, j int) bool { return voices[i].ShortName < voices[j].ShortName })

	logger.Debugf("[tts] 获取到 %d 个音色", len(voices))
	return voices, nil
}

// FilterVoices 按 locale 前缀过滤（不区分大小写），如 "hi" 或 "en-US"。
func FilterVoices(voices []VoiceInfo, locale string) []VoiceInfo {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if locale == "" {
		return voices
	}
	var out []VoiceInfo
	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Locale), locale) {
			out = append(out, v)
		}
	}
	return out
}

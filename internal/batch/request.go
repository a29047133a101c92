// Package batch 解析批量 TTS 请求并按顺序驱动翻译与合成。
package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/iabetor/voxbatch/internal/tts"
)

// 批量 JSON 的校验错误。
var (
	ErrInvalidJSON     = errors.New("invalid JSON format")
	ErrMissingRequests = errors.New("invalid JSON format. Expected 'requests' array")
	ErrEmptyBatch      = errors.New("no requests found in JSON")
)

// Request 是批量文件中的一条请求，未填写的字段在 Resolve 时补默认值。
type Request struct {
	Text             string `json:"text"`
	Voice            string `json:"voice,omitempty"`
	Rate             string `json:"rate,omitempty"`
	Volume           string `json:"volume,omitempty"`
	TranslateToHindi bool   `json:"translate_to_hindi,omitempty"`
	OutputFile       string `json:"output_file,omitempty"`
}

// Batch 是按顺序处理的一组请求。
type Batch struct {
	Requests []Request `json:"requests"`
}

// Job 是补全默认值之后、可以直接执行的请求。
type Job struct {
	Index      int
	Text       string
	Voice      tts.Voice
	Translate  bool
	OutputFile string
}

// DefaultOutputFile 返回第 index 条（从 0 开始）请求的默认文件名。
func DefaultOutputFile(index int) string {
	return fmt.Sprintf("output_%d.mp3", index+1)
}

// Resolve 用 def 补全语音参数和输出文件名。
// 输出文件名只保留最后一段，防止写到输出目录之外。
func (r Request) Resolve(index int, def tts.Voice) Job {
	return Job{
		Index:      index,
		Text:       r.Text,
		Voice:      tts.Voice{Name: r.Voice, Rate: r.Rate, Volume: r.Volume}.WithDefaults(def),
		Translate:  r.TranslateToHindi,
		OutputFile: sanitizeFileName(r.OutputFile, index),
	}
}

func sanitizeFileName(name string, index int) string {
	if name == "" {
		return DefaultOutputFile(index)
	}
	base := filepath.Base(filepath.Clean(filepath.FromSlash(name)))
	switch base {
	case ".", "..", string(filepath.Separator):
		return DefaultOutputFile(index)
	}
	return base
}

// Parse 解析并校验批量 JSON：顶层必须是对象，且包含非空的 requests 数组。
func Parse(r io.Reader) (*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取批量文件失败: %w", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	raw, ok := top["requests"]
	if !ok {
		return nil, ErrMissingRequests
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrMissingRequests
	}

	var requests []Request
	if err := json.Unmarshal(raw, &requests); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if len(requests) == 0 {
		return nil, ErrEmptyBatch
	}
	return &Batch{Requests: requests}, nil
}

// ParseFile 从文件读取批量请求。
func ParseFile(path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开批量文件失败: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

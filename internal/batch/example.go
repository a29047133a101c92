package batch

import (
	"encoding/json"
	"fmt"
	"os"
)

// Example 返回 CLI 未指定批量文件时使用的示例。
func Example() *Batch {
	return &Batch{Requests: []Request{
		{
			Text:  "Hello! This is Microsoft's Edge Text-to-Speech system.",
			Voice: "en-US-GuyNeural",
		},
		{
			Text:             "This text will be translated to Hindi before speaking.",
			Voice:            "hi-IN-MadhurNeural",
			Rate:             "+0%",
			TranslateToHindi: true,
		},
	}}
}

// WriteExample 把示例批量写入 path。
func WriteExample(path string) error {
	data, err := json.MarshalIndent(Example(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("写入示例文件失败: %w", err)
	}
	return nil
}

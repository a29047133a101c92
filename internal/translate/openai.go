package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/iabetor/voxbatch/internal/logger"
	openai "github.com/sashabaranov/go-openai"
)

const translatePrompt = "You are a translation engine. Translate the user's text into the language with code %q. " +
	"Reply with the translation only, without quotes or explanations."

// OpenAITranslator 通过对话补全接口完成翻译。
type OpenAITranslator struct {
	client *openai.Client
	model  string
}

// NewOpenAITranslator 创建 OpenAI 翻译客户端。baseURL 为空时使用官方地址。
func NewOpenAITranslator(apiKey, baseURL, model string) (*OpenAITranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI 翻译需要 api_key")
	}
	if model == "" {
		model = openai.GPT4oMini
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	logger.Infof("[translate] OpenAI 翻译已初始化 (model=%s)", model)
	return &OpenAITranslator{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Translate 实现 Translator。
func (t *OpenAITranslator) Translate(ctx context.Context, text, target string) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(translatePrompt, target)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("翻译请求失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("翻译响应为空")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iabetor/voxbatch/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubTranslator struct {
	result string
	err    error
	target string
	calls  int
}

func (s *stubTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	s.calls++
	s.target = target
	return s.result, s.err
}

func TestAdapter_FailOpenOnError(t *testing.T) {
	stub := &stubTranslator{err: errors.New("network unreachable")}
	a := NewAdapter(stub, time.Second)

	got := a.Translate(context.Background(), "hello world", "hi")
	assert.Equal(t, "hello world", got)
	assert.Equal(t, 1, stub.calls)
}

func TestAdapter_ReturnsTranslation(t *testing.T) {
	stub := &stubTranslator{result: "नमस्ते"}
	got := NewAdapter(stub, 0).Translate(context.Background(), "hello", "Hindi")
	assert.Equal(t, "नमस्ते", got)
	assert.Equal(t, "hi", stub.target, "friendly language names are normalised")
}

func TestAdapter_EmptyResultFallsBack(t *testing.T) {
	got := NewAdapter(&stubTranslator{result: "  "}, 0).Translate(context.Background(), "hello", "hi")
	assert.Equal(t, "hello", got)
}

func TestAdapter_EmptyTextSkipsBackend(t *testing.T) {
	stub := &stubTranslator{result: "x"}
	assert.Equal(t, "", NewAdapter(stub, 0).Translate(context.Background(), "", "hi"))
	assert.Zero(t, stub.calls)
}

func TestAdapter_Disabled(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prevL, prevZ := logger.L, logger.Z
	logger.Z = zap.New(core)
	logger.L = logger.Z.Sugar()
	t.Cleanup(func() { logger.L, logger.Z = prevL, prevZ })

	a := NewAdapter(nil, 0)
	assert.Equal(t, "hello", a.Translate(context.Background(), "hello", "hi"))
	assert.Equal(t, "world", a.Translate(context.Background(), "world", "hindi"))

	warned := logs.FilterMessageSnippet("翻译未启用")
	require.Equal(t, 2, warned.Len(), "每条请求都要提示")
	assert.Contains(t, warned.All()[1].Message, "目标 hi")
}

func TestAdapter_RecoversPanic(t *testing.T) {
	p := translatorFunc(func(ctx context.Context, text, target string) (string, error) { panic("boom") })
	assert.Equal(t, "hello", NewAdapter(p, 0).Translate(context.Background(), "hello", "hi"))
}

func TestAdapter_Timeout(t *testing.T) {
	slow := translatorFunc(func(ctx context.Context, text, target string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	start := time.Now()
	got := NewAdapter(slow, 20*time.Millisecond).Translate(context.Background(), "hello", "hi")
	assert.Equal(t, "hello", got)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNormalizeLang(t *testing.T) {
	assert.Equal(t, "hi", NormalizeLang("hindi"))
	assert.Equal(t, "hi", NormalizeLang("印地语"))
	assert.Equal(t, "hi", NormalizeLang("hi"))
	assert.Equal(t, "pt-BR", NormalizeLang(" pt-BR "))
}

func TestOpenAITranslator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(body.Messages) != 2 || !strings.Contains(body.Messages[0].Content, `"hi"`) {
			t.Errorf("unexpected messages: %+v", body.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" नमस्ते \n"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	tr, err := NewOpenAITranslator("test-key", server.URL+"/v1", "")
	require.NoError(t, err)

	got, err := tr.Translate(context.Background(), "hello", "hi")
	require.NoError(t, err)
	assert.Equal(t, "नमस्ते", got)
}

func TestNewTencentTranslator_RequiresCredentials(t *testing.T) {
	_, err := NewTencentTranslator("", "", "ap-guangzhou")
	assert.Error(t, err)
}

type translatorFunc func(ctx context.Context, text, target string) (string, error)

func (f translatorFunc) Translate(ctx context.Context, text, target string) (string, error) {
	return f(ctx, text, target)
}

package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTencentEngine_RequiresCredentials(t *testing.T) {
	_, err := NewTencentEngine(TencentConfig{SecretID: "id"})
	assert.Error(t, err)
}

func TestTencentEngine_BuildRequest(t *testing.T) {
	e, err := NewTencentEngine(TencentConfig{SecretID: "id", SecretKey: "key", VoiceType: 101001})
	require.NoError(t, err)

	tests := []struct {
		name   string
		voice  Voice
		vtype  int64
		speed  float64
		volume float64
	}{
		{"默认参数", DefaultVoice(), 101001, 0, 0},
		{"数字音色覆盖默认值", Voice{Name: "1001", Rate: "+20%", Volume: "-50%"}, 1001, 1, -5},
		{"语速和音量被截断", Voice{Name: "x", Rate: "+500%", Volume: "+200%"}, 101001, 6, 10},
		{"语速下限", Voice{Rate: "-90%", Volume: "-200%"}, 101001, -2, -10},
		{"无效百分比按正常处理", Voice{Rate: "fast", Volume: "loud"}, 101001, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := e.buildRequest("你好", tt.voice)
			assert.Equal(t, "你好", *req.Text)
			assert.Equal(t, "mp3", *req.Codec)
			assert.Equal(t, tt.vtype, *req.VoiceType)
			assert.InDelta(t, tt.speed, *req.Speed, 1e-9)
			assert.InDelta(t, tt.volume, *req.Volume, 1e-9)
			assert.NotEmpty(t, *req.SessionId)
		})
	}
}

func TestNewTencentEngine_DefaultVoiceType(t *testing.T) {
	e, err := NewTencentEngine(TencentConfig{SecretID: "id", SecretKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, int64(1001), *e.buildRequest("hi", Voice{}).VoiceType)
}

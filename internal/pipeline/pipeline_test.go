package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/iabetor/voxbatch/internal/batch"
	"github.com/iabetor/voxbatch/internal/bridge"
	"github.com/iabetor/voxbatch/internal/config"
	"github.com/iabetor/voxbatch/internal/translate"
	"github.com/iabetor/voxbatch/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.OutputDir = dir
	cfg.Storage.IndexPath = filepath.Join(dir, ".voxbatch-index.db")
	cfg.Batch.DelayMs = 0
	return cfg
}

var fakeEngine = tts.EngineFunc(func(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	return []byte("mp3:" + text), nil
})

type upperTranslator struct{ targets []string }

func (u *upperTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	u.targets = append(u.targets, target)
	return "translated " + text, nil
}

func TestNew_WithInjectedComponents(t *testing.T) {
	cfg := testConfig(t)
	tr := &upperTranslator{}

	var seen []string
	p, err := New(cfg,
		WithEngine(fakeEngine),
		WithTranslator(tr),
		WithObservers(batch.ObserverFunc(func(ctx context.Context, path string) {
			seen = append(seen, filepath.Base(path))
		})),
	)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, bridge.Detached, p.Mode())
	assert.Nil(t, p.Player())

	report := p.Processor().Process(context.Background(), &batch.Batch{Requests: []batch.Request{
		{Text: "hello", TranslateToHindi: true},
		{Text: "world", OutputFile: "w.mp3"},
	}}, batch.Options{Mode: p.Mode()})

	require.True(t, report.OK)
	assert.Equal(t, []string{"output_1.mp3", "w.mp3"}, seen)
	assert.Equal(t, []string{"hi"}, tr.targets)

	data, err := os.ReadFile(filepath.Join(cfg.Storage.OutputDir, "output_1.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "mp3:translated hello", string(data))

	// 生成的文件已进入索引
	_, found, err := p.Store().Lookup(context.Background(), "w.mp3")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestNew_DefaultEdgeEngine(t *testing.T) {
	cfg := testConfig(t)
	cfg.Translate.Engine = "none"

	p, err := New(cfg)
	require.NoError(t, err)
	defer p.Close()

	assert.IsType(t, &tts.EdgeEngine{}, p.engine)
	assert.IsType(t, translate.Disabled{}, p.translator)
	assert.IsType(t, &tts.EdgeVoiceLister{}, p.Voices())
}

type fixedVoices []tts.VoiceInfo

func (f fixedVoices) ListVoices(ctx context.Context) ([]tts.VoiceInfo, error) { return f, nil }

func TestNew_WithVoiceLister(t *testing.T) {
	voices := fixedVoices{{ShortName: "hi-IN-MadhurNeural", Locale: "hi-IN"}}
	p, err := New(testConfig(t), WithEngine(fakeEngine), WithTranslator(translate.Disabled{}), WithVoiceLister(voices))
	require.NoError(t, err)
	defer p.Close()

	got, err := p.Voices().ListVoices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []tts.VoiceInfo(voices), got)
}

func TestNew_UnknownEngine(t *testing.T) {
	cfg := testConfig(t)
	cfg.TTS.Engine = "festival"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNew_TencentWithoutCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.TTS.Engine = "tencent"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNew_UnavailableFallbackIsSkipped(t *testing.T) {
	cfg := testConfig(t)
	cfg.TTS.Fallback = "openai" // 没有 api_key

	p, err := New(cfg, WithTranslator(translate.Disabled{}))
	require.NoError(t, err)
	defer p.Close()

	assert.IsType(t, &tts.EdgeEngine{}, p.engine)
}

func TestNew_FallbackEngine(t *testing.T) {
	cfg := testConfig(t)
	cfg.TTS.Engine = "openai"
	cfg.TTS.OpenAI.APIKey = "sk-test"
	cfg.TTS.Fallback = "edge"

	p, err := New(cfg, WithTranslator(translate.Disabled{}))
	require.NoError(t, err)
	defer p.Close()

	assert.IsType(t, &tts.FallbackEngine{}, p.engine)
}

func TestNew_InvalidBridgeMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.BridgeMode = "threaded"

	_, err := New(cfg, WithEngine(fakeEngine))
	assert.ErrorIs(t, err, bridge.ErrUnknownMode)
}

func TestBuildTranslator(t *testing.T) {
	cfg := testConfig(t)

	cfg.Translate.Engine = "tencent"
	tr, err := buildTranslator(cfg)
	require.NoError(t, err)
	assert.IsType(t, translate.Disabled{}, tr, "缺少凭证时禁用翻译")

	cfg.TTS.Tencent.SecretID, cfg.TTS.Tencent.SecretKey = "id", "key"
	tr, err = buildTranslator(cfg)
	require.NoError(t, err)
	assert.IsType(t, &translate.TencentTranslator{}, tr, "复用 TTS 凭证")

	cfg.Translate.Engine = "openai"
	cfg.Translate.OpenAI.APIKey = "sk-test"
	tr, err = buildTranslator(cfg)
	require.NoError(t, err)
	assert.IsType(t, &translate.OpenAITranslator{}, tr)

	cfg.Translate.Engine = "babelfish"
	_, err = buildTranslator(cfg)
	assert.Error(t, err)
}

func TestNew_PlaybackUsesConfiguredCommand(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audio.Command = []string{"true"}

	p, err := New(cfg, WithEngine(fakeEngine), WithTranslator(translate.Disabled{}), WithPlayback())
	require.NoError(t, err)
	defer p.Close()

	require.NotNil(t, p.Player())
	path := filepath.Join(cfg.Storage.OutputDir, "a.mp3")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	assert.True(t, p.Player().Play(context.Background(), path))
}

func TestNew_S3RequiresBucket(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.S3 = config.S3Config{Enabled: true, Endpoint: "localhost:9000"}

	_, err := New(cfg, WithEngine(fakeEngine), WithTranslator(translate.Disabled{}))
	assert.Error(t, err)
}

func TestCheckPublisher_Disabled(t *testing.T) {
	p, err := New(testConfig(t), WithEngine(fakeEngine), WithTranslator(translate.Disabled{}))
	require.NoError(t, err)
	defer p.Close()

	assert.NoError(t, p.CheckPublisher(context.Background()))
	assert.Equal(t, 10*60, int(p.CleanupInterval().Seconds()))
}

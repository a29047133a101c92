package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoEngine 是确定性的桩引擎：输出只取决于文本和语音参数。
func echoEngine() Engine {
	return EngineFunc(func(ctx context.Context, text string, voice Voice) ([]byte, error) {
		return []byte("ID3|" + voice.String() + "|" + text), nil
	})
}

func TestSpeaker_SpeakWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.mp3")
	s := NewSpeaker(echoEngine(), time.Second)

	audio, err := s.Speak(context.Background(), "hello", DefaultVoice(), path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, audio, data, "返回的数据与写入的文件一致")
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), DefaultVoiceName)
}

func TestSpeaker_FailureLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp3")
	failing := EngineFunc(func(ctx context.Context, text string, voice Voice) ([]byte, error) {
		return nil, errors.New("service unavailable")
	})

	audio, err := NewSpeaker(failing, 0).Speak(context.Background(), "hello", DefaultVoice(), path)
	assert.EqualError(t, err, "service unavailable")
	assert.Nil(t, audio)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "failed synthesis must not leave a file")
}

func TestSpeaker_EmptyAudio(t *testing.T) {
	empty := EngineFunc(func(ctx context.Context, text string, voice Voice) ([]byte, error) {
		return nil, nil
	})
	_, err := NewSpeaker(empty, 0).Speak(context.Background(), "hello", DefaultVoice(),
		filepath.Join(t.TempDir(), "out.mp3"))
	assert.Error(t, err)
}

func TestSpeaker_EmptyText(t *testing.T) {
	_, err := NewSpeaker(echoEngine(), 0).Speak(context.Background(), "", DefaultVoice(),
		filepath.Join(t.TempDir(), "out.mp3"))
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestSpeaker_Timeout(t *testing.T) {
	slow := EngineFunc(func(ctx context.Context, text string, voice Voice) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	_, err := NewSpeaker(slow, 20*time.Millisecond).Speak(context.Background(), "hello", DefaultVoice(),
		filepath.Join(t.TempDir(), "out.mp3"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSpeaker_IdenticalInputsProduceIdenticalFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewSpeaker(echoEngine(), time.Second)
	voice := Voice{Name: "en-US-GuyNeural", Rate: "+10%", Volume: "-5%"}

	first := filepath.Join(dir, "first.mp3")
	second := filepath.Join(dir, "second.mp3")
	_, err := s.Speak(context.Background(), "same text", voice, first)
	require.NoError(t, err)
	_, err = s.Speak(context.Background(), "same text", voice, second)
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSpeaker_OverwritesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp3")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	_, err := NewSpeaker(echoEngine(), 0).Speak(context.Background(), "new", DefaultVoice(), path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "new")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be cleaned up")
}

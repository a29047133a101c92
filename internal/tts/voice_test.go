package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"+0%", 0},
		{"+10%", 10},
		{"-20%", -20},
		{"15", 15},
		{" +5% ", 5},
		{"", 0},
	}
	for _, tt := range tests {
		got, err := ParsePercent(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParsePercent_Invalid(t *testing.T) {
	_, err := ParsePercent("fast")
	assert.Error(t, err)
}

func TestVoice_WithDefaults(t *testing.T) {
	v := Voice{Name: "en-US-GuyNeural"}.WithDefaults(DefaultVoice())
	assert.Equal(t, Voice{Name: "en-US-GuyNeural", Rate: "+0%", Volume: "+0%"}, v)

	empty := Voice{}.WithDefaults(DefaultVoice())
	assert.Equal(t, DefaultVoice(), empty)
}

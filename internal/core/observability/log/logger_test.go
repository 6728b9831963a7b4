package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		" warn ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWithFormat(t *testing.T) {
	logger, err := NewWithFormat(LevelDebug, FormatConsole)
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, logger.Level())

	_, err = NewWithFormat(LevelInfo, Format("xml"))
	assert.Error(t, err)
}

func TestWithKeepsLevel(t *testing.T) {
	logger, err := NewWithFormat(LevelWarn, FormatJSON)
	require.NoError(t, err)

	child := logger.With(String("component", "test"), Error(errors.New("boom")), Error(nil))
	assert.Equal(t, LevelWarn, child.Level())
	child.Info("dropped by level")
	child.Warn("kept", Int("n", 1), Strings("names", []string{"a", "b"}))
}

func TestProvideNeverNil(t *testing.T) {
	assert.NotNil(t, Provide())
	NewNop().Error("silent")
}

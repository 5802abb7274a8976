package app

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected zerolog.Level
	}{
		{"default", &Config{}, zerolog.InfoLevel},
		{"verbose", &Config{Verbose: true}, zerolog.DebugLevel},
		{"quiet", &Config{Quiet: true}, zerolog.WarnLevel},
		{"verbose and quiet", &Config{Verbose: true, Quiet: true}, zerolog.WarnLevel},
		{"explicit beats verbose", &Config{LogLevel: "error", Verbose: true}, zerolog.ErrorLevel},
		{"explicit beats quiet", &Config{LogLevel: "trace", Quiet: true}, zerolog.TraceLevel},
		{"unknown level means info", &Config{LogLevel: "loud"}, zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, determineLogLevel(tt.config))
		})
	}
}

func TestNewLogger(t *testing.T) {
	original := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(original) })

	logger := NewLogger(&Config{Quiet: true, LogFormat: "json", LogOutput: "discard"})
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger = NewLogger(&Config{LogLevel: "debug", LogFormat: "console", LogOutput: "discard"})
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())
}

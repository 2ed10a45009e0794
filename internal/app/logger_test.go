package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		level string
		debug bool
	}{
		{"production defaults to info", "production", "", false},
		{"development defaults to debug", "development", "", true},
		{"explicit level wins", "production", "debug", true},
		{"quiet development", "development", "warn", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.env, tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.debug, logger.Core().Enabled(zap.DebugLevel))
		})
	}
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger("production", "loud")
	assert.ErrorContains(t, err, "log level")
}

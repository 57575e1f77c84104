package logging_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/altantutar/pyguard/internal/logging"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		name         string
		debug, quiet bool
		enabled      zapcore.Level
		disabled     zapcore.Level
	}{
		{"default", false, false, zap.WarnLevel, zap.InfoLevel},
		{"debug", true, false, zap.DebugLevel, zapcore.InvalidLevel},
		{"quiet", false, true, zap.ErrorLevel, zap.WarnLevel},
		{"debug wins over quiet", true, true, zap.DebugLevel, zapcore.InvalidLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := logging.New(tt.debug, tt.quiet)
			require.NoError(t, err)
			require.True(t, logger.Core().Enabled(tt.enabled))
			if tt.disabled != zapcore.InvalidLevel {
				require.False(t, logger.Core().Enabled(tt.disabled))
			}
		})
	}
}

package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/idlecombat/internal/config"
)

func TestNewLogger(t *testing.T) {
	cases := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr string
	}{
		{name: "json", cfg: config.LoggingConfig{Level: "info", Format: "json"}},
		{name: "console", cfg: config.LoggingConfig{Level: "debug", Format: "console"}},
		{name: "warn to stdout", cfg: config.LoggingConfig{Level: "warn", Format: "json", Output: []string{"stdout"}}},
		{name: "bad level", cfg: config.LoggingConfig{Level: "trace", Format: "json"}, wantErr: "parsing log level"},
		{name: "bad format", cfg: config.LoggingConfig{Level: "info", Format: "xml"}, wantErr: "unknown log format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := NewLogger(tc.cfg)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNewLogger_WritesToFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combat.log")
	logger, err := NewLogger(config.LoggingConfig{Level: "info", Format: "json", Output: []string{path}})
	require.NoError(t, err)

	logger.Debug("dropped")
	logger.Info("round resolved", zap.Int("round", 3))
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "round resolved", entry["msg"])
	assert.Equal(t, "idlecombat", entry["service"])
	assert.EqualValues(t, 3, entry["round"])
}

func TestZapConfig(t *testing.T) {
	cfg, err := zapConfig(config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.Nil(t, cfg.Sampling)
	assert.Equal(t, []string{"stderr"}, cfg.OutputPaths)
	assert.Equal(t, zapcore.WarnLevel, cfg.Level.Level())
}

func TestComponent_TagsEntries(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Component(zap.New(core), "orchestrator").Info("combat started")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "orchestrator", entries[0].LoggerName)
	assert.Equal(t, "orchestrator", entries[0].ContextMap()["component"])
}

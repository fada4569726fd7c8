package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/project")
	assert.Equal(t, DefaultBias, cfg.Bias)
	assert.Equal(t, filepath.Join("/project", ".hotword", "hotword.db"), cfg.DB)
	assert.Equal(t, "default", cfg.Graph)
	assert.Regexp(t, `^/tmp/hotword-[0-9a-f]{12}\.sock$`, cfg.Socket)
	assert.True(t, cfg.Watch)
	assert.Equal(t, 50*time.Millisecond, time.Duration(cfg.Debounce))
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.HTTP)
	assert.Zero(t, cfg.HTTPPort)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir, "")
	require.NoError(t, err)
	assert.Empty(t, cfg.Path)
	assert.Equal(t, DefaultConfig(dir), cfg)
}

func TestLoadConfig_OverlaysAndResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".hotword", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(`
vocab: units.txt
phrases: /abs/hotwords.txt
bias: 2.5
watch: false
debounce: 200ms
log_level: debug
`), 0644))

	cfg, err := LoadConfig(dir, "")
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, filepath.Join(dir, ".hotword", "units.txt"), cfg.Vocab)
	assert.Equal(t, "/abs/hotwords.txt", cfg.Phrases)
	assert.Equal(t, 2.5, cfg.Bias)
	assert.False(t, cfg.Watch)
	assert.Equal(t, 200*time.Millisecond, time.Duration(cfg.Debounce))
	assert.Equal(t, "debug", cfg.LogLevel)

	// Unset keys keep their defaults.
	assert.Equal(t, "default", cfg.Graph)
	assert.Equal(t, filepath.Join(dir, ".hotword", "hotword.db"), cfg.DB)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "vocab: [unterminated", "parse"},
		{"bad duration", "debounce: soon", "invalid duration"},
		{"numeric duration", "debounce: 50", "duration"},
		{"negative debounce", "debounce: -1s", "negative"},
		{"empty graph", "graph: \"\"", "graph name"},
		{"bad log level", "log_level: chatty", "log level"},
		{"nan bias", "bias: .nan", "finite"},
		{"bad port", "http_port: 70000", "http_port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))

			_, err := LoadConfig(dir, path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfig_EnvLogLevel(t *testing.T) {
	t.Setenv("HOTWORD_LOG_LEVEL", "warn")
	cfg, err := LoadConfig(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestConfig_SaveRoundtrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.Vocab = filepath.Join(dir, "units.txt")
	cfg.Phrases = filepath.Join(dir, "hotwords.txt")
	cfg.Debounce = Duration(75 * time.Millisecond)

	path := NewPaths(dir).Config
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(dir, path)
	require.NoError(t, err)
	cfg.Path = path
	assert.Equal(t, cfg, loaded)
}

func TestConfig_RequireSources(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	err := cfg.RequireSources()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vocab and phrases")

	cfg.Vocab = "units.txt"
	err = cfg.RequireSources()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "vocab")

	cfg.Phrases = "hotwords.txt"
	assert.NoError(t, cfg.RequireSources())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLogLevel("trace")
	assert.Error(t, err)
}

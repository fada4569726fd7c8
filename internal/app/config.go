package app

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	fsw "github.com/corey/hotword/internal/adapters/fsnotify"
	"github.com/corey/hotword/internal/adapters/socket"
)

// Defaults applied by DefaultConfig.
const (
	DefaultBias      = 1.0
	DefaultGraphName = "default"
	DefaultLogLevel  = "info"
)

// Duration is a time.Duration that reads and writes as "50ms" in YAML.
type Duration time.Duration

// MarshalYAML writes the duration in Go syntax.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts any string time.ParseDuration understands.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"50ms\"", value.Line)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

// Config is the daemon and CLI configuration, read from .hotword/config.yaml.
type Config struct {
	Vocab    string   `yaml:"vocab"`
	Phrases  string   `yaml:"phrases"`
	Bias     float64  `yaml:"bias"`
	DB       string   `yaml:"db"`
	Graph    string   `yaml:"graph"`
	Socket   string   `yaml:"socket"`
	Watch    bool     `yaml:"watch"`
	Debounce Duration `yaml:"debounce"`
	LogLevel string   `yaml:"log_level"`
	HTTP     bool     `yaml:"http"`
	HTTPPort int      `yaml:"http_port"` // 0 derives a port from the project root

	ProjectRoot string `yaml:"-"`
	Path        string `yaml:"-"` // file the config was read from; empty when none existed
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig(projectRoot string) *Config {
	paths := NewPaths(projectRoot)
	return &Config{
		Bias:        DefaultBias,
		DB:          paths.DB,
		Graph:       DefaultGraphName,
		Socket:      socket.SocketPath(projectRoot),
		Watch:       true,
		Debounce:    Duration(fsw.DefaultDebounce),
		LogLevel:    DefaultLogLevel,
		HTTP:        true,
		ProjectRoot: projectRoot,
	}
}

// LoadConfig reads the YAML file at path over the defaults for projectRoot.
// An empty path means .hotword/config.yaml. A missing file is not an error.
// Relative file paths in the config resolve against the config file's
// directory. HOTWORD_LOG_LEVEL overrides log_level.
func LoadConfig(projectRoot, path string) (*Config, error) {
	cfg := DefaultConfig(projectRoot)
	if path == "" {
		path = NewPaths(projectRoot).Config
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.Path = path
		base := filepath.Dir(path)
		cfg.Vocab = resolvePath(base, cfg.Vocab)
		cfg.Phrases = resolvePath(base, cfg.Phrases)
		cfg.DB = resolvePath(base, cfg.DB)
	}

	cfg.LogLevel = getEnv("HOTWORD_LOG_LEVEL", cfg.LogLevel)

	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// check validates fields that have a meaning even without sources.
func (c *Config) check() error {
	if math.IsNaN(c.Bias) || math.IsInf(c.Bias, 0) {
		return fmt.Errorf("bias must be a finite number")
	}
	if c.Graph == "" {
		return fmt.Errorf("graph name must not be empty")
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative")
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d out of range", c.HTTPPort)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// RequireSources reports an error unless both source files are configured.
func (c *Config) RequireSources() error {
	var missing []string
	if c.Vocab == "" {
		missing = append(missing, "vocab")
	}
	if c.Phrases == "" {
		missing = append(missing, "phrases")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: %s not set (edit %s or pass flags)",
			strings.Join(missing, " and "), NewPaths(c.ProjectRoot).Config)
	}
	return nil
}

// Save writes the config as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ParseLogLevel maps debug|info|warn|error onto a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

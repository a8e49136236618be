package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lesterapp/lester/internal/tagging"
)

// Environment variables that override file configuration.
const (
	EnvHome     = "LESTER_HOME"
	EnvDBPath   = "LESTER_DB_PATH"
	EnvAddr     = "LESTER_ADDR"
	EnvLogLevel = "LESTER_LOG_LEVEL"
)

// Config holds application configuration.
type Config struct {
	// DBPath is the SQLite database file. Empty means <baseDir>/lester.db.
	DBPath string `json:"db_path,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is "json" or "text". Empty picks text.
	LogFormat string `json:"log_format,omitempty"`

	Worker  WorkerConfig  `json:"worker"`
	HTTP    HTTPConfig    `json:"http"`
	Tagging TaggingConfig `json:"tagging"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes disables every MCP tool of the given type (e.g. "sync").
	DisabledTypes []string `json:"disabled_types,omitempty"`

	// AllowedPaths are extra directories op log files may be read from or
	// exported to, besides <base>/sync. Only absolute paths are honored.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths lifts the directory restriction on op log files.
	// Traversal and symlink checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`
}

// WorkerConfig controls the tag enrichment worker loop.
type WorkerConfig struct {
	// PollIntervalMS is how long the worker sleeps after an empty batch.
	PollIntervalMS int `json:"poll_interval_ms,omitempty"`

	// BatchSize caps how many pending jobs are fetched per batch.
	BatchSize int `json:"batch_size,omitempty"`

	// Once drains the currently pending jobs and exits instead of polling forever.
	Once bool `json:"once,omitempty"`
}

// PollInterval returns PollIntervalMS as a duration.
func (w WorkerConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMS) * time.Millisecond
}

// HTTPConfig controls the JSON API server.
type HTTPConfig struct {
	Bind string `json:"bind,omitempty"`
	Port int    `json:"port,omitempty"`

	// RateLimitRPS is the per-client request rate. 0 disables limiting.
	RateLimitRPS   float64 `json:"rate_limit_rps,omitempty"`
	RateLimitBurst int     `json:"rate_limit_burst,omitempty"`
}

// TaggingConfig overrides the rule engine's policy constants.
type TaggingConfig struct {
	DomainConfidence  float64 `json:"domain_confidence,omitempty"`
	KeywordConfidence float64 `json:"keyword_confidence,omitempty"`
	LLMScale          float64 `json:"llm_scale,omitempty"`
	LLMCap            float64 `json:"llm_cap,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	p := tagging.DefaultPolicy()
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Worker: WorkerConfig{
			PollIntervalMS: 3000,
			BatchSize:      8,
		},
		HTTP: HTTPConfig{
			Bind:           "127.0.0.1",
			Port:           7316,
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Tagging: TaggingConfig{
			DomainConfidence:  p.DomainConfidence,
			KeywordConfidence: p.KeywordConfidence,
			LLMScale:          p.LLMScale,
			LLMCap:            p.LLMCap,
		},
	}
}

// TaggingPolicy converts the tagging block into the rule engine's policy.
func (c *Config) TaggingPolicy() tagging.Policy {
	return tagging.Policy{
		DomainConfidence:  c.Tagging.DomainConfidence,
		KeywordConfidence: c.Tagging.KeywordConfidence,
		LLMScale:          c.Tagging.LLMScale,
		LLMCap:            c.Tagging.LLMCap,
	}
}

// ResolveDBPath returns DBPath, defaulting to baseDir/lester.db.
func (c *Config) ResolveDBPath(baseDir string) string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(baseDir, "lester.db")
}

// BaseDir returns $LESTER_HOME, or ~/.lester.
func BaseDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvHome)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".lester"), nil
}

// Load loads configuration from baseDir/config.json and applies env overrides.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.lester.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg.
// LESTER_ADDR takes "host:port".
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvDBPath)); v != "" {
		cfg.DBPath = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(getenv(EnvAddr)); v != "" {
		idx := strings.LastIndex(v, ":")
		if idx < 0 {
			return errors.New(EnvAddr + " must be host:port")
		}
		port, err := strconv.Atoi(v[idx+1:])
		if err != nil || port <= 0 {
			return errors.New(EnvAddr + " has an invalid port")
		}
		cfg.HTTP.Bind = v[:idx]
		cfg.HTTP.Port = port
	}
	return nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.DBPath = pick(overlay.DBPath, base.DBPath)
	result.DBMaxOpenConns = pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.LogLevel = pick(overlay.LogLevel, base.LogLevel)
	result.LogFormat = pick(overlay.LogFormat, base.LogFormat)

	result.Worker.PollIntervalMS = pick(overlay.Worker.PollIntervalMS, base.Worker.PollIntervalMS)
	result.Worker.BatchSize = pick(overlay.Worker.BatchSize, base.Worker.BatchSize)
	result.Worker.Once = base.Worker.Once || overlay.Worker.Once

	result.HTTP.Bind = pick(overlay.HTTP.Bind, base.HTTP.Bind)
	result.HTTP.Port = pick(overlay.HTTP.Port, base.HTTP.Port)
	result.HTTP.RateLimitRPS = pick(overlay.HTTP.RateLimitRPS, base.HTTP.RateLimitRPS)
	result.HTTP.RateLimitBurst = pick(overlay.HTTP.RateLimitBurst, base.HTTP.RateLimitBurst)

	result.Tagging.DomainConfidence = pick(overlay.Tagging.DomainConfidence, base.Tagging.DomainConfidence)
	result.Tagging.KeywordConfidence = pick(overlay.Tagging.KeywordConfidence, base.Tagging.KeywordConfidence)
	result.Tagging.LLMScale = pick(overlay.Tagging.LLMScale, base.Tagging.LLMScale)
	result.Tagging.LLMCap = pick(overlay.Tagging.LLMCap, base.Tagging.LLMCap)

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	return result
}

// pick returns overlay unless it is the zero value.
func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

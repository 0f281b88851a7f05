// Package config 负责加载 ag 的配置：TOML 文件、环境变量与命令行 -c 覆盖，优先级依次递增。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ag-cli/internal/logger"

	"github.com/pelletier/go-toml/v2"
)

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAzure     Provider = "azure"
	ProviderAnthropic Provider = "anthropic"
)

const (
	DefaultModel      = "google/gemini-2.5-flash-preview"
	DefaultBaseURL    = "https://openrouter.ai/api/v1"
	DefaultAPIVersion = "2024-03-01-preview"
	DefaultRetries    = 5
	DefaultBackoff    = 1.0
	DefaultMaxSteps   = 20
)

// ErrMissingAPIKey 表示文件、环境变量与 -c 覆盖都没有提供 API key。
var ErrMissingAPIKey = errors.New("API_KEY Not Found")

var log = logger.Named("config")

// Config 是唯一持久化的配置结构。
type Config struct {
	Provider    Provider `toml:"provider"`
	Model       string   `toml:"model"`
	BaseURL     string   `toml:"base_url"`
	APIKey      string   `toml:"api_key"`
	APIVersion  string   `toml:"api_version"`
	Retries     int      `toml:"retries"`
	BackoffSecs float64  `toml:"backoff_secs"`
	MaxSteps    int      `toml:"max_steps"`
	LogPath     string   `toml:"log_path"`
	Source      string   `toml:"-"`
}

func Default() Config {
	return Config{
		Provider:    ProviderOpenAI,
		Model:       DefaultModel,
		BaseURL:     DefaultBaseURL,
		APIVersion:  DefaultAPIVersion,
		Retries:     DefaultRetries,
		BackoffSecs: DefaultBackoff,
		MaxSteps:    DefaultMaxSteps,
		LogPath:     logger.DefaultLogPath,
	}
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ag", "config.toml")
}

// Load 读取 path（为空时使用 DefaultPath）。文件不存在不是错误，此时只使用默认值与环境变量。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, errors.New("config path is empty and $HOME is not set")
	}
	cfg.Source = path

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.WithField("path", path).Debug("config file not found, using defaults")
	case err != nil:
		return cfg, err
	default:
		if err := toml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg = ApplyEnv(cfg, os.Getenv)
	return cfg.normalized(), nil
}

// ApplyEnv 应用环境变量覆盖。getenv 通常是 os.Getenv。
func ApplyEnv(cfg Config, getenv func(string) string) Config {
	if v := strings.TrimSpace(getenv("MODEL_PROVIDER")); v != "" {
		cfg.Provider = Provider(strings.ToLower(v))
	}
	if v := strings.TrimSpace(getenv("MODEL_IS_AZURE")); v != "" {
		if azure, err := strconv.ParseBool(v); err == nil && azure {
			cfg.Provider = ProviderAzure
		}
	}
	if v := strings.TrimSpace(getenv("MODEL_NAME")); v != "" {
		cfg.Model = v
	}
	if v := strings.TrimSpace(getenv("BASE_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(getenv("API_KEY")); v != "" {
		cfg.APIKey = v
	}
	return cfg
}

// ApplyKVOverrides 应用 -c key=value 覆盖，未知 key 与格式错误的项会被忽略并记录日志。
func ApplyKVOverrides(cfg Config, overrides []string) Config {
	for _, raw := range overrides {
		key, val, ok := strings.Cut(raw, "=")
		if !ok {
			log.WithField("override", raw).Warn("ignoring override without '='")
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		switch key {
		case "provider":
			cfg.Provider = Provider(strings.ToLower(val))
		case "model":
			cfg.Model = val
		case "base_url":
			cfg.BaseURL = val
		case "api_key":
			cfg.APIKey = val
		case "api_version":
			cfg.APIVersion = val
		case "log_path":
			cfg.LogPath = val
		case "retries":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.Retries = n
			}
		case "max_steps":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.MaxSteps = n
			}
		case "backoff_secs":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				cfg.BackoffSecs = f
			}
		default:
			log.WithField("key", key).Warn("ignoring unknown override")
		}
	}
	return cfg.normalized()
}

// Validate 检查启动所需的最小配置。
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	switch c.Provider {
	case ProviderOpenAI, ProviderAzure, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.Provider == ProviderAzure && strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("azure provider requires base_url")
	}
	return nil
}

// Backoff 返回重试的基础等待时长。
func (c Config) Backoff() time.Duration {
	return time.Duration(c.BackoffSecs * float64(time.Second))
}

func (c Config) normalized() Config {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.Retries <= 0 {
		c.Retries = DefaultRetries
	}
	if c.BackoffSecs < 0 {
		c.BackoffSecs = DefaultBackoff
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if strings.TrimSpace(c.APIVersion) == "" {
		c.APIVersion = DefaultAPIVersion
	}
	return c
}

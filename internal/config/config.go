// Package config loads the relay configuration from defaults, an optional
// JSON file and the environment, in that order of precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"lunabot/internal/domain"
)

// Environment variables read on every load.
const (
	EnvTelegramToken      = "TELEGRAM_BOT_TOKEN"
	EnvVoiceflowAPIKey    = "VOICEFLOW_API_KEY"
	EnvVoiceflowVersionID = "VOICEFLOW_VERSION_ID"
	EnvVoiceflowAPIBase   = "VOICEFLOW_API_BASE"
	EnvLogLevel           = "LUNABOT_LOG_LEVEL"
)

// Config is the root configuration for lunabot.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Telegram   TelegramConfig   `json:"telegram"`
	Voiceflow  VoiceflowConfig  `json:"voiceflow"`
	Engagement EngagementConfig `json:"engagement"`
	Catalog    CatalogConfig    `json:"catalog"`
	Metrics    MetricsConfig    `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel              string `json:"logLevel"`
	LogFile               string `json:"logFile,omitempty"` // rotated, in addition to stderr
	MaxConcurrentMessages int    `json:"maxConcurrentMessages"`
	BusBufferSize         int    `json:"busBufferSize"`
}

type TelegramConfig struct {
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom,omitempty"`
	ParseMode string         `json:"parseMode"`
	ChunkSize int            `json:"chunkSize"` // characters per text message
}

type VoiceflowConfig struct {
	APIKey         string `json:"apiKey"`
	VersionID      string `json:"versionId"`
	APIBase        string `json:"apiBase"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// Timeout returns the per-request timeout.
func (v VoiceflowConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

type EngagementConfig struct {
	InactivityMinutes int `json:"inactivityMinutes"`
	CheckInMinutes    int `json:"checkInMinutes"`
	GiftMinutes       int `json:"giftMinutes"`
}

func (e EngagementConfig) InactivityDelay() time.Duration {
	return time.Duration(e.InactivityMinutes) * time.Minute
}

func (e EngagementConfig) CheckInDelay() time.Duration {
	return time.Duration(e.CheckInMinutes) * time.Minute
}

func (e EngagementConfig) GiftDelay() time.Duration {
	return time.Duration(e.GiftMinutes) * time.Minute
}

type CatalogConfig struct {
	Path string `json:"path,omitempty"` // YAML file with extra or replacement cards
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Path    string `json:"path"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		path = ExpandPath(path)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}
		data = []byte(ExpandEnvVars(string(data)))
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Catalog.Path = ExpandPath(cfg.Catalog.Path)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets set environment variables win over file values.
func applyEnvOverrides(cfg *Config) {
	for name, dst := range map[string]*string{
		EnvTelegramToken:      &cfg.Telegram.Token,
		EnvVoiceflowAPIKey:    &cfg.Voiceflow.APIKey,
		EnvVoiceflowVersionID: &cfg.Voiceflow.VersionID,
		EnvVoiceflowAPIBase:   &cfg.Voiceflow.APIBase,
		EnvLogLevel:           &cfg.General.LogLevel,
	} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
		}
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset
// variable without default is left as written.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

// Validate reports every problem at once. Missing credentials wrap
// domain.ErrConfigMissing and name the environment variables to set.
func Validate(cfg *Config) error {
	var missing []string
	if cfg.Telegram.Token == "" {
		missing = append(missing, EnvTelegramToken)
	}
	if cfg.Voiceflow.APIKey == "" {
		missing = append(missing, EnvVoiceflowAPIKey)
	}
	if cfg.Voiceflow.VersionID == "" {
		missing = append(missing, EnvVoiceflowVersionID)
	}

	var problems []string
	switch strings.ToLower(cfg.General.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.General.MaxConcurrentMessages < 1 || cfg.General.MaxConcurrentMessages > 100 {
		problems = append(problems, "general.maxConcurrentMessages must be between 1 and 100")
	}
	if cfg.General.BusBufferSize < 1 {
		problems = append(problems, "general.busBufferSize must be >= 1")
	}
	// Telegram rejects messages over 4096 characters.
	if cfg.Telegram.ChunkSize < 1 || cfg.Telegram.ChunkSize > 4096 {
		problems = append(problems, "telegram.chunkSize must be between 1 and 4096")
	}
	switch cfg.Telegram.ParseMode {
	case "", "Markdown", "MarkdownV2", "HTML":
	default:
		problems = append(problems, "telegram.parseMode must be one of: Markdown, MarkdownV2, HTML")
	}
	if cfg.Voiceflow.TimeoutSeconds < 1 {
		problems = append(problems, "voiceflow.timeoutSeconds must be >= 1")
	}
	if cfg.Engagement.InactivityMinutes < 1 {
		problems = append(problems, "engagement.inactivityMinutes must be >= 1")
	}
	if cfg.Engagement.CheckInMinutes < 1 {
		problems = append(problems, "engagement.checkInMinutes must be >= 1")
	}
	if cfg.Engagement.GiftMinutes < 1 {
		problems = append(problems, "engagement.giftMinutes must be >= 1")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		problems = append(problems, "metrics.addr is required when metrics are enabled")
	}
	if cfg.Metrics.Path != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		problems = append(problems, "metrics.path must start with /")
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("%w: set %s", domain.ErrConfigMissing, strings.Join(missing, ", ")))
	}
	if len(problems) > 0 {
		errs = append(errs, fmt.Errorf("config validation errors:\n  - %s", strings.Join(problems, "\n  - ")))
	}
	return errors.Join(errs...)
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

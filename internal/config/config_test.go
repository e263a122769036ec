package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunabot/internal/domain"
)

// clearEnv blanks every variable Load reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvTelegramToken, EnvVoiceflowAPIKey, EnvVoiceflowVersionID,
		EnvVoiceflowAPIBase, EnvLogLevel,
	} {
		t.Setenv(name, "")
	}
}

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv(EnvTelegramToken, "123456:ABCDEF-token")
	t.Setenv(EnvVoiceflowAPIKey, "VF.DM.abcdef123456")
	t.Setenv(EnvVoiceflowVersionID, "production")
}

func validConfig() *Config {
	cfg := Defaults()
	cfg.Telegram.Token = "t"
	cfg.Voiceflow.APIKey = "k"
	cfg.Voiceflow.VersionID = "v"
	return cfg
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))
}

func TestValidate_MissingCredentialsNamed(t *testing.T) {
	err := Validate(Defaults())
	require.ErrorIs(t, err, domain.ErrConfigMissing)
	for _, name := range []string{EnvTelegramToken, EnvVoiceflowAPIKey, EnvVoiceflowVersionID} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestValidate_OneMissingCredential(t *testing.T) {
	cfg := validConfig()
	cfg.Voiceflow.VersionID = ""

	err := Validate(cfg)
	require.ErrorIs(t, err, domain.ErrConfigMissing)
	assert.Contains(t, err.Error(), EnvVoiceflowVersionID)
	assert.NotContains(t, err.Error(), EnvTelegramToken)
}

func TestValidate_Tunables(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.General.LogLevel = "loud" }, "general.logLevel"},
		{"concurrency low", func(c *Config) { c.General.MaxConcurrentMessages = 0 }, "maxConcurrentMessages"},
		{"concurrency high", func(c *Config) { c.General.MaxConcurrentMessages = 101 }, "maxConcurrentMessages"},
		{"bus buffer", func(c *Config) { c.General.BusBufferSize = 0 }, "busBufferSize"},
		{"chunk size zero", func(c *Config) { c.Telegram.ChunkSize = 0 }, "telegram.chunkSize"},
		{"chunk size over limit", func(c *Config) { c.Telegram.ChunkSize = 5000 }, "telegram.chunkSize"},
		{"parse mode", func(c *Config) { c.Telegram.ParseMode = "BBCode" }, "telegram.parseMode"},
		{"timeout", func(c *Config) { c.Voiceflow.TimeoutSeconds = 0 }, "voiceflow.timeoutSeconds"},
		{"inactivity", func(c *Config) { c.Engagement.InactivityMinutes = 0 }, "inactivityMinutes"},
		{"check-in", func(c *Config) { c.Engagement.CheckInMinutes = -1 }, "checkInMinutes"},
		{"gift", func(c *Config) { c.Engagement.GiftMinutes = 0 }, "giftMinutes"},
		{"metrics addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }, "metrics.addr"},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.NotErrorIs(t, err, domain.ErrConfigMissing)
		})
	}
}

func TestValidate_AccumulatesProblems(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "loud"
	cfg.Telegram.ChunkSize = 0

	err := Validate(cfg)
	require.ErrorIs(t, err, domain.ErrConfigMissing)
	assert.Contains(t, err.Error(), "general.logLevel")
	assert.Contains(t, err.Error(), "telegram.chunkSize")
}

func TestDefaults_Engagement(t *testing.T) {
	e := Defaults().Engagement
	assert.Equal(t, "30m0s", e.InactivityDelay().String())
	assert.Equal(t, "6h0m0s", e.CheckInDelay().String())
	assert.Equal(t, "24h0m0s", e.GiftDelay().String())
}

func TestLoad_EnvOnly(t *testing.T) {
	clearEnv(t)
	setCredentials(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "123456:ABCDEF-token", cfg.Telegram.Token)
	assert.Equal(t, "VF.DM.abcdef123456", cfg.Voiceflow.APIKey)
	assert.Equal(t, "production", cfg.Voiceflow.VersionID)
	assert.Equal(t, Defaults().Telegram.ChunkSize, cfg.Telegram.ChunkSize)
}

func TestLoad_MissingEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTelegramToken, "tok")

	_, err := Load("")
	require.ErrorIs(t, err, domain.ErrConfigMissing)
	assert.Contains(t, err.Error(), EnvVoiceflowAPIKey)
	assert.Contains(t, err.Error(), EnvVoiceflowVersionID)
}

func TestLoad_FileWithEnvSubstitution(t *testing.T) {
	clearEnv(t)
	t.Setenv("LUNA_VF_KEY", "VF.DM.fromfile")
	path := writeFile(t, `{
		"telegram": {"token": "file-token", "allowFrom": ["1", 2], "chunkSize": 1000},
		"voiceflow": {"apiKey": "${LUNA_VF_KEY}", "versionId": "${LUNA_VERSION:-development}"},
		"engagement": {"inactivityMinutes": 5}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.Telegram.Token)
	assert.Equal(t, FlexStringList{"1", "2"}, cfg.Telegram.AllowFrom)
	assert.Equal(t, 1000, cfg.Telegram.ChunkSize)
	assert.Equal(t, "VF.DM.fromfile", cfg.Voiceflow.APIKey)
	assert.Equal(t, "development", cfg.Voiceflow.VersionID)
	assert.Equal(t, 5, cfg.Engagement.InactivityMinutes)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, 24*60, cfg.Engagement.GiftMinutes)
	assert.Equal(t, "Markdown", cfg.Telegram.ParseMode)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	clearEnv(t)
	setCredentials(t)
	t.Setenv(EnvLogLevel, "debug")
	path := writeFile(t, `{"general": {"logLevel": "warn"}, "telegram": {"token": "file-token"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "123456:ABCDEF-token", cfg.Telegram.Token)
	assert.Equal(t, "debug", cfg.General.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read config file")
}

func TestLoad_InvalidJSON(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeFile(t, `{not json`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot parse config file")
}

func TestFlexStringList(t *testing.T) {
	var f FlexStringList
	require.NoError(t, json.Unmarshal([]byte(`["123", 456, 7.0]`), &f))
	assert.Equal(t, FlexStringList{"123", "456", "7"}, f)

	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &f))
	assert.Equal(t, FlexStringList{"a", "b"}, f)

	assert.Error(t, json.Unmarshal([]byte(`"not-an-array"`), &f))
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("LUNA_SET", "value")
	t.Setenv("LUNA_EMPTY", "")

	tests := []struct {
		in, want string
	}{
		{"${LUNA_SET}", "value"},
		{"${LUNA_SET:-fallback}", "value"},
		{"${LUNA_EMPTY:-fallback}", "fallback"},
		{"${LUNA_UNSET_XYZ}", "${LUNA_UNSET_XYZ}"},
		{"${LUNA_UNSET_XYZ:-d}", "d"},
		{"a ${LUNA_SET} b ${LUNA_SET}", "a value b value"},
		{"$LUNA_SET", "$LUNA_SET"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandEnvVars(tt.in), "input %q", tt.in)
	}
}

func TestSanitize_MasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = "123456:ABCDEF-secret"
	cfg.Voiceflow.APIKey = "VF.DM.0123456789"

	out := Sanitize(cfg)
	assert.Equal(t, "1234****cret", out.Telegram.Token)
	assert.Equal(t, "VF.D****6789", out.Voiceflow.APIKey)
	assert.Equal(t, "v", out.Voiceflow.VersionID)
	// The original is untouched.
	assert.Equal(t, "123456:ABCDEF-secret", cfg.Telegram.Token)

	short := validConfig()
	assert.Equal(t, "***", Sanitize(short).Telegram.Token)
	assert.False(t, strings.Contains(Sanitize(short).Voiceflow.APIKey, "k"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "cards.yaml"), ExpandPath("~/cards.yaml"))
	assert.Equal(t, "/etc/lunabot.json", ExpandPath("/etc/lunabot.json"))
}

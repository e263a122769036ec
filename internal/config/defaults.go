package config

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Defaults returns a configuration with every tunable set. Credentials are
// left empty; they come from the environment.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			MaxConcurrentMessages: 5,
			BusBufferSize:         100,
		},
		Telegram: TelegramConfig{
			ParseMode: tgbotapi.ModeMarkdown,
			ChunkSize: 3900,
		},
		Voiceflow: VoiceflowConfig{
			APIBase:        "https://general-runtime.voiceflow.com",
			TimeoutSeconds: 30,
		},
		Engagement: EngagementConfig{
			InactivityMinutes: 30,
			CheckInMinutes:    6 * 60,
			GiftMinutes:       24 * 60,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
			Path:    "/metrics",
		},
	}
}

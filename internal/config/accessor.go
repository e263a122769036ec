package config

import "encoding/json"

// Sanitize returns a copy of the config with credentials masked, for
// printing.
func Sanitize(cfg *Config) *Config {
	data, err := json.Marshal(cfg)
	if err != nil {
		return cfg
	}
	var out Config
	if err := json.Unmarshal(data, &out); err != nil {
		return cfg
	}

	for _, s := range []*string{
		&out.Telegram.Token,
		&out.Voiceflow.APIKey,
	} {
		if *s != "" {
			*s = maskString(*s)
		}
	}
	return &out
}

// maskString shows the first and last 4 characters of s.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

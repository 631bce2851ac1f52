// config/overlay.go
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads each existing .env file into the process environment.
// Missing files are skipped; variables already set are not overwritten.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// OverlayEnv applies environment overrides on top of cfg. lookup is
// os.LookupEnv outside of tests.
func OverlayEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}

	str("DATA_DIR", &cfg.App.DataDir)
	str("HTTP_ADDR", &cfg.App.HTTPAddr)

	str("SOURCE_DRIVER", &cfg.Source.Driver)
	str("SOURCE_DSN", &cfg.Source.DSN)
	str("SOURCE_HOST", &cfg.Source.Host)
	num("SOURCE_PORT", &cfg.Source.Port)
	str("SOURCE_USER", &cfg.Source.User)
	str("SOURCE_PASSWORD", &cfg.Source.Password)
	str("SOURCE_DATABASE", &cfg.Source.Database)
	str("SOURCE_TIMEZONE", &cfg.Source.Timezone)

	str("CLASSIFIER_PROVIDER", &cfg.Classifier.Provider)
	str("CLASSIFIER_BASE_URL", &cfg.Classifier.BaseURL)
	str("CLASSIFIER_MODEL", &cfg.Classifier.Model)
	// Token env var follows the provider so both can live in one .env.
	switch strings.ToLower(cfg.Classifier.Provider) {
	case "openai":
		str("OPENAI_API_KEY", &cfg.Classifier.Token)
	default:
		str("HF_TOKEN", &cfg.Classifier.Token)
	}

	str("SMTP_HOST", &cfg.SMTP.Host)
	num("SMTP_PORT", &cfg.SMTP.Port)
	str("SMTP_USERNAME", &cfg.SMTP.Username)
	str("SMTP_PASSWORD", &cfg.SMTP.Password)
	str("SMTP_TLS", &cfg.SMTP.TLS)

	str("REPORT_FROM", &cfg.Report.From)
	if v, ok := lookup("REPORT_RECIPIENTS"); ok && strings.TrimSpace(v) != "" {
		cfg.Report.Recipients = strings.Split(v, ",")
	}

	str("SCHEDULE_CRON", &cfg.Schedule.Cron)
	str("SCHEDULE_TIMEZONE", &cfg.Schedule.Timezone)

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FILE", &cfg.Logging.File)
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	_, vr := NormalizeAndValidate(Default())
	assert.Empty(t, vr.Errors)
	assert.True(t, vr.OK())
}

func TestDefaultMatchesProductionReport(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1000, cfg.Source.BatchSize)
	assert.Equal(t, "Transactional", cfg.Source.ExpectedType)
	assert.Equal(t, []string{"Transactional", "Promotional"}, cfg.Classifier.CandidateLabels)
	assert.Equal(t, "This message is {}.", cfg.Classifier.HypothesisTemplate)
	assert.Equal(t, "facebook/bart-large-mnli", cfg.Classifier.Model)
	assert.Equal(t, "Misused Sender IDs Report", cfg.Report.Subject)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad driver", func(c *Config) { c.Source.Driver = "oracle" }, "source.driver"},
		{"sqlite without dsn", func(c *Config) { c.Source.Driver = "sqlite" }, "source.dsn"},
		{"schema injection", func(c *Config) { c.Source.Schema = "onfon; DROP TABLE x" }, "source.schema"},
		{"table injection", func(c *Config) { c.Source.CampaignsTable = "a b" }, "source.campaigns_table"},
		{"zero batch", func(c *Config) { c.Source.BatchSize = 0 }, "source.batch_size"},
		{"single label", func(c *Config) { c.Classifier.CandidateLabels = []string{"Transactional"} }, "candidate_labels"},
		{"template without slot", func(c *Config) { c.Classifier.HypothesisTemplate = "This message is" }, "hypothesis_template"},
		{"unknown provider", func(c *Config) { c.Classifier.Provider = "bert" }, "classifier.provider"},
		{"no recipients", func(c *Config) { c.Report.Recipients = []string{" "} }, "report.recipients"},
		{"bad recipient", func(c *Config) { c.Report.Recipients = []string{"not-an-address"} }, "report.recipients[0]"},
		{"bad tls", func(c *Config) { c.SMTP.TLS = "ssl3" }, "smtp.tls"},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every day" }, "schedule.cron"},
		{"bad timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, "schedule.timezone"},
		{"negative rate", func(c *Config) { c.Classifier.RequestsPerSecond = -1 }, "classifier.requests_per_second"},
		{"bad source timezone", func(c *Config) { c.Source.Timezone = "Mars/Olympus" }, "source.timezone"},
		{"archive without host", func(c *Config) { c.Report.Archive.Enabled = true }, "report.archive.imap_host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			_, vr := NormalizeAndValidate(cfg)
			require.False(t, vr.OK())
			assert.Contains(t, strings.Join(vr.Errors, "\n"), tt.want)
		})
	}
}

func TestNormalizeDedupesRecipients(t *testing.T) {
	cfg := Default()
	cfg.Report.Recipients = []string{" ops@example.com", "OPS@example.com", "", "audit@example.com"}
	cfg.Classifier.Provider = " HuggingFace "
	cfg.Classifier.BaseURL = "http://localhost:8080/"

	out, vr := NormalizeAndValidate(cfg)
	require.True(t, vr.OK(), vr.Errors)
	assert.Equal(t, []string{"ops@example.com", "audit@example.com"}, out.Report.Recipients)
	assert.Equal(t, "huggingface", out.Classifier.Provider)
	assert.Equal(t, "http://localhost:8080", out.Classifier.BaseURL)
}

func TestExpectedTypeOutsideLabelsWarns(t *testing.T) {
	cfg := Default()
	cfg.Source.ExpectedType = "OTP"
	_, vr := NormalizeAndValidate(cfg)
	assert.True(t, vr.OK())
	assert.NotEmpty(t, vr.Warnings)
}

func TestZeroRateMeansUnthrottled(t *testing.T) {
	cfg := Default()
	cfg.Classifier.RequestsPerSecond = 0
	_, vr := NormalizeAndValidate(cfg)
	assert.True(t, vr.OK(), "errors: %v", vr.Errors)
	assert.Contains(t, strings.Join(vr.Warnings, "\n"), "not throttled")
}

func TestOverlayEnv(t *testing.T) {
	env := map[string]string{
		"SOURCE_HOST":       "db.internal",
		"SOURCE_PORT":       "3307",
		"HF_TOKEN":          "hf_secret",
		"SMTP_PORT":         "587",
		"SMTP_TLS":          "starttls",
		"REPORT_RECIPIENTS": "a@example.com, b@example.com",
		"SCHEDULE_CRON":     "30 5 * * *",
		"SOURCE_USER":       "   ",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	OverlayEnv(&cfg, lookup)

	assert.Equal(t, "db.internal", cfg.Source.Host)
	assert.Equal(t, 3307, cfg.Source.Port)
	assert.Equal(t, "reporter", cfg.Source.User, "blank values must not clobber")
	assert.Equal(t, "hf_secret", cfg.Classifier.Token)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "starttls", cfg.SMTP.TLS)
	assert.Equal(t, "30 5 * * *", cfg.Schedule.Cron)

	out, vr := NormalizeAndValidate(cfg)
	require.True(t, vr.OK(), vr.Errors)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, out.Report.Recipients)
}

func TestOverlayEnvOpenAIToken(t *testing.T) {
	env := map[string]string{
		"CLASSIFIER_PROVIDER": "openai",
		"OPENAI_API_KEY":      "sk-test",
		"HF_TOKEN":            "hf_ignored",
	}
	cfg := Default()
	OverlayEnv(&cfg, func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	assert.Equal(t, "sk-test", cfg.Classifier.Token)
}

func TestEnsureUserConfigWritesDefaults(t *testing.T) {
	dir := t.TempDir()

	path, err := EnsureUserConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yml"), path)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.App.DataDir)
	assert.Equal(t, Default().Source.Schema, cfg.Source.Schema)

	// A second call keeps the user's edits.
	cfg.Source.BatchSize = 250
	require.NoError(t, SaveAtomic(path, cfg))
	_, err = EnsureUserConfig(dir)
	require.NoError(t, err)
	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250, again.Source.BatchSize)

	_, err = os.Stat(path + ".bak")
	assert.NoError(t, err)
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  batch_size: 50\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Source.BatchSize)
	assert.Equal(t, "sms_campaigns", cfg.Source.CampaignsTable)
}

func TestSaveAtomicRejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.SMTP.Port = 0
	err := SaveAtomic(filepath.Join(t.TempDir(), "config.yml"), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp.port")
}

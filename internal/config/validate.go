package config

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NormalizeAndValidate returns a normalized copy of cfg and the problems
// found in it. Only Errors make the config unusable.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Source.Driver = strings.ToLower(strings.TrimSpace(out.Source.Driver))
	out.Source.Schema = strings.TrimSpace(out.Source.Schema)
	out.Source.ExpectedType = strings.TrimSpace(out.Source.ExpectedType)
	out.Classifier.Provider = strings.ToLower(strings.TrimSpace(out.Classifier.Provider))
	out.Classifier.BaseURL = strings.TrimRight(strings.TrimSpace(out.Classifier.BaseURL), "/")
	out.Classifier.CandidateLabels = trimList(out.Classifier.CandidateLabels)
	out.Report.Recipients = trimList(out.Report.Recipients)
	out.SMTP.TLS = strings.ToLower(strings.TrimSpace(out.SMTP.TLS))
	out.Logging.Level = strings.ToLower(strings.TrimSpace(out.Logging.Level))
	out.Logging.Format = strings.ToLower(strings.TrimSpace(out.Logging.Format))

	// ---- source ----

	switch out.Source.Driver {
	case "mysql":
		if out.Source.DSN == "" {
			if out.Source.Host == "" {
				res.addErr("source.host is required when source.dsn is empty")
			}
			if out.Source.User == "" {
				res.addErr("source.user is required when source.dsn is empty")
			}
			if out.Source.Port <= 0 || out.Source.Port > 65535 {
				res.addErr("source.port must be 1..65535")
			}
		}
	case "sqlite":
		if out.Source.DSN == "" {
			res.addErr("source.dsn is required for the sqlite driver")
		}
	default:
		res.addErr("source.driver must be mysql or sqlite, got %q", out.Source.Driver)
	}

	if out.Source.Schema != "" && !identRe.MatchString(out.Source.Schema) {
		res.addErr("source.schema %q is not a plain identifier", out.Source.Schema)
	}
	for name, v := range map[string]string{
		"source.campaigns_table":  out.Source.CampaignsTable,
		"source.sender_ids_table": out.Source.SenderIDsTable,
	} {
		if !identRe.MatchString(v) {
			res.addErr("%s %q is not a plain identifier", name, v)
		}
	}
	if out.Source.ExpectedType == "" {
		res.addErr("source.expected_type is required")
	}
	out.Source.Timezone = strings.TrimSpace(out.Source.Timezone)
	if out.Source.Timezone != "" {
		if _, err := time.LoadLocation(out.Source.Timezone); err != nil {
			res.addErr("source.timezone %q: %v", out.Source.Timezone, err)
		}
	}
	if out.Source.WindowHours <= 0 {
		res.addErr("source.window_hours must be > 0")
	}
	if out.Source.BatchSize <= 0 {
		res.addErr("source.batch_size must be > 0")
	} else if out.Source.BatchSize > 10000 {
		res.addWarn("source.batch_size is very high (%d); each page is held in memory.", out.Source.BatchSize)
	}

	// ---- classifier ----

	switch out.Classifier.Provider {
	case "huggingface", "openai":
	default:
		res.addErr("classifier.provider must be huggingface or openai, got %q", out.Classifier.Provider)
	}
	if out.Classifier.BaseURL == "" {
		res.addErr("classifier.base_url is required")
	}
	if strings.TrimSpace(out.Classifier.Model) == "" {
		res.addErr("classifier.model is required")
	}
	if len(out.Classifier.CandidateLabels) < 2 {
		res.addErr("classifier.candidate_labels needs at least 2 labels")
	}
	if !strings.Contains(out.Classifier.HypothesisTemplate, "{}") {
		res.addErr("classifier.hypothesis_template must contain {}")
	}
	if out.Classifier.RequestBatchSize <= 0 {
		res.addErr("classifier.request_batch_size must be > 0")
	}
	if out.Classifier.Concurrency <= 0 {
		res.addErr("classifier.concurrency must be > 0")
	}
	if out.Classifier.RequestsPerSecond < 0 {
		res.addErr("classifier.requests_per_second must be >= 0 (0 = unlimited)")
	} else if out.Classifier.RequestsPerSecond == 0 {
		res.addWarn("classifier.requests_per_second is 0; classifier requests are not throttled.")
	}
	if out.Classifier.Burst <= 0 {
		out.Classifier.Burst = 1
	}
	if out.Classifier.MaxRetries < 0 {
		res.addErr("classifier.max_retries must be >= 0")
	}
	if out.Classifier.TimeoutSeconds <= 0 {
		res.addErr("classifier.timeout_seconds must be > 0")
	}

	expectedIsLabel := false
	for _, l := range out.Classifier.CandidateLabels {
		if l == out.Source.ExpectedType {
			expectedIsLabel = true
		}
	}
	if out.Source.ExpectedType != "" && !expectedIsLabel {
		res.addWarn("source.expected_type %q is not a candidate label; every row will be reported.", out.Source.ExpectedType)
	}

	// ---- report / smtp ----

	if len(out.Report.Recipients) == 0 {
		res.addErr("report.recipients must have at least 1 address")
	}
	for i, r := range out.Report.Recipients {
		if _, err := mail.ParseAddress(r); err != nil {
			res.addErr("report.recipients[%d] %q is not a valid address", i, r)
		}
	}
	if _, err := mail.ParseAddress(out.Report.From); err != nil {
		res.addErr("report.from %q is not a valid address", out.Report.From)
	}
	if strings.TrimSpace(out.Report.Subject) == "" {
		res.addWarn("report.subject is empty")
	}

	if strings.TrimSpace(out.SMTP.Host) == "" {
		res.addErr("smtp.host is required")
	}
	if out.SMTP.Port <= 0 || out.SMTP.Port > 65535 {
		res.addErr("smtp.port must be 1..65535")
	}
	switch out.SMTP.TLS {
	case "none", "starttls", "tls":
	default:
		res.addErr("smtp.tls must be none, starttls or tls, got %q", out.SMTP.TLS)
	}
	if out.SMTP.TLS == "none" && out.SMTP.Username != "" {
		res.addWarn("smtp.username is set but smtp.tls is none; credentials would travel in clear text.")
	}

	// password not required here; it’s in keychain
	if out.Report.Archive.Enabled {
		if strings.TrimSpace(out.Report.Archive.IMAPHost) == "" {
			res.addErr("report.archive.imap_host is required when report.archive.enabled=true")
		}
		if strings.TrimSpace(out.Report.Archive.Username) == "" {
			res.addErr("report.archive.username is required when report.archive.enabled=true")
		}
		if strings.TrimSpace(out.Report.Archive.Mailbox) == "" {
			out.Report.Archive.Mailbox = "Sent"
		}
	}

	// ---- schedule / app / logging ----

	if _, err := cron.ParseStandard(out.Schedule.Cron); err != nil {
		res.addErr("schedule.cron %q: %v", out.Schedule.Cron, err)
	}
	if out.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(out.Schedule.Timezone); err != nil {
			res.addErr("schedule.timezone %q: %v", out.Schedule.Timezone, err)
		}
	}
	if out.App.RetentionDays < 0 {
		res.addErr("app.retention_days must be >= 0")
	} else if out.App.RetentionDays == 0 {
		res.addWarn("app.retention_days is 0; run history is never cleaned up.")
	}
	switch out.Logging.Format {
	case "", "console", "json":
	default:
		res.addErr("logging.format must be console or json, got %q", out.Logging.Format)
	}

	return out, res
}

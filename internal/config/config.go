// internal/config/config.go
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App        App        `yaml:"app" json:"app"`
	Source     Source     `yaml:"source" json:"source"`
	Classifier Classifier `yaml:"classifier" json:"classifier"`
	Report     Report     `yaml:"report" json:"report"`
	SMTP       SMTP       `yaml:"smtp" json:"smtp"`
	Schedule   Schedule   `yaml:"schedule" json:"schedule"`
	Logging    Logging    `yaml:"logging" json:"logging"`
}

type App struct {
	DataDir       string `yaml:"data_dir" json:"data_dir"`
	HTTPAddr      string `yaml:"http_addr" json:"http_addr"`
	RetentionDays int    `yaml:"retention_days" json:"retention_days"`
}

// Source describes the campaign database the job reads from.
type Source struct {
	Driver                string `yaml:"driver" json:"driver"` // mysql | sqlite
	DSN                   string `yaml:"dsn" json:"-"`         // overrides host/user/database when set
	Host                  string `yaml:"host" json:"host"`
	Port                  int    `yaml:"port" json:"port"`
	User                  string `yaml:"user" json:"user"`
	Password              string `yaml:"password,omitempty" json:"-"`
	Database              string `yaml:"database" json:"database"`
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds" json:"connect_timeout_seconds"`
	Timezone              string `yaml:"timezone" json:"timezone"` // zone created_at is stored in

	Schema         string `yaml:"schema" json:"schema"`
	CampaignsTable string `yaml:"campaigns_table" json:"campaigns_table"`
	SenderIDsTable string `yaml:"sender_ids_table" json:"sender_ids_table"`
	ExpectedType   string `yaml:"expected_type" json:"expected_type"`
	WindowHours    int    `yaml:"window_hours" json:"window_hours"`
	BatchSize      int    `yaml:"batch_size" json:"batch_size"`
}

type Classifier struct {
	Provider           string   `yaml:"provider" json:"provider"` // huggingface | openai
	BaseURL            string   `yaml:"base_url" json:"base_url"`
	Model              string   `yaml:"model" json:"model"`
	Token              string   `yaml:"token,omitempty" json:"-"`
	CandidateLabels    []string `yaml:"candidate_labels" json:"candidate_labels"`
	HypothesisTemplate string   `yaml:"hypothesis_template" json:"hypothesis_template"`

	RequestBatchSize  int     `yaml:"request_batch_size" json:"request_batch_size"`
	Concurrency       int     `yaml:"concurrency" json:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
	MaxRetries        int     `yaml:"max_retries" json:"max_retries"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" json:"timeout_seconds"`
	MaxChars          int     `yaml:"max_chars" json:"max_chars"`
}

type Report struct {
	Dir        string   `yaml:"dir" json:"dir"` // empty = app.data_dir
	DatedName  bool     `yaml:"dated_name" json:"dated_name"`
	From       string   `yaml:"from" json:"from"`
	Recipients []string `yaml:"recipients" json:"recipients"`
	Subject    string   `yaml:"subject" json:"subject"`
	Body       string   `yaml:"body" json:"body"`
	Archive    Archive  `yaml:"archive" json:"archive"`
}

// Archive stores a copy of each sent report in an IMAP mailbox.
// The password comes from the keychain or SMTP_PASSWORD.
type Archive struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	IMAPHost string `yaml:"imap_host" json:"imap_host"`
	IMAPPort int    `yaml:"imap_port" json:"imap_port"`
	Username string `yaml:"username" json:"username"`
	Mailbox  string `yaml:"mailbox" json:"mailbox"`
}

type SMTP struct {
	Host           string `yaml:"host" json:"host"`
	Port           int    `yaml:"port" json:"port"`
	Username       string `yaml:"username" json:"username"`
	Password       string `yaml:"password,omitempty" json:"-"`
	TLS            string `yaml:"tls" json:"tls"` // none | starttls | tls
	LocalName      string `yaml:"local_name" json:"local_name"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

type Schedule struct {
	Cron       string `yaml:"cron" json:"cron"`
	Timezone   string `yaml:"timezone" json:"timezone"`
	RunOnStart bool   `yaml:"run_on_start" json:"run_on_start"`
}

type Logging struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // console | json
	File   string `yaml:"file" json:"file"`
}

// Default returns the configuration the job ships with. The query, labels
// and mail text match the production report.
func Default() Config {
	var cfg Config

	cfg.App.DataDir = "."
	cfg.App.HTTPAddr = "127.0.0.1:38472"
	cfg.App.RetentionDays = 90

	cfg.Source.Driver = "mysql"
	cfg.Source.Host = "localhost"
	cfg.Source.Port = 3306
	cfg.Source.User = "reporter"
	cfg.Source.Database = "onfon"
	cfg.Source.ConnectTimeoutSeconds = 10
	cfg.Source.Timezone = "UTC"
	cfg.Source.Schema = "onfon"
	cfg.Source.CampaignsTable = "sms_campaigns"
	cfg.Source.SenderIDsTable = "sms_sender_ids"
	cfg.Source.ExpectedType = "Transactional"
	cfg.Source.WindowHours = 24
	cfg.Source.BatchSize = 1000

	cfg.Classifier.Provider = "huggingface"
	cfg.Classifier.BaseURL = "https://router.huggingface.co/hf-inference"
	cfg.Classifier.Model = "facebook/bart-large-mnli"
	cfg.Classifier.CandidateLabels = []string{"Transactional", "Promotional"}
	cfg.Classifier.HypothesisTemplate = "This message is {}."
	cfg.Classifier.RequestBatchSize = 16
	cfg.Classifier.Concurrency = 4
	cfg.Classifier.RequestsPerSecond = 5
	cfg.Classifier.Burst = 2
	cfg.Classifier.MaxRetries = 3
	cfg.Classifier.TimeoutSeconds = 60
	cfg.Classifier.MaxChars = 1000

	cfg.Report.From = "reports@localhost"
	cfg.Report.Recipients = []string{"esalikho@onfonmedia.com"}
	cfg.Report.Subject = "Misused Sender IDs Report"
	cfg.Report.Body = "Please find the attached report of misused sender IDs."
	cfg.Report.Archive.IMAPPort = 993
	cfg.Report.Archive.Mailbox = "Sent"

	cfg.SMTP.Host = "localhost"
	cfg.SMTP.Port = 25
	cfg.SMTP.TLS = "none"
	cfg.SMTP.LocalName = "localhost"
	cfg.SMTP.TimeoutSeconds = 30

	cfg.Schedule.Cron = "0 6 * * *"
	cfg.Schedule.Timezone = "UTC"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	return cfg
}

// Load reads path on top of Default, so keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

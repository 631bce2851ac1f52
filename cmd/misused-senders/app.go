package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edwin001-tech/misused-senders/internal/classify"
	"github.com/edwin001-tech/misused-senders/internal/config"
	"github.com/edwin001-tech/misused-senders/internal/events"
	"github.com/edwin001-tech/misused-senders/internal/job"
	"github.com/edwin001-tech/misused-senders/internal/logging"
	"github.com/edwin001-tech/misused-senders/internal/mailer"
	"github.com/edwin001-tech/misused-senders/internal/secrets"
	"github.com/edwin001-tech/misused-senders/internal/source"
	"github.com/edwin001-tech/misused-senders/internal/store"
)

type app struct {
	cfg     config.Config
	cfgPath string
	log     *zap.Logger
}

// resolveDataDir picks --data-dir, then DATA_DIR, then the working dir.
func resolveDataDir(opts *rootOptions) string {
	if opts.dataDir != "" {
		return opts.dataDir
	}
	if v := strings.TrimSpace(os.Getenv("DATA_DIR")); v != "" {
		return v
	}
	return "."
}

// loadConfig reads the config file (bootstrapping it on first use) and
// applies .env and environment overrides.
func loadConfig(opts *rootOptions) (config.Config, string, config.Validation, error) {
	config.LoadDotEnv()

	dir := resolveDataDir(opts)
	path := opts.configPath
	if path == "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return config.Config{}, "", config.Validation{}, err
		}
		p, err := config.EnsureUserConfig(dir)
		if err != nil {
			return config.Config{}, "", config.Validation{}, fmt.Errorf("config bootstrap failed: %w", err)
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, "", config.Validation{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	config.OverlayEnv(&cfg, os.LookupEnv)
	if opts.dataDir != "" {
		cfg.App.DataDir = opts.dataDir
	}

	cfg, vr := config.NormalizeAndValidate(cfg)
	return cfg, path, vr, nil
}

func loadApp(opts *rootOptions) (*app, error) {
	cfg, path, vr, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if !vr.OK() {
		return nil, fmt.Errorf("invalid config %s: %s", path, strings.Join(vr.Errors, "; "))
	}

	log, err := logging.New(cfg.Logging, opts.verbose)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	for _, w := range vr.Warnings {
		log.Warn("config", zap.String("warning", w))
	}
	log.Debug("config loaded", zap.String("path", path), zap.String("data_dir", cfg.App.DataDir))

	return &app{cfg: cfg, cfgPath: path, log: log}, nil
}

func (a *app) ledgerPath() string {
	return filepath.Join(a.cfg.App.DataDir, "ledger.db")
}

// reportDir is report.dir, or the data dir when unset.
func (a *app) reportDir() string {
	if a.cfg.Report.Dir != "" {
		return a.cfg.Report.Dir
	}
	return a.cfg.App.DataDir
}

// buildRunner assembles the job from config. The caller closes the
// returned ledger.
func (a *app) buildRunner(ctx context.Context, hub *events.Hub) (*job.Runner, *store.DB, error) {
	cfg := a.cfg

	token := secrets.Resolve(secrets.ClassifierToken, cfg.Classifier.Token)
	clf, err := classify.New(cfg.Classifier, token)
	if err != nil {
		return nil, nil, err
	}

	ledger, err := store.Open(ctx, a.ledgerPath())
	if err != nil {
		return nil, nil, err
	}

	smtpPassword := secrets.Resolve(secrets.SMTPPassword, cfg.SMTP.Password)

	r := &job.Runner{
		Source: &source.PerRun{
			Cfg:      cfg.Source,
			Password: secrets.Resolve(secrets.SourcePassword, cfg.Source.Password),
		},
		Classifier: classify.NewPool(clf, cfg.Classifier, a.log.Named("classify")),
		Sender:     mailer.NewSMTPSender(cfg.SMTP, smtpPassword, a.log),
		Ledger:     ledger,
		Opts: job.Options{
			ReportDir:  a.reportDir(),
			DatedName:  cfg.Report.DatedName,
			From:       cfg.Report.From,
			Recipients: cfg.Report.Recipients,
			Subject:    cfg.Report.Subject,
			Body:       cfg.Report.Body,
			LockPath:   filepath.Join(cfg.App.DataDir, "misused-senders.lock"),
			Retention:  time.Duration(cfg.App.RetentionDays) * 24 * time.Hour,
		},
		Log: a.log.Named("job"),
	}
	if hub != nil {
		r.Events = hub
	}
	if cfg.Report.Archive.Enabled {
		imapPassword := secrets.Resolve(secrets.IMAPPassword, smtpPassword)
		r.Archiver = mailer.NewArchiver(cfg.Report.Archive, imapPassword, a.log)
	}
	return r, ledger, nil
}

// errorsJoin folds validation messages into one error.
func errorsJoin(msgs []string) error {
	errs := make([]error, len(msgs))
	for i, m := range msgs {
		errs[i] = errors.New(m)
	}
	return errors.Join(errs...)
}

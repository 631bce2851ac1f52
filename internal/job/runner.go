// Package job runs the misused sender-ID audit end to end: stream the
// day's campaigns, classify each message, collect the mismatches, then
// mail them as a CSV.
package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edwin001-tech/misused-senders/internal/audit"
	"github.com/edwin001-tech/misused-senders/internal/domain"
	"github.com/edwin001-tech/misused-senders/internal/events"
	"github.com/edwin001-tech/misused-senders/internal/lock"
	"github.com/edwin001-tech/misused-senders/internal/mailer"
	"github.com/edwin001-tech/misused-senders/internal/report"
	"github.com/edwin001-tech/misused-senders/internal/store"
)

var ErrAlreadyRunning = errors.New("a run is already in progress")

// Source pages through the campaign records to audit.
type Source interface {
	Stream(ctx context.Context, fn func([]domain.Record) error) (int, error)
}

// Classifier labels texts in order.
type Classifier interface {
	Classify(ctx context.Context, texts []string) ([]string, error)
}

// Sender delivers the report and returns the raw message sent.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) ([]byte, error)
}

type Archiver interface {
	Archive(ctx context.Context, raw []byte) error
}

// Ledger records runs. Ledger failures are logged, never fatal.
type Ledger interface {
	StartRun(ctx context.Context, startedAt time.Time) (string, error)
	FinishRun(ctx context.Context, id string, r store.RunResult) error
	InsertMismatches(ctx context.Context, runID string, rows []domain.Mismatch) error
	CleanupOldRuns(ctx context.Context, retention time.Duration) (int64, error)
}

// Options carries the report and housekeeping settings.
type Options struct {
	ReportDir  string // empty = the lock file's directory
	DatedName  bool
	From       string
	Recipients []string
	Subject    string
	Body       string
	LockPath   string
	Retention  time.Duration
}

type Runner struct {
	Source     Source
	Classifier Classifier
	Sender     Sender
	Archiver   Archiver         // optional
	Ledger     Ledger           // optional
	Events     events.Publisher // optional
	Opts       Options
	Log        *zap.Logger
	Now        func() time.Time

	status atomic.Value // RunStatus
}

type Result struct {
	RunID      string        `json:"run_id"`
	Processed  int           `json:"processed"`
	Mismatches int           `json:"mismatches"`
	Emailed    bool          `json:"emailed"`
	Duration   time.Duration `json:"duration"`
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Runner) publish(typ string, data any) {
	if r.Events != nil {
		r.Events.Publish(events.MakeEvent("", typ, data))
	}
}

// Run performs one audit. Only one run may hold the lock at a time; a
// concurrent call returns ErrAlreadyRunning.
func (r *Runner) Run(ctx context.Context) (res Result, err error) {
	fl := lock.New(r.Opts.LockPath)
	if err := fl.TryLock(); err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return Result{}, ErrAlreadyRunning
		}
		return Result{}, err
	}
	defer func() { _ = fl.Unlock() }()

	start := r.now()
	log := r.logger()
	r.markStarted(start)

	res.RunID = r.startLedger(ctx, start)
	log = log.With(zap.String("run_id", res.RunID))
	log.Info("run started")
	r.publish(events.RunStarted, events.StartedData{RunID: res.RunID, StartedAt: start.UTC()})

	var rows []domain.Mismatch
	seen := 0
	reportName := report.FileName(start, r.Opts.DatedName)

	defer func() {
		res.Mismatches = len(rows)
		res.Duration = r.now().Sub(start)
		r.finish(ctx, log, res, reportName, rows, err)
	}()

	res.Processed, err = r.Source.Stream(ctx, func(page []domain.Record) error {
		texts := make([]string, len(page))
		for i, rec := range page {
			texts[i] = rec.Message
		}
		labels, err := r.Classifier.Classify(ctx, texts)
		if err != nil {
			return fmt.Errorf("classify: %w", err)
		}
		mm, err := audit.Compare(page, labels)
		if err != nil {
			return err
		}
		rows = append(rows, mm...)
		seen += len(page)

		log.Info(fmt.Sprintf("processed %d records so far", seen), zap.Int("mismatches", len(rows)))
		r.publish(events.RunProgress, events.ProgressData{RunID: res.RunID, Processed: seen, Mismatches: len(rows)})
		return nil
	})
	if err != nil {
		return res, err
	}

	path := filepath.Join(r.reportDir(), reportName)
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn("remove report", zap.String("path", path), zap.Error(rmErr))
		}
	}()

	if err = report.WriteCSV(path, rows); err != nil {
		return res, err
	}

	raw, err := r.Sender.Send(ctx, mailer.Message{
		From:           r.Opts.From,
		To:             r.Opts.Recipients,
		Subject:        r.Opts.Subject,
		Body:           r.Opts.Body,
		AttachmentPath: path,
		AttachmentName: reportName,
		Date:           r.now(),
	})
	if err != nil {
		return res, fmt.Errorf("email report: %w", err)
	}
	res.Emailed = true

	if r.Archiver != nil {
		if aerr := r.Archiver.Archive(ctx, raw); aerr != nil {
			log.Warn("archive report", zap.Error(aerr))
		}
	}
	return res, nil
}

// reportDir keeps the CSV next to the instance's lock, so two instances
// with separate data dirs never share a report path.
func (r *Runner) reportDir() string {
	if r.Opts.ReportDir != "" {
		return r.Opts.ReportDir
	}
	if r.Opts.LockPath != "" {
		return filepath.Dir(r.Opts.LockPath)
	}
	return os.TempDir()
}

func (r *Runner) startLedger(ctx context.Context, start time.Time) string {
	if r.Ledger != nil {
		id, err := r.Ledger.StartRun(ctx, start)
		if err == nil {
			return id
		}
		r.logger().Warn("ledger start run", zap.Error(err))
	}
	return uuid.NewString()
}

func (r *Runner) finish(ctx context.Context, log *zap.Logger, res Result, reportName string, rows []domain.Mismatch, runErr error) {
	msg, _ := Outcome(runErr)
	if runErr != nil {
		log.Error("run failed", zap.Int("processed", res.Processed), zap.Duration("took", res.Duration), zap.Error(runErr))
	} else {
		log.Info("run finished",
			zap.Int("processed", res.Processed),
			zap.Int("mismatches", res.Mismatches),
			zap.Duration("took", res.Duration),
		)
	}

	if r.Ledger != nil {
		// record the outcome even when the run was cancelled
		lctx := context.WithoutCancel(ctx)
		if err := r.Ledger.InsertMismatches(lctx, res.RunID, rows); err != nil {
			log.Warn("ledger mismatches", zap.Error(err))
		}
		if err := r.Ledger.FinishRun(lctx, res.RunID, store.RunResult{
			FinishedAt: r.now(),
			Processed:  res.Processed,
			Mismatches: res.Mismatches,
			Emailed:    res.Emailed,
			ReportName: reportName,
			Err:        runErr,
		}); err != nil {
			log.Warn("ledger finish run", zap.Error(err))
		}
		if n, err := r.Ledger.CleanupOldRuns(lctx, r.Opts.Retention); err != nil {
			log.Warn("ledger cleanup", zap.Error(err))
		} else if n > 0 {
			log.Info("ledger cleanup", zap.Int64("deleted_runs", n))
		}
	}

	r.markFinished(res, runErr)
	r.publish(events.RunFinished, events.FinishedData{
		RunID:      res.RunID,
		OK:         runErr == nil,
		Processed:  res.Processed,
		Mismatches: res.Mismatches,
		Emailed:    res.Emailed,
		Message:    msg,
		DurationMS: res.Duration.Milliseconds(),
	})
}

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/edwin001-tech/misused-senders/internal/config"
)

type Task func(ctx context.Context) error

// Validate reports whether spec is a standard five-field cron expression.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return nil
}

// Daily runs a task on a cron schedule, skipping a tick while the previous
// run is still going.
type Daily struct {
	spec       string
	loc        *time.Location
	runOnStart bool
	name       string
	task       Task
	log        *zap.Logger
}

func NewDaily(cfg config.Schedule, name string, task Task, log *zap.Logger) (*Daily, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := Validate(cfg.Cron); err != nil {
		return nil, err
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("schedule timezone: %w", err)
	}
	return &Daily{
		spec:       cfg.Cron,
		loc:        loc,
		runOnStart: cfg.RunOnStart,
		name:       name,
		task:       task,
		log:        log.Named("scheduler"),
	}, nil
}

// Start blocks until ctx is cancelled, then waits for a running task.
func (d *Daily) Start(ctx context.Context) error {
	clog := cronLogger{d.log}
	c := cron.New(
		cron.WithLocation(d.loc),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	run := func() {
		start := time.Now()
		err := d.task(ctx)
		fields := []zap.Field{
			zap.String("task", d.name),
			zap.Duration("took", time.Since(start)),
			zap.Time("next", d.Next(time.Now())),
		}
		if err != nil {
			d.log.Error("task failed", append(fields, zap.Error(err))...)
			return
		}
		d.log.Info("task done", fields...)
	}

	id, err := c.AddFunc(d.spec, run)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", d.name, err)
	}
	c.Start()
	d.log.Info("scheduled", zap.String("task", d.name), zap.String("cron", d.spec),
		zap.String("tz", d.loc.String()), zap.Time("next", c.Entry(id).Next))

	var wg sync.WaitGroup
	if d.runOnStart {
		// through the wrapped job so an early cron tick is skipped
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Entry(id).WrappedJob.Run()
		}()
	}

	<-ctx.Done()
	<-c.Stop().Done()
	wg.Wait()
	return nil
}

// Next returns the next activation after t.
func (d *Daily) Next(t time.Time) time.Time {
	s, err := cron.ParseStandard(d.spec)
	if err != nil {
		return time.Time{}
	}
	return s.Next(t.In(d.loc))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.l.Debug(msg, zap.Any("kv", kv))
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error(msg, zap.Error(err), zap.Any("kv", kv))
}

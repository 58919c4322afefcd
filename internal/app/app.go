// Package app wires configuration, logging, storage, the external clients,
// and the scheduled jobs into one runnable daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablero/internal/calendar"
	"tablero/internal/config"
	"tablero/internal/holded"
	"tablero/internal/jobs"
	"tablero/internal/monday"
	"tablero/internal/recurring"
	"tablero/internal/runtime/supervisor"
	"tablero/internal/services/scheduler"
	"tablero/internal/slack"
	"tablero/internal/storage"
	logx "tablero/pkg/logx"
)

const (
	JobRecurring = "recurring"
	JobReport    = "report"
	JobCatalog   = "catalog"

	defaultRecurringSchedule = "0 9 1 * *"
	defaultReportSchedule    = "0 8 * * 1"
	defaultCatalogSchedule   = "30 2 * * *"

	defaultRecurringTimeout = 30 * time.Minute
	defaultReportTimeout    = 10 * time.Minute
	defaultCatalogTimeout   = 15 * time.Minute
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	slack *slack.Client
	store storage.Store
	sched *scheduler.Service
	sup   *supervisor.Supervisor

	schedEnabled bool
}

// New loads the config file and builds the full object graph. Nothing is
// scheduled or started yet.
func New(configPath string) (*App, error) {
	mgr := config.NewManager(configPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", configPath, err)
	}

	boot := logx.NewConsole(cfg.Logging.Level)

	slackClient := slack.New(slack.Config{
		Token:      cfg.Slack.Token,
		RatePerSec: cfg.Slack.RatePerSec,
	}, boot)

	logSvc, log := logx.New(logxConfig(cfg.Logging), slackClient)
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	store, err := storage.Open(storageConfig(cfg.Storage), log.With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	a := &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		slack:  slackClient,
		store:  store,
	}

	schedTimeout, err := config.ParseDurationField("scheduler.default_timeout", cfg.Scheduler.DefaultTimeout)
	if err != nil {
		a.closeAll()
		return nil, err
	}
	a.schedEnabled = cfg.Scheduler.Enabled
	a.sched = scheduler.New(scheduler.Config{
		Workers:        cfg.Scheduler.Workers,
		DefaultTimeout: schedTimeout,
		HistorySize:    cfg.Scheduler.HistorySize,
		Timezone:       cfg.Scheduler.Timezone,
	}, log.With(logx.String("comp", "scheduler")))

	if err := a.registerJobs(cfg); err != nil {
		a.closeAll()
		return nil, err
	}
	return a, nil
}

func (a *App) registerJobs(cfg *config.Config) error {
	log := a.log

	cal := calendar.New(calendarConfig(cfg.Calendar), nil, a.store,
		log.With(logx.String("comp", "calendar")))
	boards := monday.New(monday.Config{
		Token:      cfg.Monday.Token,
		BaseURL:    cfg.Monday.BaseURL,
		RatePerSec: cfg.Monday.RatePerSec,
	}, log.With(logx.String("comp", "monday")))
	invoicing := holded.New(holded.Config{
		APIKey:  cfg.Holded.APIKey,
		BaseURL: cfg.Holded.BaseURL,
	}, log.With(logx.String("comp", "holded")))

	var notifier recurring.Notifier
	if a.slack.Enabled() {
		notifier = a.slack
	}

	if jc := cfg.Jobs.Recurring; jc.Enabled {
		if a.store == nil {
			return errors.New("jobs.recurring requires storage (the client/service mirror)")
		}
		orch := recurring.New(recurring.Config{
			SocialTemplateBoard:        jc.SocialTemplateBoard,
			MaintenanceTemplateBoardID: jc.MaintenanceTemplateBoardID,
			DateColumnID:               jc.DateColumnID,
			EstimatedDateColumnID:      jc.EstimatedDateColumnID,
			FrequencyColumnID:          jc.FrequencyColumnID,
			SummaryChannel:             cfg.Slack.DefaultChannel,
		}, recurring.Deps{
			Boards:   boards,
			Calendar: cal,
			Invoices: invoicing,
			Catalog:  a.store,
			Notifier: notifier,
			Audit:    a.store,
			Log:      log.With(logx.String("comp", "recurring")),
		})
		timeout, err := config.ParseDurationOrDefault("jobs.recurring.timeout", jc.Timeout, defaultRecurringTimeout)
		if err != nil {
			return err
		}
		if err := a.sched.Add(JobRecurring, schedule(jc.Schedule, defaultRecurringSchedule), timeout, orch.Run); err != nil {
			return err
		}
	}

	if jc := cfg.Jobs.Report; jc.Enabled {
		channel := jc.Channel
		if channel == "" {
			channel = cfg.Slack.DefaultChannel
		}
		report := jobs.NewReport(jobs.ReportConfig{
			Channel:      channel,
			Boards:       jc.Boards,
			Days:         jc.Days,
			DateColumnID: jc.DateColumnID,
		}, boards, cal, notifier, log.With(logx.String("comp", "report")))
		timeout, err := config.ParseDurationOrDefault("jobs.report.timeout", jc.Timeout, defaultReportTimeout)
		if err != nil {
			return err
		}
		if err := a.sched.Add(JobReport, schedule(jc.Schedule, defaultReportSchedule), timeout, report.Run); err != nil {
			return err
		}
	}

	if jc := cfg.Jobs.Catalog; jc.Enabled {
		if a.store == nil {
			return errors.New("jobs.catalog requires storage")
		}
		cat := jobs.NewCatalog(invoicing, a.store, log.With(logx.String("comp", "catalog")))
		timeout, err := config.ParseDurationOrDefault("jobs.catalog.timeout", jc.Timeout, defaultCatalogTimeout)
		if err != nil {
			return err
		}
		if err := a.sched.Add(JobCatalog, schedule(jc.Schedule, defaultCatalogSchedule), timeout, cat.Run); err != nil {
			return err
		}
	}

	return nil
}

// Start arms the scheduler and the config watcher. It returns immediately;
// Wait blocks until shutdown.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))

	if a.schedEnabled {
		a.sched.Start(a.sup.Context())
	} else {
		a.log.Warn("scheduler disabled, jobs only run via -run-now")
	}

	a.sup.Go("config.watch", a.cfgMgr.Watch)

	updates := a.cfgMgr.Subscribe(1)
	a.sup.Go0("config.apply", func(ctx context.Context) {
		defer a.cfgMgr.Unsubscribe(updates)
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				// Only logging is hot-applied; job wiring needs a restart.
				a.logSvc.Apply(logxConfig(cfg.Logging))
				a.log.Info("logging config applied")
			}
		}
	})

	a.log.Info("started")
	return nil
}

// RunOnce executes one registered job synchronously (the -run-now path).
func (a *App) RunOnce(ctx context.Context, job string) error {
	return a.sched.RunNow(ctx, job)
}

func (a *App) Wait(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Wait(ctx)
}

// Stop shuts down the scheduler and all goroutines, bounded by ctx.
func (a *App) Stop(ctx context.Context) error {
	var err error
	if a.sup != nil {
		a.sched.Stop(ctx)
		err = a.sup.Stop(ctx)
	}
	a.closeAll()
	return err
}

func (a *App) closeAll() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}
	if a.logSvc != nil {
		a.logSvc.Close()
	}
}

func schedule(raw, def string) string {
	if raw == "" {
		return def
	}
	return raw
}

func logxConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
		Slack: logx.SlackConfig{
			Enabled:    c.Slack.Enabled,
			Channel:    c.Slack.Channel,
			MinLevel:   c.Slack.MinLevel,
			RatePerSec: c.Slack.RatePerSec,
		},
	}
}

func storageConfig(c config.StorageConfig) storage.Config {
	busy, err := config.ParseDurationField("storage.busy_timeout", c.BusyTimeout)
	if err != nil {
		busy = 0
	}
	return storage.Config{Path: c.Path, BusyTimeout: busy}
}

func calendarConfig(c config.CalendarConfig) calendar.Config {
	ttl, err := config.ParseDurationField("calendar.cache_ttl", c.CacheTTL)
	if err != nil {
		ttl = 0
	}
	return calendar.Config{
		Country:       c.Country,
		BaseURL:       c.BaseURL,
		MadridOverlay: c.MadridOverlay,
		CacheTTL:      ttl,
	}
}

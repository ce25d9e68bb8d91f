package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mixpanelsteve/mp-rolling/internal/config"
	"github.com/mixpanelsteve/mp-rolling/internal/logger"
	"github.com/mixpanelsteve/mp-rolling/internal/retention"
	"github.com/mixpanelsteve/mp-rolling/internal/storage"
	"github.com/mixpanelsteve/mp-rolling/pkg/jobs"
	"github.com/mixpanelsteve/mp-rolling/pkg/publishers"
)

// Runner is the rolling retention runtime. It runs every enabled job, publishes the
// reports and records them in the ledger, once or on a fixed interval.
type Runner struct {
	cfg      *config.Config
	jobReg   *jobs.Registry
	fanout   *publishers.Fanout
	service  *retention.Service
	interval time.Duration
	log      logger.Logger
	store    storage.Store
}

// NewRunner builds a runner from config files.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("init client: %w", err)
	}

	jobReg, err := jobs.LoadRegistry(cfg.JobsFile)
	if err != nil {
		return nil, fmt.Errorf("load jobs registry: %w", err)
	}
	jobIDs := make([]string, 0)
	for _, j := range jobReg.Enabled() {
		jobIDs = append(jobIDs, j.ID)
	}
	log.InfoObj("jobs registry loaded", "jobs_meta", map[string]any{
		"count":   len(jobIDs),
		"enabled": jobIDs,
	})

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	summaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		summaries = append(summaries, map[string]string{"id": pubCfg.ID, "type": pubCfg.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		ReportTTL:       cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init storage: %w", err), fanout.Close())
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"report_ttl_seconds":       int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	analyzer := retention.NewAnalyzer(client, log, nil)

	return &Runner{
		cfg:      cfg,
		jobReg:   jobReg,
		fanout:   fanout,
		service:  retention.NewService(analyzer, fanout, log, store),
		interval: cfg.RunInterval,
		log:      log,
		store:    store,
	}, nil
}

// Run executes the enabled jobs once, then on every interval tick until ctx is cancelled.
// With no interval the first pass's error is returned.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.service == nil {
		return fmt.Errorf("runner is not initialized")
	}
	defer r.close()

	list := r.jobReg.Enabled()
	if len(list) == 0 {
		r.log.WarnObj("no enabled jobs; nothing to run", "jobs_file", r.cfg.JobsFile)
		return nil
	}

	r.log.InfoObj("runner starting", "runner_state", map[string]any{
		"jobs_count":       len(list),
		"publishers_count": r.fanout.Size(),
		"run_interval":     r.interval.String(),
	})

	err := r.runOnce(ctx, list)
	if r.interval <= 0 {
		return err
	}
	if err != nil {
		r.log.ErrorObj("initial run failed", "error", err.Error())
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoObj("runner loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx, list); err != nil {
				r.log.ErrorObj("scheduled run failed", "error", err.Error())
			}
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, list []jobs.Job) error {
	start := time.Now()
	r.log.InfoObj("run started", "run_meta", map[string]any{
		"jobs_count": len(list),
		"started_at": start.UTC(),
	})
	if err := r.service.Run(ctx, list); err != nil {
		return err
	}
	r.log.InfoObj("run completed", "run_meta", map[string]any{
		"jobs_count": len(list),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func (r *Runner) close() {
	if err := r.fanout.Close(); err != nil {
		r.log.ErrorObj("publishers close failed", "error", err.Error())
	}
	if r.store == nil {
		return
	}
	if err := r.store.Close(); err != nil {
		r.log.ErrorObj("storage close failed", "error", err.Error())
	}
}

package retention

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mixpanelsteve/mp-rolling/internal/domain"
	"github.com/mixpanelsteve/mp-rolling/internal/logger"
	"github.com/mixpanelsteve/mp-rolling/pkg/jobs"
	"github.com/mixpanelsteve/mp-rolling/pkg/mixpanel"
	"github.com/mixpanelsteve/mp-rolling/pkg/publishers"
)

// Service runs retention jobs, publishes their reports and records them in the store.
type Service struct {
	analyzer  *Analyzer
	publisher ReportPublisher
	store     ReportStore
	log       logger.Logger
}

// NewService wires the analyzer with its publisher and report store. publisher and store
// may be nil.
func NewService(analyzer *Analyzer, publisher ReportPublisher, log logger.Logger, store ReportStore) *Service {
	return &Service{
		analyzer:  analyzer,
		publisher: publisher,
		store:     store,
		log:       logger.Ensure(log),
	}
}

// Run executes every job once and joins their errors.
func (s *Service) Run(ctx context.Context, list []jobs.Job) error {
	if s == nil || s.analyzer == nil {
		return fmt.Errorf("retention service is not initialized")
	}
	if len(list) == 0 {
		return fmt.Errorf("no jobs configured")
	}

	errs := s.runAll(ctx, list)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (s *Service) runAll(ctx context.Context, list []jobs.Job) []error {
	errs := make([]error, 0, len(list))
	for _, job := range list {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("run interrupted before job %s: %w", job.ID, err))
			break
		}
		if err := s.runJob(ctx, job); err != nil {
			errs = append(errs, err)
			s.log.ErrorObj("retention job failed", "job_error", map[string]any{
				"job_id": job.ID,
				"error":  err.Error(),
			})
		}
	}
	return errs
}

func (s *Service) runJob(ctx context.Context, job jobs.Job) error {
	today := s.analyzer.Today()
	key := domain.ReportKey(job.ID, today.Format(mixpanel.DateLayout))

	if s.store != nil {
		seen, err := s.store.HasReport(key)
		if err != nil {
			s.log.WarnObj("report ledger lookup failed", "ledger_error", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
		} else if seen {
			s.log.InfoObj("report already published; skipping job", "job_id", job.ID)
			return nil
		}
	}

	report, err := s.analyzer.Analyze(ctx, job, today)
	if err != nil {
		return fmt.Errorf("analyze job %s: %w", job.ID, err)
	}
	key = report.Key()

	var publishErr error
	if s.publisher != nil {
		delivered, err := s.publisher.Publish(ctx, publishers.NewEvent(*report))
		if err != nil {
			publishErr = fmt.Errorf("publish report %s: %w", key, err)
			if delivered == 0 {
				return publishErr
			}
		}
	}

	if s.store != nil {
		payload, err := json.Marshal(report)
		if err != nil {
			return errors.Join(publishErr, fmt.Errorf("marshal report %s: %w", key, err))
		}
		if err := s.store.SaveReport(key, payload); err != nil {
			return errors.Join(publishErr, fmt.Errorf("save report %s: %w", key, err))
		}
	}

	s.log.InfoObj("retention job completed", "job_result", map[string]any{
		"job_id":           job.ID,
		"cohorts":          len(report.Cohorts),
		"retention_points": len(report.Retention),
	})
	return publishErr
}

package publishers

import (
	"context"

	"github.com/mixpanelsteve/mp-rolling/internal/logger"
)

const logDefaultMessage = "retention report"

// logPublisher writes the cohort sizes and churn ratios of each report to the structured log.
type logPublisher struct {
	id      string
	message string
	debug   bool
	log     logger.Logger
}

func newLogPublisher(_ context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	p := &logPublisher{id: cfg.ID, message: logDefaultMessage, log: logger.Ensure(log)}
	if cfg.Log != nil {
		if cfg.Log.Message != "" {
			p.message = cfg.Log.Message
		}
		p.debug = cfg.Log.Level == "debug"
	}
	return p, nil
}

func (l *logPublisher) ID() string   { return l.id }
func (l *logPublisher) Type() string { return TypeLog }

func (l *logPublisher) Publish(_ context.Context, evt Event) error {
	report := evt.Report

	cohorts := make([]map[string]any, 0, len(report.Cohorts))
	for _, c := range report.Cohorts {
		cohorts = append(cohorts, map[string]any{
			"date":    c.Date,
			"size":    c.Size,
			"missing": c.Missing,
		})
	}

	points := make([]map[string]any, 0, len(report.Retention))
	for _, p := range report.Retention {
		point := map[string]any{
			"retention_days":  p.RetentionDays,
			"cohort_date":     p.CohortDate,
			"retention_start": p.RetentionStart,
			"cohort_size":     p.CohortSize,
			"returned":        p.Returned,
			"churned":         p.Churned,
			"missing":         p.Missing,
		}
		if p.HasRate {
			point["churn_rate"] = p.ChurnRate.String()
		}
		points = append(points, point)
	}

	fields := map[string]any{
		"publisher_id": l.id,
		"job_id":       evt.JobID,
		"event":        evt.Event,
		"start":        report.Start,
		"today":        report.Today,
		"cohorts":      cohorts,
		"retention":    points,
	}
	if l.debug {
		l.log.DebugObj(l.message, "report", fields)
	} else {
		l.log.InfoObj(l.message, "report", fields)
	}
	return nil
}

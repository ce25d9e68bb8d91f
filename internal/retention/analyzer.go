package retention

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mixpanelsteve/mp-rolling/internal/domain"
	"github.com/mixpanelsteve/mp-rolling/internal/logger"
	"github.com/mixpanelsteve/mp-rolling/pkg/jobs"
	"github.com/mixpanelsteve/mp-rolling/pkg/mixpanel"
	"github.com/shopspring/decimal"
)

const (
	segmentationType = "unique"
	churnRatePlaces  = 4
)

var segmentationPath = mixpanel.MethodPath{"segmentation"}

// Analyzer computes cohort sizes and churn with segmentation queries.
type Analyzer struct {
	client Requester
	log    logger.Logger
	now    func() time.Time
}

// NewAnalyzer builds an analyzer. A nil now uses time.Now.
func NewAnalyzer(client Requester, log logger.Logger, now func() time.Time) *Analyzer {
	if now == nil {
		now = time.Now
	}
	return &Analyzer{client: client, log: logger.Ensure(log), now: now}
}

// Today returns the current UTC date at midnight.
func (a *Analyzer) Today() time.Time {
	y, m, d := a.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Analyze runs job against the remote service for the window ending at today (a UTC date as
// returned by Today). Missing counts are recorded on the report; transport and decode failures
// abort the run.
func (a *Analyzer) Analyze(ctx context.Context, job jobs.Job, today time.Time) (*domain.Report, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("retention analyzer is not initialized")
	}

	start := job.Start()
	y, m, d := today.UTC().Date()
	today = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	span := daysBetween(start, today)

	report := &domain.Report{
		JobID:   job.ID,
		Event:   job.Event,
		Start:   start.Format(mixpanel.DateLayout),
		Today:   today.Format(mixpanel.DateLayout),
		Cohorts: make([]domain.Cohort, 0, max(span, 0)),
	}

	cohorts := make(map[string]domain.Cohort, max(span, 0))
	for day := 0; day < span; day++ {
		cohortDate := start.AddDate(0, 0, day)
		cohort, err := a.cohortSize(ctx, job, cohortDate, today)
		if err != nil {
			return nil, err
		}
		cohorts[cohort.Date] = cohort
		report.Cohorts = append(report.Cohorts, cohort)
	}

	for _, n := range job.RetentionDays {
		for day := 0; day < span-n; day++ {
			cohortDate := start.AddDate(0, 0, day)
			point, err := a.retentionPoint(ctx, job, cohorts[cohortDate.Format(mixpanel.DateLayout)], cohortDate, n, today)
			if err != nil {
				return nil, err
			}
			report.Retention = append(report.Retention, point)
		}
	}

	report.GeneratedAt = a.now().UTC()
	return report, nil
}

func (a *Analyzer) cohortSize(ctx context.Context, job jobs.Job, cohortDate, today time.Time) (domain.Cohort, error) {
	date := cohortDate.Format(mixpanel.DateLayout)
	params := segmentationParams(job, cohortDate, today, cohortWhere(date, job.CohortProperties))

	resp, err := a.client.Request(ctx, segmentationPath, params)
	if err != nil {
		return domain.Cohort{}, fmt.Errorf("query cohort %s of job %s: %w", date, job.ID, err)
	}

	size, err := lookupCount(resp, job.Event, date)
	if err != nil {
		if !errors.Is(err, ErrMissingCohortData) {
			return domain.Cohort{}, err
		}
		a.log.WarnObj("cohort size missing", "cohort_missing", map[string]any{
			"job_id": job.ID,
			"date":   date,
			"error":  err.Error(),
		})
		return domain.Cohort{Date: date, Missing: true}, nil
	}

	a.log.DebugObj("cohort size collected", "cohort", map[string]any{
		"job_id": job.ID,
		"date":   date,
		"size":   size,
	})
	return domain.Cohort{Date: date, Size: size}, nil
}

func (a *Analyzer) retentionPoint(ctx context.Context, job jobs.Job, cohort domain.Cohort, cohortDate time.Time, n int, today time.Time) (domain.RetentionPoint, error) {
	date := cohortDate.Format(mixpanel.DateLayout)
	retentionStart := cohortDate.AddDate(0, 0, n)
	point := domain.RetentionPoint{
		RetentionDays:  n,
		CohortDate:     date,
		RetentionStart: retentionStart.Format(mixpanel.DateLayout),
		CohortSize:     cohort.Size,
	}
	if cohort.Missing || cohort.Date == "" {
		point.Missing = true
		return point, nil
	}

	params := segmentationParams(job, retentionStart, today, returnWhere(date, job.ReturnProperty))
	resp, err := a.client.Request(ctx, segmentationPath, params)
	if err != nil {
		return point, fmt.Errorf("query %d day retention of cohort %s for job %s: %w", n, date, job.ID, err)
	}

	returned, err := lookupCount(resp, job.Event, point.RetentionStart)
	if err != nil {
		if !errors.Is(err, ErrMissingCohortData) {
			return point, err
		}
		a.log.WarnObj("retention count missing", "retention_missing", map[string]any{
			"job_id":          job.ID,
			"cohort_date":     date,
			"retention_start": point.RetentionStart,
			"error":           err.Error(),
		})
		point.Missing = true
		return point, nil
	}

	point.Returned = returned
	point.Churned = cohort.Size - returned
	if cohort.Size != 0 {
		point.ChurnRate = decimal.NewFromInt(point.Churned).
			DivRound(decimal.NewFromInt(cohort.Size), churnRatePlaces)
		point.HasRate = true
	}
	return point, nil
}

// segmentationParams queries unique counts of job.Event from `from` through today as a
// single bucket.
func segmentationParams(job jobs.Job, from, today time.Time, where string) mixpanel.Params {
	params := mixpanel.Params{
		"event":     job.Event,
		"from_date": from,
		"to_date":   today,
		"interval":  daysBetween(from, today) + 1,
		"type":      segmentationType,
		"where":     where,
	}
	if job.Unit != "" {
		params["unit"] = job.Unit
	}
	return params
}

func cohortWhere(date string, properties []string) string {
	clauses := make([]string, 0, len(properties))
	for _, p := range properties {
		clauses = append(clauses, propertyClause(date, p))
	}
	return strings.Join(clauses, " or ")
}

func returnWhere(date, property string) string {
	return propertyClause(date, property)
}

func propertyClause(date, property string) string {
	return fmt.Sprintf(`"%s" in string(properties["%s"])`, date, property)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

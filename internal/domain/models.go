// Package domain holds the retention report models shared by the analysis, storage and sinks.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cohort is the number of unique users that started on Date.
type Cohort struct {
	Date    string `json:"date"`
	Size    int64  `json:"size"`
	Missing bool   `json:"missing,omitempty"`
}

// RetentionPoint measures how many users of a cohort came back after RetentionDays.
type RetentionPoint struct {
	RetentionDays  int             `json:"retention_days"`
	CohortDate     string          `json:"cohort_date"`
	RetentionStart string          `json:"retention_start"`
	CohortSize     int64           `json:"cohort_size"`
	Returned       int64           `json:"returned"`
	Churned        int64           `json:"churned"`
	ChurnRate      decimal.Decimal `json:"churn_rate"`
	// HasRate is false when the cohort is empty.
	HasRate bool `json:"has_rate"`
	Missing bool `json:"missing,omitempty"`
}

// Report is the output of one retention analysis run.
type Report struct {
	JobID       string           `json:"job_id"`
	Event       string           `json:"event"`
	Start       string           `json:"start"`
	Today       string           `json:"today"`
	Cohorts     []Cohort         `json:"cohorts"`
	Retention   []RetentionPoint `json:"retention"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Key identifies the report of a job for a given day.
func (r Report) Key() string {
	return ReportKey(r.JobID, r.Today)
}

// ReportKey builds the ledger key of a job run for today.
func ReportKey(jobID, today string) string {
	return jobID + "/" + today
}

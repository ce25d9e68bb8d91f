// Package jobs loads retention job definitions from YAML/JSON files.
package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mixpanelsteve/mp-rolling/pkg/mixpanel"
	"gopkg.in/yaml.v3"
)

var (
	defaultRetentionDays    = []int{2, 7, 30}
	defaultCohortProperties = []string{"Signup date", "U:Created"}
	defaultReturnProperty   = "Signup date"
)

// Job describes one cohort/retention analysis.
type Job struct {
	ID               string   `json:"id" yaml:"id"`
	Event            string   `json:"event" yaml:"event"`
	StartDate        string   `json:"start_date" yaml:"start_date"`
	RetentionDays    []int    `json:"retention_days" yaml:"retention_days"`
	CohortProperties []string `json:"cohort_properties" yaml:"cohort_properties"`
	ReturnProperty   string   `json:"return_property" yaml:"return_property"`
	Unit             string   `json:"unit" yaml:"unit"`
	Enabled          *bool    `json:"enabled" yaml:"enabled"`
}

type configFile struct {
	Jobs []Job `json:"jobs" yaml:"jobs"`
}

// Registry materializes job definitions loaded from config files.
type Registry struct {
	mu   sync.RWMutex
	jobs []Job
	idx  map[string]Job
}

// LoadRegistry loads the job registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("jobs file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open jobs file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}

	parsed, err := parseJobs(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return NewRegistry(parsed.Jobs)
}

// NewRegistry sanitizes and validates jobs and indexes them by id.
func NewRegistry(jobs []Job) (*Registry, error) {
	if len(jobs) == 0 {
		return nil, errors.New("jobs file contains no jobs entries")
	}

	reg := &Registry{
		jobs: make([]Job, len(jobs)),
		idx:  make(map[string]Job, len(jobs)),
	}
	for i := range jobs {
		job := sanitizeJob(jobs[i])
		if err := validateJob(job); err != nil {
			return nil, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if _, exists := reg.idx[job.ID]; exists {
			return nil, fmt.Errorf("duplicate job id %q", job.ID)
		}
		reg.jobs[i] = job
		reg.idx[job.ID] = job
	}
	return reg, nil
}

func parseJobs(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var file configFile
		if err := d.fn(data, &file); err == nil {
			return file, nil
		}
	}

	return configFile{}, errors.New("jobs file format not recognized (expected YAML or JSON)")
}

func sanitizeJob(job Job) Job {
	job.ID = strings.TrimSpace(job.ID)
	job.Event = strings.TrimSpace(job.Event)
	job.StartDate = strings.TrimSpace(job.StartDate)
	job.ReturnProperty = strings.TrimSpace(job.ReturnProperty)
	job.Unit = strings.ToLower(strings.TrimSpace(job.Unit))

	if len(job.RetentionDays) == 0 {
		job.RetentionDays = append([]int(nil), defaultRetentionDays...)
	}

	props := make([]string, 0, len(job.CohortProperties))
	for _, p := range job.CohortProperties {
		if p = strings.TrimSpace(p); p != "" {
			props = append(props, p)
		}
	}
	if len(props) == 0 {
		props = append(props, defaultCohortProperties...)
	}
	job.CohortProperties = props

	if job.ReturnProperty == "" {
		job.ReturnProperty = defaultReturnProperty
	}
	if job.Enabled == nil {
		def := true
		job.Enabled = &def
	}
	return job
}

func validateJob(job Job) error {
	if job.ID == "" {
		return errors.New("id is required")
	}
	if job.Event == "" {
		return fmt.Errorf("event is required for job %q", job.ID)
	}
	if job.StartDate == "" {
		return fmt.Errorf("start_date is required for job %q", job.ID)
	}
	if _, err := time.Parse(mixpanel.DateLayout, job.StartDate); err != nil {
		return fmt.Errorf("start_date of job %q must be YYYY-MM-DD: %w", job.ID, err)
	}
	for _, d := range job.RetentionDays {
		if d <= 0 {
			return fmt.Errorf("retention_days of job %q must be positive, got %d", job.ID, d)
		}
	}
	return nil
}

// Start returns the parsed start date in UTC.
func (j Job) Start() time.Time {
	t, _ := time.Parse(mixpanel.DateLayout, j.StartDate)
	return t
}

// EnabledValue returns enabled flag defaulting to true.
func (j Job) EnabledValue() bool {
	if j.Enabled == nil {
		return true
	}
	return *j.Enabled
}

// ByID returns the job by id.
func (r *Registry) ByID(id string) (Job, bool) {
	if r == nil {
		return Job{}, false
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Job{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.idx[id]
	return job, ok
}

// All returns all configured jobs.
func (r *Registry) All() []Job {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// Enabled returns jobs that are enabled.
func (r *Registry) Enabled() []Job {
	all := r.All()
	out := make([]Job, 0, len(all))
	for _, job := range all {
		if job.EnabledValue() {
			out = append(out, job)
		}
	}
	return out
}

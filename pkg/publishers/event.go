package publishers

import (
	"time"

	"github.com/mixpanelsteve/mp-rolling/internal/domain"
)

// Event is the envelope delivered to every sink.
type Event struct {
	JobID       string        `json:"job_id"`
	Event       string        `json:"event"`
	Report      domain.Report `json:"report"`
	PublishedAt time.Time     `json:"published_at"`
}

// NewEvent wraps a finished retention report.
func NewEvent(report domain.Report) Event {
	return Event{
		JobID:       report.JobID,
		Event:       report.Event,
		Report:      report,
		PublishedAt: time.Now().UTC(),
	}
}

// attributes are attached to queue and topic messages so consumers can filter by job.
func (e Event) attributes() map[string]string {
	return map[string]string{attrJobID: e.JobID}
}

const attrJobID = "job_id"

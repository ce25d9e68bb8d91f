package publishers

import "github.com/mixpanelsteve/mp-rolling/internal/domain"

func testEvent() Event {
	return NewEvent(domain.Report{
		JobID:   "games",
		Event:   "Game Started",
		Start:   "2014-03-15",
		Today:   "2014-03-20",
		Cohorts: []domain.Cohort{{Date: "2014-03-15", Size: 10}},
	})
}

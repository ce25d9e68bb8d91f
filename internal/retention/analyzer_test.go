package retention

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mixpanelsteve/mp-rolling/pkg/jobs"
	"github.com/mixpanelsteve/mp-rolling/pkg/mixpanel"
)

// fakeRequester answers segmentation queries from canned counts keyed by from_date.
type fakeRequester struct {
	mu      sync.Mutex
	cohorts map[string]int
	returns map[string]int
	err     error
	calls   []mixpanel.Params
}

func (f *fakeRequester) Request(_ context.Context, path mixpanel.MethodPath, params mixpanel.Params) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	if path.String() != "segmentation" {
		return nil, errors.New("unexpected path " + path.String())
	}

	from := params["from_date"].(time.Time).Format(mixpanel.DateLayout)
	counts := f.returns
	if strings.Contains(params["where"].(string), " or ") {
		counts = f.cohorts
	}

	values := map[string]any{}
	if n, ok := counts[from]; ok {
		values[from] = float64(n)
	}
	return map[string]any{
		"data": map[string]any{
			"values": map[string]any{params["event"].(string): values},
		},
	}, nil
}

func testJob() jobs.Job {
	return jobs.Job{
		ID:               "games",
		Event:            "Game Started",
		StartDate:        "2014-03-15",
		RetentionDays:    []int{2},
		CohortProperties: []string{"Signup date", "U:Created"},
		ReturnProperty:   "Signup date",
	}
}

func fixedNow() time.Time { return time.Date(2014, 3, 20, 12, 30, 0, 0, time.UTC) }

func TestAnalyzeComputesCohortsAndChurn(t *testing.T) {
	client := &fakeRequester{
		cohorts: map[string]int{"2014-03-15": 10, "2014-03-17": 0, "2014-03-18": 7, "2014-03-19": 5},
		returns: map[string]int{"2014-03-17": 6, "2014-03-19": 0},
	}
	a := NewAnalyzer(client, nil, fixedNow)

	report, err := a.Analyze(context.Background(), testJob(), fixedNow())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if report.Today != "2014-03-20" || report.Start != "2014-03-15" {
		t.Fatalf("unexpected report window %s..%s", report.Start, report.Today)
	}
	if len(report.Cohorts) != 5 {
		t.Fatalf("expected 5 cohorts, got %d", len(report.Cohorts))
	}
	if c := report.Cohorts[0]; c.Date != "2014-03-15" || c.Size != 10 || c.Missing {
		t.Fatalf("cohort[0] = %+v", c)
	}
	if c := report.Cohorts[1]; !c.Missing {
		t.Fatalf("cohort[1] should be missing: %+v", c)
	}

	if len(report.Retention) != 3 {
		t.Fatalf("expected 3 retention points, got %d", len(report.Retention))
	}
	first := report.Retention[0]
	if first.RetentionStart != "2014-03-17" || first.Returned != 6 || first.Churned != 4 {
		t.Fatalf("retention[0] = %+v", first)
	}
	if !first.HasRate || first.ChurnRate.String() != "0.4" {
		t.Fatalf("churn rate = %s has=%v", first.ChurnRate, first.HasRate)
	}
	if !report.Retention[1].Missing {
		t.Fatalf("retention[1] should be missing: %+v", report.Retention[1])
	}
	if third := report.Retention[2]; third.HasRate || third.Missing {
		t.Fatalf("empty cohort should have no rate: %+v", third)
	}

	// five cohort queries, two retention queries; the missing cohort is not queried again
	if len(client.calls) != 7 {
		t.Fatalf("expected 7 requests, got %d", len(client.calls))
	}
}

func TestAnalyzeBuildsSegmentationParams(t *testing.T) {
	client := &fakeRequester{
		cohorts: map[string]int{"2014-03-15": 10},
		returns: map[string]int{"2014-03-17": 5},
	}
	job := testJob()
	job.Unit = "day"
	a := NewAnalyzer(client, nil, fixedNow)

	if _, err := a.Analyze(context.Background(), job, fixedNow()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	cohort := client.calls[0]
	wantWhere := `"2014-03-15" in string(properties["Signup date"]) or "2014-03-15" in string(properties["U:Created"])`
	if cohort["where"] != wantWhere {
		t.Fatalf("cohort where = %v", cohort["where"])
	}
	if cohort["interval"] != 6 || cohort["type"] != "unique" || cohort["unit"] != "day" {
		t.Fatalf("cohort params = %v", cohort)
	}
	if to := cohort["to_date"].(time.Time); to.Format(mixpanel.DateLayout) != "2014-03-20" {
		t.Fatalf("to_date = %v", to)
	}

	ret := client.calls[5]
	if ret["where"] != `"2014-03-15" in string(properties["Signup date"])` {
		t.Fatalf("retention where = %v", ret["where"])
	}
	if ret["interval"] != 4 {
		t.Fatalf("retention interval = %v", ret["interval"])
	}
}

func TestAnalyzeAbortsOnTransportError(t *testing.T) {
	boom := &mixpanel.TransportError{URL: "http://mixpanel.com/api/2.0/segmentation/", Err: errors.New("timeout")}
	a := NewAnalyzer(&fakeRequester{err: boom}, nil, fixedNow)

	_, err := a.Analyze(context.Background(), testJob(), fixedNow())
	if !mixpanel.IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if errors.Is(err, ErrMissingCohortData) {
		t.Fatalf("transport error must not look like missing data")
	}
}

func TestAnalyzeFutureStartYieldsEmptyReport(t *testing.T) {
	job := testJob()
	job.StartDate = "2014-04-01"
	client := &fakeRequester{}
	report, err := NewAnalyzer(client, nil, fixedNow).Analyze(context.Background(), job, fixedNow())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Cohorts) != 0 || len(report.Retention) != 0 || len(client.calls) != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestLookupCount(t *testing.T) {
	resp := map[string]any{"data": map[string]any{"values": map[string]any{"Login": map[string]any{
		"2024-01-01": float64(3),
		"2024-01-02": "three",
	}}}}

	if n, err := lookupCount(resp, "Login", "2024-01-01"); err != nil || n != 3 {
		t.Fatalf("lookupCount = %d, %v", n, err)
	}

	for _, tc := range []struct {
		resp  any
		event string
		date  string
	}{
		{resp, "Login", "2024-01-03"},
		{resp, "Login", "2024-01-02"},
		{resp, "Signup", "2024-01-01"},
		{map[string]any{"error": "bad"}, "Login", "2024-01-01"},
		{[]any{}, "Login", "2024-01-01"},
	} {
		_, err := lookupCount(tc.resp, tc.event, tc.date)
		if !errors.Is(err, ErrMissingCohortData) {
			t.Fatalf("%s/%s: expected ErrMissingCohortData, got %v", tc.event, tc.date, err)
		}
		var missing *MissingDataError
		if !errors.As(err, &missing) || missing.Date != tc.date {
			t.Fatalf("expected MissingDataError for %s, got %v", tc.date, err)
		}
	}
}

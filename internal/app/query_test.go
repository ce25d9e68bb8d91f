package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/mixpanelsteve/mp-rolling/internal/config"
	"github.com/mixpanelsteve/mp-rolling/pkg/httpclient"
	"github.com/mixpanelsteve/mp-rolling/pkg/mixpanel"
)

type fakeResponse struct {
	body   string
	status int
}

func (f fakeResponse) Body() []byte    { return []byte(f.body) }
func (f fakeResponse) StatusCode() int { return f.status }

type fakeHTTPClient struct {
	resp fakeResponse
	urls []string
}

func (f *fakeHTTPClient) Get(_ context.Context, u string, _ map[string]string) (httpclient.Response, error) {
	f.urls = append(f.urls, u)
	return f.resp, nil
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:        "mp-rolling",
		APIKey:         "k",
		APISecret:      "s",
		APIVersion:     "2.0",
		RequestTimeout: time.Second,
	}
}

func TestParseQueryRequest(t *testing.T) {
	req, err := ParseQueryRequest("/events/properties/", `{"event":"Login","limit":10,"ids":[1,2]}`, "")
	if err != nil {
		t.Fatalf("ParseQueryRequest: %v", err)
	}
	if req.Path.String() != "events/properties" {
		t.Fatalf("path = %s", req.Path)
	}
	if n, ok := req.Params["limit"].(json.Number); !ok || n.String() != "10" {
		t.Fatalf("limit should stay a json number, got %#v", req.Params["limit"])
	}

	if _, err := ParseQueryRequest("events", `[1]`, ""); err == nil {
		t.Fatalf("expected error for non-object params")
	}
}

func TestQueryRunPrintsResult(t *testing.T) {
	transport := &fakeHTTPClient{resp: fakeResponse{body: `{"data":{"values":{"Login":{"2024-01-01":3}}}}`, status: http.StatusOK}}
	q, err := NewQuery(testConfig(), nil, mixpanel.WithHTTPClient(transport))
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}

	req, err := ParseQueryRequest("segmentation", `{"event":"Login","interval":1}`, "")
	if err != nil {
		t.Fatalf("ParseQueryRequest: %v", err)
	}

	var out bytes.Buffer
	if err := q.Run(context.Background(), req, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), `"Login": {`) {
		t.Fatalf("unexpected output %s", out.String())
	}

	if len(transport.urls) != 1 {
		t.Fatalf("expected one request, got %d", len(transport.urls))
	}
	u, err := url.Parse(transport.urls[0])
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Path != "/api/2.0/segmentation/" {
		t.Fatalf("path = %s", u.Path)
	}
	if q := u.Query(); q.Get("interval") != "1" || q.Get("api_key") != "k" || q.Get("sig") == "" {
		t.Fatalf("query = %v", q)
	}
}

func TestQueryRunSurfacesTransportErrors(t *testing.T) {
	transport := &fakeHTTPClient{resp: fakeResponse{body: "denied", status: http.StatusUnauthorized}}
	q, err := NewQuery(testConfig(), nil, mixpanel.WithHTTPClient(transport))
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}

	err = q.Run(context.Background(), QueryRequest{Path: mixpanel.MethodPath{"events"}}, &bytes.Buffer{})
	var te *mixpanel.TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestNewQueryRequiresCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.APISecret = ""
	if _, err := NewQuery(cfg, nil); err == nil {
		t.Fatalf("expected credentials error")
	}
}

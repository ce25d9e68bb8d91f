package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mixpanelsteve/mp-rolling/internal/config"
	"github.com/mixpanelsteve/mp-rolling/internal/logger"
	"github.com/mixpanelsteve/mp-rolling/pkg/mixpanel"
)

// QueryRequest is one signed call issued from the command line.
type QueryRequest struct {
	Path   mixpanel.MethodPath
	Params mixpanel.Params
	Format string
}

// ParseQueryRequest turns a slash separated method path and a JSON object of parameters
// into a request. JSON numbers are kept verbatim.
func ParseQueryRequest(path, rawParams, format string) (QueryRequest, error) {
	req := QueryRequest{Format: strings.TrimSpace(format)}
	for _, seg := range strings.Split(strings.Trim(strings.TrimSpace(path), "/"), "/") {
		req.Path = append(req.Path, seg)
	}

	req.Params = mixpanel.Params{}
	if raw := strings.TrimSpace(rawParams); raw != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&req.Params); err != nil {
			return QueryRequest{}, fmt.Errorf("decode params: %w", err)
		}
	}
	return req, nil
}

// Query issues single signed requests and prints their decoded results.
type Query struct {
	client *mixpanel.Client
	log    logger.Logger
}

// NewQuery builds a query runner. opts override the client defaults taken from cfg.
func NewQuery(cfg *config.Config, log logger.Logger, opts ...mixpanel.Option) (*Query, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	client, err := newClient(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init client: %w", err)
	}
	return &Query{client: client, log: logger.Ensure(log)}, nil
}

// Run sends req and writes the indented JSON result to w.
func (q *Query) Run(ctx context.Context, req QueryRequest, w io.Writer) error {
	format := req.Format
	if format == "" {
		format = mixpanel.DefaultFormat
	}

	q.log.DebugObj("query sending", "query", map[string]any{
		"path":   req.Path.String(),
		"params": len(req.Params),
		"format": format,
	})
	result, err := q.client.RequestFormat(ctx, req.Path, req.Params, format)
	if err != nil {
		q.log.ErrorObj("query failed", "query_error", map[string]any{
			"path":  req.Path.String(),
			"error": err.Error(),
		})
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

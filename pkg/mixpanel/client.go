package mixpanel

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mixpanelsteve/mp-rolling/pkg/httpclient"
)

const (
	// Endpoint is the base URL of the data export API.
	Endpoint = "http://mixpanel.com/api"
	// DefaultVersion is the API version used unless WithVersion is given.
	DefaultVersion = "2.0"
	// DefaultFormat is the response format requested by Request.
	DefaultFormat = "json"
	// ExpireWindow is how long a signed request stays valid server-side.
	ExpireWindow = 600 * time.Second

	defaultTimeout = 30 * time.Second
)

// Credentials identify the project. The secret is only used to sign and is never sent.
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"-"`
}

// Client signs and sends requests. It holds only immutable state and is safe for
// concurrent use when its transport is.
type Client struct {
	creds    Credentials
	endpoint string
	version  string
	http     httpclient.Client
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithVersion overrides the API version segment of the URL.
func WithVersion(version string) Option {
	return func(c *Client) {
		if version != "" {
			c.version = version
		}
	}
}

// WithHTTPClient sets the transport used to send requests.
func WithHTTPClient(client httpclient.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithClock sets the time source used to compute expire.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New returns a client for the given credentials. Without WithHTTPClient it sends requests
// with a resty client and a 30 second timeout.
func New(creds Credentials, opts ...Option) *Client {
	c := &Client{
		creds:    creds,
		endpoint: Endpoint,
		version:  DefaultVersion,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.NewRestyClient(defaultTimeout)
	}
	return c
}

// APIKey returns the public identifier the client signs with.
func (c *Client) APIKey() string { return c.creds.APIKey }

// Version returns the API version the client targets.
func (c *Client) Version() string { return c.version }

// Request sends a signed GET for path and returns the decoded JSON body.
func (c *Client) Request(ctx context.Context, path MethodPath, params Params) (any, error) {
	return c.RequestFormat(ctx, path, params, DefaultFormat)
}

// RequestFormat is Request with an explicit format parameter.
func (c *Client) RequestFormat(ctx context.Context, path MethodPath, params Params, format string) (any, error) {
	req, err := c.Build(path, params, format)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// Build signs params for path without sending anything. The caller's map is not modified.
func (c *Client) Build(path MethodPath, params Params, format string) (*SignedRequest, error) {
	if err := path.validate(); err != nil {
		return nil, err
	}
	if format == "" {
		format = DefaultFormat
	}

	caller := make(Params, len(params))
	for k, v := range params {
		switch k {
		case ParamSig, ParamAPIKey, ParamExpire, ParamFormat:
			continue
		}
		caller[k] = v
	}

	values, err := caller.normalize()
	if err != nil {
		return nil, err
	}

	expire := c.now().Add(ExpireWindow)
	values[ParamAPIKey] = c.creds.APIKey
	values[ParamExpire] = strconv.FormatInt(expire.Unix(), 10)
	values[ParamFormat] = format
	values[ParamSig] = ComputeSignature(values, c.creds.APISecret)

	return &SignedRequest{
		Endpoint: c.endpoint,
		Version:  c.version,
		Path:     append(MethodPath(nil), path...),
		Params:   values,
		Expire:   time.Unix(expire.Unix(), 0),
	}, nil
}

// Do sends a signed request and decodes its JSON body.
func (c *Client) Do(ctx context.Context, req *SignedRequest) (any, error) {
	u := req.URL()

	resp, err := c.http.Get(ctx, u, nil)
	if err != nil {
		return nil, &TransportError{URL: u, Err: err}
	}

	body := resp.Body()
	if code := resp.StatusCode(); code < http.StatusOK || code >= http.StatusMultipleChoices {
		return nil, &TransportError{URL: u, StatusCode: code, Body: body}
	}

	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &DecodeError{Body: body, Err: err}
	}
	return out, nil
}

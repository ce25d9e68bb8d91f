package mixpanel

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Names of the parameters injected into every request.
const (
	ParamAPIKey = "api_key"
	ParamExpire = "expire"
	ParamFormat = "format"
	ParamSig    = "sig"
)

// MethodPath identifies a remote resource, e.g. {"events", "properties", "values"}.
type MethodPath []string

func (p MethodPath) validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvalidMethodPath)
	}
	for i, seg := range p {
		if seg == "" {
			return fmt.Errorf("%w: segment %d is empty", ErrInvalidMethodPath, i)
		}
	}
	return nil
}

// String joins the segments with "/".
func (p MethodPath) String() string {
	return strings.Join(p, "/")
}

// SignedRequest is a fully materialized request. It is built fresh for every call and must
// not be reused once Expire has passed.
type SignedRequest struct {
	Endpoint string
	Version  string
	Path     MethodPath
	// Params holds the normalized values, including api_key, expire, format and sig.
	Params map[string]string
	Expire time.Time
}

// URL returns <endpoint>/<version>/<path>/?<query>.
func (r *SignedRequest) URL() string {
	segments := make([]string, 0, len(r.Path)+2)
	segments = append(segments, strings.TrimSuffix(r.Endpoint, "/"), r.Version)
	segments = append(segments, r.Path...)
	return strings.Join(segments, "/") + "/?" + r.Query()
}

// Query url-encodes the parameters. sig is always the last pair.
func (r *SignedRequest) Query() string {
	values := make(url.Values, len(r.Params))
	for k, v := range r.Params {
		if k == ParamSig {
			continue
		}
		values.Set(k, v)
	}

	q := values.Encode()
	if sig, ok := r.Params[ParamSig]; ok {
		if q != "" {
			q += "&"
		}
		q += ParamSig + "=" + url.QueryEscape(sig)
	}
	return q
}

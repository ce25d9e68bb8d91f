package httpclient

import "context"

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// Client abstracts HTTP calls so callers can inject fakes or different transports.
// Implementations must be safe for concurrent use.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

package publishers

import "context"

// Publisher sends report events to a downstream sink (SQS, SNS, Pub/Sub, HTTP).
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// closer is implemented by publishers holding long lived clients.
type closer interface {
	Close() error
}

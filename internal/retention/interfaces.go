package retention

import (
	"context"

	"github.com/mixpanelsteve/mp-rolling/pkg/mixpanel"
	"github.com/mixpanelsteve/mp-rolling/pkg/publishers"
)

// Requester is the only way the analysis reaches the remote service.
type Requester interface {
	Request(ctx context.Context, path mixpanel.MethodPath, params mixpanel.Params) (any, error)
}

// ReportPublisher publishes finished reports downstream.
type ReportPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// ReportStore remembers which job runs were already published.
type ReportStore interface {
	HasReport(key string) (bool, error)
	SaveReport(key string, payload []byte) error
}

package app

import (
	"github.com/mixpanelsteve/mp-rolling/internal/config"
	"github.com/mixpanelsteve/mp-rolling/pkg/httpclient"
	"github.com/mixpanelsteve/mp-rolling/pkg/mixpanel"
)

// newClient builds the signed client from config. opts are applied after the defaults.
func newClient(cfg *config.Config, opts ...mixpanel.Option) (*mixpanel.Client, error) {
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	base := []mixpanel.Option{
		mixpanel.WithVersion(cfg.APIVersion),
		mixpanel.WithHTTPClient(httpclient.NewRestyClientWithOptions(httpclient.Options{
			Timeout:   cfg.RequestTimeout,
			UserAgent: cfg.AppName + "/1.0",
		})),
	}
	return mixpanel.New(mixpanel.Credentials{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}, append(base, opts...)...), nil
}

// Package google fetches calendar events and spreadsheets on behalf of a
// user holding a Google OAuth access token.
package google

import (
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// Options are shared by the calendar and sheets clients
type Options struct {
	// Endpoint overrides the API root, used by tests against a fake server.
	Endpoint string
	// HTTPClient is the base transport; the bearer token is layered on top.
	HTTPClient *http.Client
}

func (o Options) clientOptions(accessToken string) []option.ClientOption {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})

	var opts []option.ClientOption
	if o.HTTPClient != nil {
		base := o.HTTPClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		opts = append(opts, option.WithHTTPClient(&http.Client{
			Timeout:   o.HTTPClient.Timeout,
			Transport: &oauth2.Transport{Source: ts, Base: base},
		}))
	} else {
		opts = append(opts, option.WithTokenSource(ts))
	}
	if o.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(o.Endpoint))
	}
	return opts
}

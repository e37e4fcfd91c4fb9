// package services defines clients for the snippet backend's HTTP API
package services

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/snipx/internal/shared"
)

// Client bundles the services that share one credential transport.
type Client struct {
	API      *APIService
	Auth     *AuthService
	Snippets *SnippetService
}

// NewClient builds the API, auth and snippet services for cfg.
//
// httpClient may be nil; its timeout falls back to cfg.Timeout when unset.
func NewClient(cfg shared.APIConfig, httpClient *http.Client, logger *log.Logger) (*Client, error) {
	creds, err := NewCredentialTransport(cfg)
	if err != nil {
		return nil, err
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	} else if httpClient.Timeout == 0 {
		c := *httpClient
		c.Timeout = cfg.Timeout
		httpClient = &c
	}

	api := NewAPIService(APIOpts{
		BaseURL:     cfg.BaseURL,
		UserAgent:   cfg.UserAgent,
		HTTPClient:  httpClient,
		Credentials: creds,
		Logger:      logger,
	})

	return &Client{
		API:      api,
		Auth:     NewAuthService(api, cfg.Paths),
		Snippets: NewSnippetService(api, cfg.Paths),
	}, nil
}

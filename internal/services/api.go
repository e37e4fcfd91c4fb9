// API service for making HTTP requests to the snippet backend
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/snipx/internal/shared"
)

const defaultBaseURL = "http://127.0.0.1:8000"

// APIService sends requests to the snippet backend.
//
// Requests carry whatever credential the [CredentialTransport] currently holds.
// Redirects are never followed: a 3xx is returned to the caller as-is.
type APIService struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	creds      CredentialTransport
	logger     *log.Logger
}

// APIOpts configures [NewAPIService].
type APIOpts struct {
	BaseURL     string
	UserAgent   string
	HTTPClient  *http.Client
	Credentials CredentialTransport
	Logger      *log.Logger
}

// NewAPIService creates an API service for the backend at opts.BaseURL.
//
// The supplied HTTP client is copied, never mutated; nil means [http.DefaultClient].
func NewAPIService(opts APIOpts) *APIService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	a := &APIService{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		creds:     opts.Credentials,
		logger:    opts.Logger,
	}
	a.httpClient = a.buildClient(opts.HTTPClient)
	return a
}

func (a *APIService) buildClient(base *http.Client) *http.Client {
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	if a.creds != nil {
		rt = a.creds.Wrap(rt)
	}

	return &http.Client{
		Transport: rt,
		Timeout:   base.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Anonymous returns a copy of the service that sends no credentials.
func (a *APIService) Anonymous() *APIService {
	c := *a
	c.creds = nil
	c.httpClient = &http.Client{
		Transport:     unwrap(a.httpClient.Transport),
		Timeout:       a.httpClient.Timeout,
		CheckRedirect: a.httpClient.CheckRedirect,
	}
	return &c
}

// BaseURL returns the backend URL without a trailing slash.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// Credentials returns the credential transport, nil for anonymous services.
func (a *APIService) Credentials() CredentialTransport {
	return a.creds
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Redirect reports a 3xx status.
func (r *APIResponse) Redirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// NewRequest builds a request for path relative to the base URL.
func (a *APIService) NewRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", shared.GenerateID())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}
	return req, nil
}

// Do sends req and reads the whole response.
//
// Only transport failures are errors here; any HTTP status is returned in the [APIResponse].
func (a *APIService) Do(req *http.Request) (*APIResponse, error) {
	a.logger.Debug("request", "method", req.Method, "path", req.URL.Path, "request_id", req.Header.Get("X-Request-ID"))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", shared.ErrServiceUnavailable, err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	a.logger.Debug("response", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode)
	return apiResp, nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	req, err := a.NewRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	return a.Do(req)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	req, err := a.NewRequest(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json")
	if err != nil {
		return nil, err
	}
	return a.Do(req)
}

// JSON sends in as a JSON body (nil for none) and decodes a 2xx response into out (nil to discard).
//
// Non-2xx responses are returned as [*APIError].
func (a *APIService) JSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := a.NewRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}

	resp, err := a.Do(req)
	if err != nil {
		return err
	}

	if !resp.OK() {
		return NewAPIError(path, resp)
	}

	if out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

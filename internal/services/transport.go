package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	sessionCookie = "sessionid"
	csrfCookie    = "csrftoken"
	csrfHeader    = "X-CSRFToken"
	csrfFormField = "csrfmiddlewaretoken"
)

// Credentials is what a successful login or registration yields.
//
// Token is opaque: an API token in token mode, the session cookie value in session mode.
type Credentials struct {
	Token string           `json:"token"`
	User  *models.Identity `json:"user"`
}

// CredentialTransport presents a credential on outgoing requests and knows how to obtain one.
type CredentialTransport interface {
	// Mode is [shared.ModeToken] or [shared.ModeSession].
	Mode() string

	// Wrap decorates base so every request carries the current credential.
	Wrap(base http.RoundTripper) http.RoundTripper

	// SetToken replaces the presented credential; "" presents none.
	SetToken(token string)

	// Token returns the presented credential.
	Token() string

	// Login exchanges a username and password for a credential.
	Login(ctx context.Context, api *APIService, username, password string) (*Credentials, error)

	// Logout invalidates the credential server-side.
	Logout(ctx context.Context, api *APIService) error
}

// NewCredentialTransport returns the transport for the configured mode.
func NewCredentialTransport(cfg shared.APIConfig) (CredentialTransport, error) {
	switch cfg.Mode {
	case shared.ModeToken, "":
		return NewTokenTransport(cfg.Paths), nil
	case shared.ModeSession:
		return NewSessionTransport(cfg.BaseURL, cfg.Paths)
	default:
		return nil, fmt.Errorf("%w: unknown api mode %q", shared.ErrInvalidConfig, cfg.Mode)
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// wrappedTransport remembers its base so [APIService.Anonymous] can strip credentials.
type wrappedTransport struct {
	base http.RoundTripper
	rt   roundTripperFunc
}

func (w *wrappedTransport) RoundTrip(r *http.Request) (*http.Response, error) { return w.rt(r) }

func unwrap(rt http.RoundTripper) http.RoundTripper {
	if w, ok := rt.(*wrappedTransport); ok {
		return w.base
	}
	return rt
}

// TokenTransport sends "Authorization: Token <key>" using an [oauth2.StaticTokenSource].
type TokenTransport struct {
	mu    sync.RWMutex
	token string
	paths shared.PathsConfig
}

func NewTokenTransport(paths shared.PathsConfig) *TokenTransport {
	return &TokenTransport{paths: paths}
}

func (t *TokenTransport) Mode() string { return shared.ModeToken }

func (t *TokenTransport) SetToken(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

func (t *TokenTransport) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

func (t *TokenTransport) Wrap(base http.RoundTripper) http.RoundTripper {
	return &wrappedTransport{
		base: base,
		rt: func(req *http.Request) (*http.Response, error) {
			token := t.Token()
			if token == "" {
				return base.RoundTrip(req)
			}

			src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Token"})
			return (&oauth2.Transport{Source: src, Base: base}).RoundTrip(req)
		},
	}
}

// Login posts JSON credentials and expects {"token": ..., "user": ...} back.
//
// Any presented token is dropped first; the backend rejects logins carrying a stale one.
func (t *TokenTransport) Login(ctx context.Context, api *APIService, username, password string) (*Credentials, error) {
	t.SetToken("")

	body := map[string]string{"username": username, "password": password}
	var creds Credentials
	if err := api.JSON(ctx, http.MethodPost, t.paths.Login, body, &creds); err != nil {
		return nil, err
	}
	if creds.Token == "" {
		return nil, fmt.Errorf("%w: login response carried no token", shared.ErrAuthFailed)
	}
	return &creds, nil
}

func (t *TokenTransport) Logout(ctx context.Context, api *APIService) error {
	return api.JSON(ctx, http.MethodPost, t.paths.Logout, nil, nil)
}

// SessionTransport keeps a cookie jar and performs the CSRF-protected form login.
type SessionTransport struct {
	mu    sync.Mutex
	jar   *cookiejar.Jar
	base  *url.URL
	paths shared.PathsConfig
}

func NewSessionTransport(baseURL string, paths shared.PathsConfig) (*SessionTransport, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("%w: bad base url: %w", shared.ErrInvalidConfig, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &SessionTransport{jar: jar, base: u, paths: paths}, nil
}

func (s *SessionTransport) Mode() string { return shared.ModeSession }

func (s *SessionTransport) cookie(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.jar.Cookies(s.base) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// Token returns the session cookie value.
func (s *SessionTransport) Token() string {
	return s.cookie(sessionCookie)
}

// SetToken replaces the jar with one holding only the given session cookie.
func (s *SessionTransport) SetToken(token string) {
	jar, _ := cookiejar.New(nil)
	if token != "" {
		jar.SetCookies(s.base, []*http.Cookie{{Name: sessionCookie, Value: token, Path: "/"}})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar = jar
}

func (s *SessionTransport) Wrap(base http.RoundTripper) http.RoundTripper {
	return &wrappedTransport{
		base: base,
		rt: func(req *http.Request) (*http.Response, error) {
			req = req.Clone(req.Context())

			s.mu.Lock()
			jar := s.jar
			s.mu.Unlock()

			if unsafeMethod(req.Method) && needsCSRF(jar.Cookies(req.URL)) {
				if err := s.acquireCSRF(req, base, jar); err != nil {
					return nil, err
				}
			}

			for _, c := range jar.Cookies(req.URL) {
				req.AddCookie(c)
			}
			if unsafeMethod(req.Method) {
				for _, c := range jar.Cookies(req.URL) {
					if c.Name == csrfCookie && req.Header.Get(csrfHeader) == "" {
						req.Header.Set(csrfHeader, c.Value)
					}
				}
				if req.Header.Get("Referer") == "" {
					req.Header.Set("Referer", s.base.String())
				}
			}

			resp, err := base.RoundTrip(req)
			if err != nil {
				return nil, err
			}
			if cookies := resp.Cookies(); len(cookies) > 0 {
				jar.SetCookies(req.URL, cookies)
			}
			return resp, nil
		},
	}
}

// needsCSRF reports a restored session without a csrf cookie.
func needsCSRF(cookies []*http.Cookie) bool {
	var session, csrf bool
	for _, c := range cookies {
		switch c.Name {
		case sessionCookie:
			session = true
		case csrfCookie:
			csrf = true
		}
	}
	return session && !csrf
}

// acquireCSRF fetches the login page with the session cookie so the server issues a csrf cookie.
func (s *SessionTransport) acquireCSRF(req *http.Request, base http.RoundTripper, jar *cookiejar.Jar) error {
	page, err := s.base.Parse(strings.TrimPrefix(s.paths.SessionLogin, "/"))
	if err != nil {
		return fmt.Errorf("%w: bad login path: %w", shared.ErrInvalidConfig, err)
	}

	get, err := http.NewRequestWithContext(req.Context(), http.MethodGet, page.String(), nil)
	if err != nil {
		return err
	}
	for _, c := range jar.Cookies(page) {
		get.AddCookie(c)
	}
	if ua := req.Header.Get("User-Agent"); ua != "" {
		get.Header.Set("User-Agent", ua)
	}

	resp, err := base.RoundTrip(get)
	if err != nil {
		return fmt.Errorf("%w: csrf request failed: %w", shared.ErrServiceUnavailable, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if cookies := resp.Cookies(); len(cookies) > 0 {
		jar.SetCookies(page, cookies)
	}
	return nil
}

func unsafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return true
}

// Login fetches the login page for a CSRF cookie, posts the form and then
// asks who the session belongs to. A redirect means the form was accepted.
func (s *SessionTransport) Login(ctx context.Context, api *APIService, username, password string) (*Credentials, error) {
	s.SetToken("")

	page, err := api.Get(ctx, s.paths.SessionLogin)
	if err != nil {
		return nil, err
	}
	if !page.OK() {
		return nil, NewAPIError(s.paths.SessionLogin, page)
	}

	csrf := s.cookie(csrfCookie)
	if csrf == "" {
		return nil, fmt.Errorf("%w: login page set no csrf cookie", shared.ErrAuthFailed)
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set(csrfFormField, csrf)
	form.Set("next", s.paths.CurrentUser)

	req, err := api.NewRequest(ctx, http.MethodPost, s.paths.SessionLogin, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}

	resp, err := api.Do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.Redirect():
	case resp.OK():
		// The form was re-rendered with errors.
		return nil, &APIError{
			Status:  http.StatusBadRequest,
			Path:    s.paths.SessionLogin,
			Payload: &ErrorPayload{Detail: "Invalid username or password.", Fields: map[string][]string{}},
		}
	default:
		return nil, NewAPIError(s.paths.SessionLogin, resp)
	}

	token := s.Token()
	if token == "" {
		return nil, fmt.Errorf("%w: login set no session cookie", shared.ErrAuthFailed)
	}

	var user models.Identity
	if err := api.JSON(ctx, http.MethodGet, s.paths.CurrentUser, nil, &user); err != nil {
		return nil, err
	}
	return &Credentials{Token: token, User: &user}, nil
}

func (s *SessionTransport) Logout(ctx context.Context, api *APIService) error {
	resp, err := api.Post(ctx, s.paths.SessionLogout, nil)
	if err != nil {
		return err
	}
	if !resp.OK() && !resp.Redirect() {
		return NewAPIError(s.paths.SessionLogout, resp)
	}
	return nil
}

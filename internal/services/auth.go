package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/shared"
)

// AuthService talks to the backend's account endpoints.
//
// It never stores credentials; the session manager hands it the token to present via [AuthService.Present].
type AuthService struct {
	api   *APIService
	creds CredentialTransport
	paths shared.PathsConfig
}

// NewAuthService creates an auth service. api must have been built with creds.
func NewAuthService(api *APIService, paths shared.PathsConfig) *AuthService {
	return &AuthService{api: api, creds: api.Credentials(), paths: paths}
}

// Mode returns the credential mode in use.
func (s *AuthService) Mode() string {
	return s.creds.Mode()
}

// Present sets the credential sent with subsequent requests; "" sends none.
func (s *AuthService) Present(token string) {
	s.creds.SetToken(token)
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*Credentials, error) {
	creds, err := s.creds.Login(ctx, s.api, username, password)
	if err != nil {
		return nil, err
	}
	if err := creds.User.Validate(); err != nil {
		return nil, fmt.Errorf("%w: login returned an unusable identity: %w", shared.ErrAuthFailed, err)
	}
	return creds, nil
}

// Register creates an account.
//
// The response may carry a token with the new identity, or the identity alone.
// In session mode a returned token is discarded since it cannot be presented.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*Credentials, error) {
	body := map[string]string{"username": username, "email": email, "password": password}

	var resp struct {
		Token string           `json:"token"`
		User  *models.Identity `json:"user"`
		models.Identity
	}
	if err := s.api.JSON(ctx, http.MethodPost, s.paths.Register, body, &resp); err != nil {
		return nil, err
	}

	creds := &Credentials{Token: resp.Token, User: resp.User}
	if creds.User == nil && resp.Identity.Validate() == nil {
		user := resp.Identity
		creds.User = &user
	}
	if s.creds.Mode() == shared.ModeSession {
		creds.Token = ""
	}
	return creds, nil
}

// CurrentUser asks the backend who the presented credential belongs to.
func (s *AuthService) CurrentUser(ctx context.Context) (*models.Identity, error) {
	var user models.Identity
	if err := s.api.JSON(ctx, http.MethodGet, s.paths.CurrentUser, nil, &user); err != nil {
		return nil, err
	}
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("%w: current user response: %w", shared.ErrAPIRequest, err)
	}
	return &user, nil
}

// Logout invalidates the presented credential server-side.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.creds.Logout(ctx, s.api)
}

// UpdateProfile partially updates the user's profile and returns the server's copy.
func (s *AuthService) UpdateProfile(ctx context.Context, id int, update models.ProfileUpdate) (*models.Identity, error) {
	path := s.paths.Users + strconv.Itoa(id) + "/"

	var user models.Identity
	if err := s.api.JSON(ctx, http.MethodPatch, path, update, &user); err != nil {
		return nil, err
	}
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("%w: profile response: %w", shared.ErrAPIRequest, err)
	}
	return &user, nil
}

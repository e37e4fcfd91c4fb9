package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/services"
	"github.com/desertthunder/snipx/internal/shared"
	"golang.org/x/sync/singleflight"
)

// Manager is the single source of truth for who is logged in.
//
// Every mutation of durable storage happens under mu together with the in-memory
// transition it belongs to, storage first. Login, Register and Logout each bump gen;
// a response that arrives after gen moved on is dropped instead of applied.
type Manager struct {
	mu       sync.RWMutex
	state    State
	token    string
	identity *models.Identity
	lastErr  string
	gen      uint64

	storage Storage
	auth    Authenticator
	logger  *log.Logger
	flight  singleflight.Group
}

// NewManager creates a manager in the [Unknown] state.
func NewManager(storage Storage, auth Authenticator, logger *log.Logger) *Manager {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Manager{
		storage: storage,
		auth:    auth,
		logger:  shared.WithLogger(logger, "component", "session"),
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Identity returns a copy of the current identity, nil when not authenticated.
func (m *Manager) Identity() *models.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyIdentity(m.identity)
}

// Token returns the current session token, "" when not authenticated.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Error returns the message of the last failed operation, cleared when a new one starts.
func (m *Manager) Error() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Snapshot returns state, identity and last error read together.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{State: m.state, Identity: copyIdentity(m.identity), Error: m.lastErr}
}

func copyIdentity(i *models.Identity) *models.Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Initialize hydrates from storage and, when a session was found, verifies it in the background.
//
// The returned channel yields the verification error (nil when nothing needed verifying) and is then closed.
// The state is already final or optimistically [Authenticated] when Initialize returns.
func (m *Manager) Initialize(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	if !m.Hydrate(ctx) {
		done <- nil
		close(done)
		return done
	}

	go func() {
		defer close(done)
		done <- m.Verify(ctx)
	}()
	return done
}

// Hydrate loads the stored session without any network call and reports whether it needs verifying.
//
// Only the first call on an [Unknown] manager has any effect.
func (m *Manager) Hydrate(ctx context.Context) bool {
	token, identity, err := m.storage.Load(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Unknown {
		return false
	}
	if err != nil {
		m.logger.Warn("stored session is unreadable", "error", err)
		m.state = Anonymous
		return false
	}
	if token == "" || identity == nil {
		m.state = Anonymous
		return false
	}

	m.token, m.identity, m.state = token, identity, Authenticated
	m.auth.Present(token)
	m.logger.Debug("hydrated session", "user", identity.Username)
	return true
}

// Verify asks the server who the current token belongs to.
//
// On success the in-memory identity is refreshed; storage is not written. On any
// failure except cancellation of ctx, storage is cleared and the state becomes [Anonymous].
func (m *Manager) Verify(ctx context.Context) error {
	m.mu.RLock()
	state, gen := m.state, m.gen
	m.mu.RUnlock()

	if state != Authenticated {
		return shared.ErrNotAuthenticated
	}

	identity, err := m.auth.CurrentUser(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		m.logger.Debug("discarding stale verification")
		return shared.ErrSessionChanged
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		m.logger.Info("session verification failed", "error", err)
		m.resetLocked(ctx)
		return fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, err)
	}

	m.identity = identity
	return nil
}

// resetLocked clears storage and memory. The in-memory state ends [Anonymous] even when storage fails.
func (m *Manager) resetLocked(ctx context.Context) error {
	err := m.storage.Clear(context.WithoutCancel(ctx))
	if err != nil {
		m.logger.Error("failed to clear stored session", "error", err)
	}

	m.token, m.identity, m.state = "", nil, Anonymous
	m.gen++
	m.auth.Present("")
	return err
}

// begin starts a Login or Register: it takes a new generation and clears the last error.
func (m *Manager) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.lastErr = ""
	return m.gen
}

// fail records msg unless the operation was superseded, and restores the presented token,
// which a login attempt may have dropped.
func (m *Manager) fail(ticket uint64, msg string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ticket != m.gen {
		return failed(Superseded)
	}
	m.auth.Present(m.token)
	m.lastErr = msg
	return failed(msg)
}

// adopt persists creds and then switches to [Authenticated], as one step under the lock.
func (m *Manager) adopt(ctx context.Context, ticket uint64, creds *services.Credentials) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ticket != m.gen {
		m.logger.Debug("discarding superseded login")
		return failed(Superseded)
	}

	if err := creds.User.Validate(); err != nil || creds.Token == "" {
		m.logger.Error("server returned unusable credentials", "error", err)
		m.auth.Present(m.token)
		m.lastErr = LoginFailed
		return failed(LoginFailed)
	}

	if err := m.storage.Save(context.WithoutCancel(ctx), creds.Token, creds.User); err != nil {
		m.logger.Error("failed to persist session", "error", err)
		m.auth.Present(m.token)
		m.lastErr = StorageFailed
		return failed(StorageFailed)
	}

	m.token, m.identity, m.state = creds.Token, copyIdentity(creds.User), Authenticated
	m.auth.Present(creds.Token)
	m.logger.Info("logged in", "user", creds.User.Username)
	return ok()
}

// flightKey identifies identical requests. The password only contributes a digest.
func flightKey(op string, parts ...string) string {
	last := len(parts) - 1
	sum := sha256.Sum256([]byte(parts[last]))
	parts[last] = hex.EncodeToString(sum[:])
	return op + "\x00" + strings.Join(parts, "\x00")
}

// Login authenticates with username and password.
//
// Concurrent calls with the same credentials share one request and one result.
// A different Login, Register or Logout started meanwhile supersedes this one.
func (m *Manager) Login(ctx context.Context, username, password string) Result {
	v, _, _ := m.flight.Do(flightKey("login", username, password), func() (any, error) {
		return m.login(ctx, username, password), nil
	})
	return v.(Result)
}

func (m *Manager) login(ctx context.Context, username, password string) Result {
	ticket := m.begin()

	creds, err := m.auth.Login(ctx, username, password)
	if err != nil {
		m.logger.Warn("login failed", "user", username, "error", err)
		return m.fail(ticket, ExtractMessage(err, LoginRules, LoginFailed))
	}
	return m.adopt(ctx, ticket, creds)
}

// Register creates an account and authenticates as it.
//
// A token returned with the new identity is adopted directly; otherwise Register
// continues with a Login using the same credentials.
func (m *Manager) Register(ctx context.Context, username, email, password string) Result {
	v, _, _ := m.flight.Do(flightKey("register", username, email, password), func() (any, error) {
		return m.register(ctx, username, email, password), nil
	})
	return v.(Result)
}

func (m *Manager) register(ctx context.Context, username, email, password string) Result {
	ticket := m.begin()

	creds, err := m.auth.Register(ctx, username, email, password)
	if err != nil {
		m.logger.Warn("registration failed", "user", username, "error", err)
		return m.fail(ticket, ExtractMessage(err, RegisterRules, RegisterFailed))
	}
	if creds.Token != "" && creds.User.Validate() == nil {
		return m.adopt(ctx, ticket, creds)
	}

	m.logger.Debug("registration returned no token, logging in", "user", username)
	creds, err = m.auth.Login(ctx, username, password)
	if err != nil {
		m.logger.Warn("login after registration failed", "user", username, "error", err)
		return m.fail(ticket, ExtractMessage(err, LoginRules, LoginFailed))
	}
	return m.adopt(ctx, ticket, creds)
}

// Logout invalidates the session on the server, best effort, and always ends [Anonymous]
// with storage cleared. A failed server call is reported but changes nothing locally.
func (m *Manager) Logout(ctx context.Context) Result {
	m.mu.Lock()
	m.gen++
	m.lastErr = ""
	hadToken := m.token != ""
	m.mu.Unlock()

	var netErr error
	if hadToken {
		netErr = m.auth.Logout(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	storeErr := m.resetLocked(ctx)

	switch {
	case storeErr != nil:
		m.lastErr = StorageFailed
	case netErr != nil:
		m.logger.Warn("server logout failed", "error", netErr)
		m.lastErr = LogoutFailed
	default:
		m.logger.Info("logged out")
		return ok()
	}
	return failed(m.lastErr)
}

// UpdateProfile sends a partial update and replaces the identity with the server's copy.
// id must be the logged-in identity's.
func (m *Manager) UpdateProfile(ctx context.Context, id int, update models.ProfileUpdate) Result {
	m.mu.Lock()
	state, gen := m.state, m.gen
	var current int
	if m.identity != nil {
		current = m.identity.ID
	}
	m.lastErr = ""
	m.mu.Unlock()

	if state != Authenticated {
		return m.fail(gen, NotLoggedIn)
	}
	if id != current {
		return m.fail(gen, NotYourProfile)
	}
	if update.Empty() {
		return m.fail(gen, NothingToSave)
	}

	identity, err := m.auth.UpdateProfile(ctx, id, update)
	if err != nil {
		m.logger.Warn("profile update failed", "error", err)
		return m.fail(gen, ExtractMessage(err, ProfileRules, ProfileFailed))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != Authenticated {
		return failed(Superseded)
	}
	if identity.ID != id {
		m.logger.Warn("profile update answered for another identity", "want", id, "got", identity.ID)
		m.lastErr = ProfileFailed
		return failed(ProfileFailed)
	}
	if err := m.storage.Save(context.WithoutCancel(ctx), m.token, identity); err != nil {
		m.logger.Error("failed to persist profile", "error", err)
		m.lastErr = StorageFailed
		return failed(StorageFailed)
	}

	m.identity = copyIdentity(identity)
	return ok()
}

// IsNotAuthenticated reports errors that mean the server no longer accepts the session.
func IsNotAuthenticated(err error) bool {
	return errors.Is(err, shared.ErrNotAuthenticated) || services.HasStatus(err, http.StatusUnauthorized, http.StatusForbidden)
}

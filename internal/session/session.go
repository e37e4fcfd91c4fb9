package session

import (
	"context"

	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/services"
)

// State is the manager's view of whether someone is logged in.
type State int

const (
	Unknown State = iota
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is what Login, Register, Logout and UpdateProfile report to callers.
//
// Error is a short message fit for display; it is empty on success.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ok() Result { return Result{Success: true} }

func failed(msg string) Result { return Result{Error: msg} }

// Snapshot is a consistent copy of the manager's state.
type Snapshot struct {
	State    State            `json:"state" yaml:"state"`
	Identity *models.Identity `json:"identity,omitempty" yaml:"identity,omitempty"`
	Error    string           `json:"error,omitempty" yaml:"error,omitempty"`
}

// Storage is the durable home of the session: an opaque token and the identity it belongs to.
//
// Implementations write and clear both together. Load returns ("", nil, nil) when nothing is stored.
type Storage interface {
	Load(ctx context.Context) (token string, identity *models.Identity, err error)
	Save(ctx context.Context, token string, identity *models.Identity) error
	Clear(ctx context.Context) error
}

// Authenticator is the server side of the session, reached through a credential transport.
//
// Present sets the credential the following calls carry; the manager calls it whenever its token changes.
type Authenticator interface {
	Present(token string)
	Login(ctx context.Context, username, password string) (*services.Credentials, error)
	Register(ctx context.Context, username, email, password string) (*services.Credentials, error)
	CurrentUser(ctx context.Context) (*models.Identity, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, id int, update models.ProfileUpdate) (*models.Identity, error)
}

var _ Authenticator = (*services.AuthService)(nil)

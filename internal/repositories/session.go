package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/shared"
)

// Keys of the session table.
const (
	TokenKey = "token"
	UserKey  = "user"
)

const upsertSession = `
	INSERT INTO session (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`

// SessionStore persists the session token and identity in the session table.
//
// The two keys are always written and removed in the same transaction, so a
// reader never sees a token without its identity.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Load returns the stored token and identity.
//
// A missing key yields ("", nil, nil). A stored identity that cannot be
// decoded is reported as [shared.ErrStorage].
func (s *SessionStore) Load(ctx context.Context) (string, *models.Identity, error) {
	values, err := s.values(ctx, s.db)
	if err != nil {
		return "", nil, err
	}

	token, user := values[TokenKey], values[UserKey]
	if len(token) == 0 || len(user) == 0 {
		return "", nil, nil
	}

	identity, err := models.UnmarshalIdentity(user)
	if err != nil {
		return "", nil, fmt.Errorf("%w: stored user is unreadable: %w", shared.ErrStorage, err)
	}
	return string(token), identity, nil
}

func (s *SessionStore) values(ctx context.Context, db DBTX) (map[string][]byte, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM session WHERE key IN (?, ?)`, TokenKey, UserKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read session: %w", shared.ErrStorage, err)
	}
	defer rows.Close()

	values := make(map[string][]byte, 2)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("%w: failed to scan session row: %w", shared.ErrStorage, err)
		}
		values[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate session rows: %w", shared.ErrStorage, err)
	}
	return values, nil
}

// Save writes both keys.
func (s *SessionStore) Save(ctx context.Context, token string, identity *models.Identity) error {
	if token == "" {
		return fmt.Errorf("%w: refusing to save an empty token", shared.ErrStorage)
	}
	user, err := models.MarshalIdentity(identity)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrStorage, err)
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		rows := []struct {
			key   string
			value []byte
		}{{TokenKey, []byte(token)}, {UserKey, user}}

		for _, row := range rows {
			if _, err := tx.ExecContext(ctx, upsertSession, row.key, row.value); err != nil {
				return fmt.Errorf("failed to set session[%s]: %w", row.key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrStorage, err)
	}
	return nil
}

// Clear removes both keys. Clearing an empty store is not an error.
func (s *SessionStore) Clear(ctx context.Context) error {
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session WHERE key IN (?, ?)`, TokenKey, UserKey); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrStorage, err)
	}
	return nil
}

// MemoryStore keeps the session in memory. Used by tests and when no database is configured.
type MemoryStore struct {
	mu       sync.Mutex
	token    string
	identity *models.Identity
	saves    int

	// FailSave and FailClear make the next writes fail with [shared.ErrStorage].
	FailSave  bool
	FailClear bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (string, *models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == "" || m.identity == nil {
		return "", nil, nil
	}
	identity := *m.identity
	return m.token, &identity, nil
}

func (m *MemoryStore) Save(_ context.Context, token string, identity *models.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSave {
		return fmt.Errorf("%w: save failed", shared.ErrStorage)
	}
	if token == "" {
		return fmt.Errorf("%w: refusing to save an empty token", shared.ErrStorage)
	}
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrStorage, err)
	}

	copied := *identity
	m.token, m.identity = token, &copied
	m.saves++
	return nil
}

// Saves counts successful writes.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailClear {
		return fmt.Errorf("%w: clear failed", shared.ErrStorage)
	}
	m.token, m.identity = "", nil
	return nil
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/desertthunder/snipx/internal/models"
	"github.com/desertthunder/snipx/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	ada := &models.Identity{ID: 1, Username: "ada", Email: "ada@example.com"}

	t.Run("Load Empty", func(t *testing.T) {
		store := NewSessionStore(setupTestDB(t))

		token, identity, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, token)
		assert.Nil(t, identity)
	})

	t.Run("Save Then Load", func(t *testing.T) {
		store := NewSessionStore(setupTestDB(t))

		require.NoError(t, store.Save(ctx, "tok-1", ada))

		token, identity, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
		assert.Equal(t, ada, identity)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		store := NewSessionStore(setupTestDB(t))

		require.NoError(t, store.Save(ctx, "tok-1", ada))
		grace := &models.Identity{ID: 2, Username: "grace"}
		require.NoError(t, store.Save(ctx, "tok-2", grace))

		token, identity, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-2", token)
		assert.Equal(t, grace, identity)
	})

	t.Run("Clear Removes Both Keys And Is Idempotent", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewSessionStore(db)

		require.NoError(t, store.Save(ctx, "tok-1", ada))
		require.NoError(t, store.Clear(ctx))
		require.NoError(t, store.Clear(ctx))

		var count int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM session`).Scan(&count))
		assert.Zero(t, count)
	})

	t.Run("Token Without User Loads As Empty", func(t *testing.T) {
		db := setupTestDB(t)
		_, err := db.Exec(`INSERT INTO session (key, value) VALUES ('token', 'orphan')`)
		require.NoError(t, err)

		token, identity, err := NewSessionStore(db).Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, token)
		assert.Nil(t, identity)
	})

	t.Run("Unreadable User", func(t *testing.T) {
		db := setupTestDB(t)
		_, err := db.Exec(`INSERT INTO session (key, value) VALUES ('token', 'tok'), ('user', '{not json')`)
		require.NoError(t, err)

		_, _, err = NewSessionStore(db).Load(ctx)
		assert.ErrorIs(t, err, shared.ErrStorage)
	})

	t.Run("Save Rejects Invalid Input", func(t *testing.T) {
		store := NewSessionStore(setupTestDB(t))

		assert.ErrorIs(t, store.Save(ctx, "", ada), shared.ErrStorage)
		assert.ErrorIs(t, store.Save(ctx, "tok", &models.Identity{Username: "no-id"}), shared.ErrStorage)
	})

	t.Run("Errors", func(t *testing.T) {
		t.Run("Load Query Fails", func(t *testing.T) {
			db, mock := setupMockDB(t)
			mock.ExpectQuery("SELECT key, value FROM session").WillReturnError(errors.New("disk I/O error"))

			_, _, err := NewSessionStore(db).Load(ctx)
			assert.ErrorIs(t, err, shared.ErrStorage)
			assert.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run("Save Rolls Back When The Second Write Fails", func(t *testing.T) {
			db, mock := setupMockDB(t)
			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO session").WithArgs(TokenKey, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec("INSERT INTO session").WithArgs(UserKey, sqlmock.AnyArg()).WillReturnError(errors.New("disk full"))
			mock.ExpectRollback()

			err := NewSessionStore(db).Save(ctx, "tok", ada)
			assert.ErrorIs(t, err, shared.ErrStorage)
			assert.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run("Save Commit Fails", func(t *testing.T) {
			db, mock := setupMockDB(t)
			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO session").WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec("INSERT INTO session").WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

			err := NewSessionStore(db).Save(ctx, "tok", ada)
			assert.ErrorIs(t, err, shared.ErrStorage)
			assert.NoError(t, mock.ExpectationsWereMet())
		})

		t.Run("Clear Begin Fails", func(t *testing.T) {
			db, mock := setupMockDB(t)
			mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

			err := NewSessionStore(db).Clear(ctx)
			assert.ErrorIs(t, err, shared.ErrStorage)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	ada := &models.Identity{ID: 1, Username: "ada"}

	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, "tok", ada))
	assert.Equal(t, 1, store.Saves())

	token, identity, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, ada, identity)

	identity.Username = "mutated"
	_, again, _ := store.Load(ctx)
	assert.Equal(t, "ada", again.Username, "loaded identity should be a copy")

	store.FailSave = true
	assert.ErrorIs(t, store.Save(ctx, "tok2", ada), shared.ErrStorage)
	assert.Equal(t, 1, store.Saves())

	store.FailClear = true
	assert.ErrorIs(t, store.Clear(ctx), shared.ErrStorage)

	store.FailClear = false
	require.NoError(t, store.Clear(ctx))
	token, identity, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Nil(t, identity)
}

func TestExportRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create And List", func(t *testing.T) {
		repo := NewExportRepository(setupTestDB(t))

		older := &models.ExportRecord{Format: "json", OutputDir: "out-1", Total: 3, Succeeded: 3, CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		newer := &models.ExportRecord{Format: "yaml", OutputDir: "out-2", Total: 2, Succeeded: 1, Failed: 1, CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
		require.NoError(t, repo.Create(ctx, older))
		require.NoError(t, repo.Create(ctx, newer))
		assert.NotEmpty(t, older.ID)

		all, err := repo.List(ctx, 0)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "out-2", all[0].OutputDir)
		assert.Equal(t, 1, all[0].Failed)
		assert.True(t, all[1].CreatedAt.Equal(older.CreatedAt))

		limited, err := repo.List(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("Create Assigns Timestamp", func(t *testing.T) {
		repo := NewExportRepository(setupTestDB(t))
		rec := &models.ExportRecord{Format: "json", OutputDir: "out"}
		require.NoError(t, repo.Create(ctx, rec))
		assert.False(t, rec.CreatedAt.IsZero())
	})

	t.Run("Errors", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewExportRepository(db)

		mock.ExpectExec("INSERT INTO exports").WillReturnError(errors.New("constraint failed"))
		assert.Error(t, repo.Create(ctx, &models.ExportRecord{Format: "json", OutputDir: "out"}))

		mock.ExpectQuery("SELECT (.+) FROM exports").WillReturnError(errors.New("no such table"))
		_, err := repo.List(ctx, 0)
		assert.Error(t, err)

		mock.ExpectQuery("SELECT (.+) FROM exports").WillReturnRows(
			sqlmock.NewRows([]string{"id", "format", "output_dir", "total", "succeeded", "failed", "created_at"}).
				AddRow("x", "json", "out", "not-a-number", 0, 0, nil),
		)
		_, err = repo.List(ctx, 0)
		assert.Error(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

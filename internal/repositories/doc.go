// Package repositories implements SQLite persistence for the client's local state.
//
// Key Implementations:
//   - [SessionStore] : the durable session, keys "token" and "user" in the session table
//   - [MemoryStore] : an in-memory session store with injectable failures
//   - [ExportRepository] : history of bulk snippet exports
//
// Writes that span more than one row go through a single transaction.
package repositories

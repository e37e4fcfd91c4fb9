// Package models defines the data exchanged with the snippet backend and held by the client.
//
// The package contains three groups of types:
//
// 1. Session data: owned by the session manager and persisted between runs
//   - [Identity] : the authenticated user's profile
//   - [ProfileUpdate] : partial identity changes sent with PATCH
//
// 2. Snippet data: plumbing for the CRUD commands
//   - [Snippet] : a user's code snippet with server-rendered highlighting
//   - [SnippetInput] : fields accepted on create/update
//   - [Page] : a paginated list response
//
// 3. Shared access: produced only by a successful password exchange and never persisted
//   - [SharedSnippetView] : read-only snippet payload
package models

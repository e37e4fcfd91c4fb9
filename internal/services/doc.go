// Package services implements the HTTP clients for the snippet backend.
//
// # Credentials
//
// Every request carries the credential held by a [CredentialTransport]:
//   - [TokenTransport] : "Authorization: Token <key>" via an oauth2 static token source
//   - [SessionTransport] : a cookie jar plus the CSRF-protected form login
//
// The transports present a credential; they do not own it. The session manager
// decides which token is current and hands it over through [AuthService.Present].
//
// # Errors
//
// Transport failures wrap [shared.ErrServiceUnavailable]. Non-2xx responses are
// returned as [*APIError], which unwraps to [shared.ErrAPIRequest] and carries the
// body normalized into an [ErrorPayload].
//
// # Shared snippets
//
// [SnippetService.Shared] and [SnippetService.SharedReview] use an anonymous copy
// of the API service, so reading a shared snippet never depends on or alters the session.
package services

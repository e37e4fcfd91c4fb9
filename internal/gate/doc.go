// Package gate implements password-gated access to shared snippets.
//
// A share is addressed by an opaque identifier taken from a link with
// [ParseShareReference] and unlocked with its password by [Gate.FetchSharedSnippet].
// Rejections are deliberately uniform: a wrong password, an unknown identifier and
// an expired share all yield [ErrInvalidShare], so callers cannot probe which
// identifiers exist. Nothing here touches the session or durable storage.
package gate

// Package session owns the client's answer to "is someone logged in, and who".
//
// A [Manager] moves through [Unknown], [Authenticated] and [Anonymous]:
//
//	Unknown --hydrate(stored)--> Authenticated --verify fails / logout--> Anonymous
//	Unknown --hydrate(empty)---> Anonymous --login / register--> Authenticated
//
// Hydration is optimistic: a stored token and identity make the manager
// [Authenticated] at once, and [Manager.Verify] confirms it with the server
// afterwards. Durable storage sits behind the [Storage] port and is written only
// by Login, Register, Logout, UpdateProfile and a failed verification.
//
// Operations never return transport errors to callers. They report a [Result]
// whose message is picked from the server's error payload by an ordered list of
// [MessageRule], falling back to a fixed string.
package session

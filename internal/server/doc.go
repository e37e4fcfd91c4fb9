// Package server runs the local preview server for shared snippets.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [ChiRouter] implementation registers routes on a chi mux, which answers
// unknown methods with 405 on its own.
//
// # Preview
//
// [PreviewHandler] renders one [models.SharedSnippetView] that was unlocked earlier
// in the same process. The view lives in memory only and is sanitized on every render.
// A review can be requested from the page when the handler was given a [ReviewFunc].
//
// [PreviewServer] binds to a loopback address only and stops when its context ends.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
